// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package tap

import (
	"io"
	"sync"

	"github.com/onosproject/tapbridge-sim/pkg/simerrors"
)

const memoryQueueSize = 256

// Memory is a set of in-memory devices standing in for host TAP devices. Frames written by the
// simulation can be received on the host side of each device, and frames sent on the host side are
// read by the simulation.
type Memory struct {
	lock    sync.Mutex
	devices map[string]*MemoryDevice
}

// NewMemory creates in-memory devices with the given names
func NewMemory(names ...string) *Memory {
	m := &Memory{devices: make(map[string]*MemoryDevice)}
	for _, name := range names {
		m.Add(name)
	}
	return m
}

// Add creates an in-memory device, unless one with that name exists already
func (m *Memory) Add(name string) *MemoryDevice {
	m.lock.Lock()
	defer m.lock.Unlock()
	if d, ok := m.devices[name]; ok {
		return d
	}
	d := &MemoryDevice{
		name:    name,
		toSim:   make(chan []byte, memoryQueueSize),
		fromSim: make(chan []byte, memoryQueueSize),
	}
	m.devices[name] = d
	return d
}

// Open opens the named device for use by the simulation; it satisfies Opener
func (m *Memory) Open(name string) (Device, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	d, ok := m.devices[name]
	if !ok {
		return nil, simerrors.NewExternalDeviceUnavailable(nil, "Device %s not found", name)
	}
	if d.opened {
		return nil, simerrors.NewExternalDeviceUnavailable(nil, "Device %s is busy", name)
	}
	d.opened = true
	return &memoryPort{MemoryDevice: d, memory: m, closed: make(chan struct{})}, nil
}

// Device returns the named device or nil
func (m *Memory) Device(name string) *MemoryDevice {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.devices[name]
}

// MemoryDevice is the host side of an in-memory device
type MemoryDevice struct {
	name    string
	toSim   chan []byte
	fromSim chan []byte

	// opened is guarded by the owning Memory lock
	opened bool

	lock    sync.Mutex
	dropped int
}

// Name returns the device name
func (d *MemoryDevice) Name() string {
	return d.name
}

// Send queues a frame to be read by the simulation; returns false if the queue is full
func (d *MemoryDevice) Send(data []byte) bool {
	select {
	case d.toSim <- append([]byte(nil), data...):
		return true
	default:
		return false
	}
}

// Receive returns the channel of frames written by the simulation
func (d *MemoryDevice) Receive() <-chan []byte {
	return d.fromSim
}

// Dropped returns the number of frames written by the simulation and discarded for lack of room
func (d *MemoryDevice) Dropped() int {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.dropped
}

// memoryPort is the simulation side of an opened in-memory device
type memoryPort struct {
	*MemoryDevice
	memory    *Memory
	closed    chan struct{}
	closeOnce sync.Once
}

func (p *memoryPort) Read(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, io.EOF
	default:
	}
	select {
	case data := <-p.toSim:
		return copy(b, data), nil
	case <-p.closed:
		return 0, io.EOF
	}
}

// Write never blocks; frames are discarded when the host side is not keeping up
func (p *memoryPort) Write(b []byte) (int, error) {
	select {
	case <-p.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	select {
	case p.fromSim <- append([]byte(nil), b...):
	default:
		p.lock.Lock()
		p.dropped++
		p.lock.Unlock()
	}
	return len(b), nil
}

func (p *memoryPort) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		p.memory.lock.Lock()
		p.opened = false
		p.memory.lock.Unlock()
	})
	return nil
}
