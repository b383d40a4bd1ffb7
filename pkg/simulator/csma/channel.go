// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package csma implements the shared-medium channel realizing a simulated link.
//
// A channel connects exactly two devices. A device transmits only after sensing the medium idle;
// otherwise it backs off and retries. A transmission occupies the medium for the serialization time
// of the frame at the channel data rate and is observed by the other device after the propagation
// delay. All methods must be invoked from the event loop goroutine.
package csma

import (
	"math/rand"
	"time"

	"github.com/onosproject/onos-lib-go/pkg/logging"
	"github.com/onosproject/tapbridge-sim/pkg/frame"
	"github.com/onosproject/tapbridge-sim/pkg/simerrors"
)

var log = logging.GetLogger("simulator", "csma")

const (
	// DefaultMTU is the default maximum payload of a frame, excluding the Ethernet header
	DefaultMTU = 1500

	// DefaultQueueSize is the default capacity of a device transmit queue, in frames
	DefaultQueueSize = 100
)

// Scheduler is the event loop as seen by a channel
type Scheduler interface {
	Now() time.Duration
	Schedule(delay time.Duration, fn func())
}

// DropReason identifies why a frame was discarded
type DropReason string

// Reasons for dropping frames
const (
	DropQueueFull DropReason = "queue_full"
	DropMTU       DropReason = "mtu"
	DropBackoff   DropReason = "backoff"
	DropChecksum  DropReason = "checksum"
	DropDetached  DropReason = "detached"
)

// Observer receives notifications of channel activity
type Observer interface {
	FrameTransmitted(link int, bytes int)
	FrameDelivered(link int, bytes int)
	FrameDropped(link int, reason DropReason)
}

type nopObserver struct{}

func (nopObserver) FrameTransmitted(int, int) {}

func (nopObserver) FrameDelivered(int, int) {}

func (nopObserver) FrameDropped(int, DropReason) {}

// State is the state of the shared medium
type State int

const (
	// Idle means no transmission is in progress
	Idle State = iota
	// Transmitting means a device is serializing a frame onto the medium
	Transmitting
	// Propagating means the last bit of a frame is still travelling to the other end
	Propagating
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Transmitting:
		return "transmitting"
	case Propagating:
		return "propagating"
	default:
		return "unknown"
	}
}

// Params holds the parameters of a channel and its two devices
type Params struct {
	// Link is the link index used when reporting to the observer
	Link int
	// DataRate is the channel bandwidth
	DataRate DataRate
	// Delay is the one-way propagation delay
	Delay time.Duration
	// MTU is the maximum frame payload; DefaultMTU if zero
	MTU int
	// QueueSize is the device transmit queue capacity; DefaultQueueSize if zero
	QueueSize int
	// ErrorRate is the probability of a frame being corrupted on delivery
	ErrorRate float64
	// Seed seeds the channel's random numbers used for backoff and receive errors
	Seed int64
	// Observer is notified of channel activity; may be nil
	Observer Observer
}

func (p *Params) validate() error {
	if p.DataRate == 0 {
		return simerrors.NewInvalidChannelParameters("L%d: data rate must be positive", p.Link+1)
	}
	if p.Delay <= 0 {
		return simerrors.NewInvalidChannelParameters("L%d: delay must be positive, got %s", p.Link+1, p.Delay)
	}
	if p.MTU < 0 {
		return simerrors.NewInvalidChannelParameters("L%d: MTU must be positive, got %d", p.Link+1, p.MTU)
	}
	if p.QueueSize < 0 {
		return simerrors.NewInvalidChannelParameters("L%d: queue size must be positive, got %d", p.Link+1, p.QueueSize)
	}
	if p.ErrorRate < 0 || p.ErrorRate >= 1 {
		return simerrors.NewInvalidChannelParameters("L%d: error rate must be in [0, 1), got %g", p.Link+1, p.ErrorRate)
	}
	return nil
}

// Channel is a shared medium connecting the two devices of one link
type Channel struct {
	params   Params
	sched    Scheduler
	observer Observer
	rng      *rand.Rand

	state    State
	devices  [2]*Device
	sender   int
	current  *frame.Frame
	detached bool
}

// CreateChannel creates a channel with the given parameters and returns it together with its two
// devices, endpoint 0 first.
func CreateChannel(sched Scheduler, params Params) (*Channel, *Device, *Device, error) {
	if err := params.validate(); err != nil {
		return nil, nil, nil, err
	}
	if params.MTU == 0 {
		params.MTU = DefaultMTU
	}
	if params.QueueSize == 0 {
		params.QueueSize = DefaultQueueSize
	}
	observer := params.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	c := &Channel{
		params:   params,
		sched:    sched,
		observer: observer,
		rng:      rand.New(rand.NewSource(params.Seed)),
		state:    Idle,
	}
	for i := range c.devices {
		c.devices[i] = newDevice(c, i)
	}
	log.Debugf("L%d: Created channel %s/%s", params.Link+1, params.DataRate, params.Delay)
	return c, c.devices[0], c.devices[1], nil
}

// Link returns the index of the link realized by this channel
func (c *Channel) Link() int {
	return c.params.Link
}

// DataRate returns the channel bandwidth
func (c *Channel) DataRate() DataRate {
	return c.params.DataRate
}

// Delay returns the channel one-way propagation delay
func (c *Channel) Delay() time.Duration {
	return c.params.Delay
}

// MTU returns the maximum frame payload accepted by the channel devices
func (c *Channel) MTU() int {
	return c.params.MTU
}

// State returns the current state of the medium
func (c *Channel) State() State {
	return c.state
}

// Device returns the device at the given endpoint
func (c *Channel) Device(endpoint int) *Device {
	return c.devices[endpoint]
}

// Detach releases the channel; no frame is delivered by it afterwards
func (c *Channel) Detach() {
	if c.detached {
		return
	}
	c.detached = true
	c.current = nil
	c.state = Idle
	for _, d := range c.devices {
		d.detach()
	}
}

// Detached returns true once the channel has been released
func (c *Channel) Detached() bool {
	return c.detached
}

// transmitStart seizes the medium for the given device
func (c *Channel) transmitStart(d *Device, f *frame.Frame) {
	c.state = Transmitting
	c.sender = d.endpoint
	c.current = f
}

// transmitEnd releases the medium from the sender and propagates the frame to the other device
func (c *Channel) transmitEnd() {
	f := c.current
	c.current = nil
	c.state = Propagating
	for _, d := range c.devices {
		if d.endpoint == c.sender {
			continue
		}
		rx := d
		copied := f.Clone()
		c.sched.Schedule(c.params.Delay, func() { c.deliver(rx, copied) })
	}
	c.sched.Schedule(c.params.Delay, c.propagationComplete)
}

func (c *Channel) propagationComplete() {
	if c.detached {
		return
	}
	c.state = Idle
}

func (c *Channel) deliver(d *Device, f *frame.Frame) {
	if c.detached {
		return
	}
	if c.params.ErrorRate > 0 && c.rng.Float64() < c.params.ErrorRate {
		f.Corrupt(c.rng)
	}
	if !f.Valid() {
		d.drop(DropChecksum)
		return
	}
	d.received(f)
}
