// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package csma

import (
	"github.com/onosproject/tapbridge-sim/pkg/frame"
)

type txState int

const (
	txReady txState = iota
	txBusy
	txBackoff
)

// Stats holds the counters of a single device
type Stats struct {
	TxFrames uint64
	TxBytes  uint64
	RxFrames uint64
	RxBytes  uint64
	Dropped  map[DropReason]uint64
}

// Device is one endpoint attached to a channel
type Device struct {
	channel  *Channel
	endpoint int

	state   txState
	queue   []*frame.Frame
	current *frame.Frame
	backoff Backoff
	receive func(*frame.Frame)
	stats   Stats
}

func newDevice(c *Channel, endpoint int) *Device {
	return &Device{
		channel:  c,
		endpoint: endpoint,
		state:    txReady,
		queue:    make([]*frame.Frame, 0, c.params.QueueSize),
		backoff:  DefaultBackoff(),
		stats:    Stats{Dropped: make(map[DropReason]uint64)},
	}
}

// Channel returns the channel the device is attached to
func (d *Device) Channel() *Channel {
	return d.channel
}

// Endpoint returns the endpoint number of the device on its channel, 0 or 1
func (d *Device) Endpoint() int {
	return d.endpoint
}

// SetReceiveCallback sets the function invoked with every frame delivered to the device
func (d *Device) SetReceiveCallback(fn func(*frame.Frame)) {
	d.receive = fn
}

// SetBackoff overrides the backoff parameters of the device
func (d *Device) SetBackoff(b Backoff) {
	d.backoff = b
}

// Stats returns a snapshot of the device counters
func (d *Device) Stats() Stats {
	s := d.stats
	s.Dropped = make(map[DropReason]uint64, len(d.stats.Dropped))
	for reason, count := range d.stats.Dropped {
		s.Dropped[reason] = count
	}
	return s
}

// Send enqueues a frame for transmission; returns false if the frame was dropped
func (d *Device) Send(f *frame.Frame) bool {
	c := d.channel
	if c.detached {
		d.drop(DropDetached)
		return false
	}
	if f.Len() > c.params.MTU+frame.HeaderLength {
		d.drop(DropMTU)
		return false
	}
	if len(d.queue) >= c.params.QueueSize {
		d.drop(DropQueueFull)
		return false
	}
	d.queue = append(d.queue, f)
	if d.state == txReady {
		d.transmitNext()
	}
	return true
}

// transmitNext attempts to transmit the current frame, or the next queued one
func (d *Device) transmitNext() {
	c := d.channel
	for {
		if c.detached {
			return
		}
		if d.current == nil {
			if len(d.queue) == 0 {
				d.state = txReady
				return
			}
			d.current = d.queue[0]
			d.queue[0] = nil
			d.queue = d.queue[1:]
		}

		if c.state == Idle {
			break
		}

		// Medium is busy; back off or give up on this frame
		if d.backoff.Exhausted() {
			log.Debugf("L%d/%d: Backoff retries exhausted; dropping frame", c.params.Link+1, d.endpoint)
			d.drop(DropBackoff)
			d.current = nil
			d.backoff.Reset()
			continue
		}
		d.state = txBackoff
		c.sched.Schedule(d.backoff.Next(c.rng), d.transmitNext)
		return
	}

	d.backoff.Reset()
	d.state = txBusy
	f := d.current
	c.transmitStart(d, f)
	d.stats.TxFrames++
	d.stats.TxBytes += uint64(f.Len())
	c.observer.FrameTransmitted(c.params.Link, f.Len())
	c.sched.Schedule(c.params.DataRate.TxTime(f.WireLen()), d.transmitComplete)
}

func (d *Device) transmitComplete() {
	if d.channel.detached {
		return
	}
	d.channel.transmitEnd()
	d.current = nil
	d.transmitNext()
}

func (d *Device) received(f *frame.Frame) {
	d.stats.RxFrames++
	d.stats.RxBytes += uint64(f.Len())
	d.channel.observer.FrameDelivered(d.channel.params.Link, f.Len())
	if d.receive != nil {
		d.receive(f)
	}
}

func (d *Device) drop(reason DropReason) {
	d.stats.Dropped[reason]++
	d.channel.observer.FrameDropped(d.channel.params.Link, reason)
}

func (d *Device) detach() {
	d.receive = nil
	d.queue = nil
	d.current = nil
	d.state = txReady
}
