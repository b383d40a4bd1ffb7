// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package csma

import (
	"math/rand"
	"testing"
	"time"

	"github.com/onosproject/tapbridge-sim/pkg/frame"
	"github.com/onosproject/tapbridge-sim/pkg/simerrors"
	"github.com/onosproject/tapbridge-sim/pkg/simulator/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testObserver struct {
	transmitted int
	delivered   int
	dropped     map[DropReason]int
}

func (o *testObserver) FrameTransmitted(link int, bytes int) { o.transmitted++ }

func (o *testObserver) FrameDelivered(link int, bytes int) { o.delivered++ }

func (o *testObserver) FrameDropped(link int, reason DropReason) {
	if o.dropped == nil {
		o.dropped = make(map[DropReason]int)
	}
	o.dropped[reason]++
}

type arrival struct {
	at   time.Duration
	data []byte
}

func record(s *scheduler.Scheduler, d *Device) *[]arrival {
	arrivals := &[]arrival{}
	d.SetReceiveCallback(func(f *frame.Frame) {
		*arrivals = append(*arrivals, arrival{at: s.Now(), data: f.Data})
	})
	return arrivals
}

func payload(size int, tag byte) []byte {
	b := make([]byte, size)
	b[0] = tag
	return b
}

func TestParseDataRate(t *testing.T) {
	cases := map[string]DataRate{
		"100Mbps":  100 * MegabitPerSecond,
		"10Mbps":   10 * MegabitPerSecond,
		"3Mbps":    3 * MegabitPerSecond,
		"1Gbps":    GigabitPerSecond,
		"1.5Gbps":  1500 * MegabitPerSecond,
		"64kbps":   64 * KilobitPerSecond,
		"64Kbps":   64 * KilobitPerSecond,
		"10 Mb/s":  10 * MegabitPerSecond,
		"125KB/s":  MegabitPerSecond,
		"1Bps":     8,
		"2Kib/s":   2048,
		"9600bps":  9600,
		" 5Mbps  ": 5 * MegabitPerSecond,
	}
	for s, expected := range cases {
		r, err := ParseDataRate(s)
		assert.NoError(t, err, s)
		assert.Equal(t, expected, r, s)
	}

	for _, s := range []string{"", "fast", "-10Mbps", "10", "10Xbps", "Mbps"} {
		_, err := ParseDataRate(s)
		assert.ErrorIs(t, err, simerrors.ErrInvalidChannelParameters, s)
	}

	assert.Equal(t, "100Mbps", (100 * MegabitPerSecond).String())
	assert.Equal(t, "1Gbps", GigabitPerSecond.String())
	assert.Equal(t, "1500kbps", (1500 * KilobitPerSecond).String())
	assert.Equal(t, "9600bps", DataRate(9600).String())
	assert.Equal(t, "0bps", DataRate(0).String())

	assert.Equal(t, time.Millisecond, (8 * MegabitPerSecond).TxTime(1000))
	assert.Equal(t, time.Duration(0), DataRate(0).TxTime(1000))
}

func TestInvalidParameters(t *testing.T) {
	s := scheduler.New(scheduler.Config{})
	for _, p := range []Params{
		{DataRate: 0, Delay: time.Millisecond},
		{DataRate: MegabitPerSecond, Delay: 0},
		{DataRate: MegabitPerSecond, Delay: -time.Millisecond},
		{DataRate: MegabitPerSecond, Delay: time.Millisecond, MTU: -1},
		{DataRate: MegabitPerSecond, Delay: time.Millisecond, QueueSize: -1},
		{DataRate: MegabitPerSecond, Delay: time.Millisecond, ErrorRate: 1},
	} {
		_, _, _, err := CreateChannel(s, p)
		assert.ErrorIs(t, err, simerrors.ErrInvalidChannelParameters, "%+v", p)
	}
}

func TestDeliveryDelay(t *testing.T) {
	s := scheduler.New(scheduler.Config{})
	c, a, b, err := CreateChannel(s, Params{DataRate: 8 * MegabitPerSecond, Delay: 5 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, a, c.Device(0))
	assert.Equal(t, b, c.Device(1))
	assert.Equal(t, 0, a.Endpoint())
	assert.Equal(t, 1, b.Endpoint())
	assert.Equal(t, DefaultMTU, c.MTU())

	atA := record(s, a)
	atB := record(s, b)
	s.Schedule(0, func() { assert.True(t, a.Send(frame.New(payload(1000, 1), false))) })
	s.Run(time.Second)

	require.Len(t, *atB, 1)
	assert.Len(t, *atA, 0)
	// 1ms serialization plus 5ms propagation
	assert.Equal(t, 6*time.Millisecond, (*atB)[0].at)
	assert.Equal(t, byte(1), (*atB)[0].data[0])
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, uint64(1), a.Stats().TxFrames)
	assert.Equal(t, uint64(1000), b.Stats().RxBytes)
}

func TestContention(t *testing.T) {
	s := scheduler.New(scheduler.Config{})
	observer := &testObserver{}
	_, a, b, err := CreateChannel(s, Params{DataRate: 8 * MegabitPerSecond, Delay: 5 * time.Millisecond, Observer: observer})
	require.NoError(t, err)

	atA := record(s, a)
	atB := record(s, b)
	s.Schedule(0, func() {
		a.Send(frame.New(payload(1000, 1), false))
		b.Send(frame.New(payload(1000, 2), false))
	})
	s.Run(time.Second)

	require.Len(t, *atB, 1)
	require.Len(t, *atA, 1)
	assert.Equal(t, 6*time.Millisecond, (*atB)[0].at)
	// B found the medium busy and only transmitted once it was idle again
	assert.GreaterOrEqual(t, (*atA)[0].at, 12*time.Millisecond)
	assert.Equal(t, 2, observer.transmitted)
	assert.Equal(t, 2, observer.delivered)
	assert.Empty(t, observer.dropped)
}

func TestBandwidthBound(t *testing.T) {
	s := scheduler.New(scheduler.Config{})
	_, a, b, err := CreateChannel(s, Params{DataRate: 8 * MegabitPerSecond, Delay: 100 * time.Microsecond})
	require.NoError(t, err)
	atB := record(s, b)

	const count = 10
	s.Schedule(0, func() {
		for i := 0; i < count; i++ {
			a.Send(frame.New(payload(1000, byte(i)), true))
		}
	})
	s.Run(time.Second)

	require.Len(t, *atB, count)
	var last time.Duration
	for i, arr := range *atB {
		assert.Equal(t, byte(i), arr.data[0], "frames are delivered in order")
		if i > 0 {
			// 1004 bytes on the wire at 8Mbps
			assert.GreaterOrEqual(t, arr.at-last, (8 * MegabitPerSecond).TxTime(1004))
		}
		last = arr.at
	}
	assert.GreaterOrEqual(t, last, count*time.Millisecond)
}

func TestDrops(t *testing.T) {
	s := scheduler.New(scheduler.Config{})
	observer := &testObserver{}
	_, a, b, err := CreateChannel(s, Params{
		DataRate:  MegabitPerSecond,
		Delay:     time.Millisecond,
		MTU:       100,
		QueueSize: 2,
		Observer:  observer,
	})
	require.NoError(t, err)
	atB := record(s, b)

	s.Schedule(0, func() {
		assert.False(t, a.Send(frame.New(payload(115, 0), false)))
		assert.True(t, a.Send(frame.New(payload(114, 1), false)))
		assert.True(t, a.Send(frame.New(payload(50, 2), false)))
		assert.True(t, a.Send(frame.New(payload(50, 3), false)))
		assert.False(t, a.Send(frame.New(payload(50, 4), false)))
	})
	s.Run(time.Second)

	assert.Len(t, *atB, 3)
	assert.Equal(t, 1, observer.dropped[DropMTU])
	assert.Equal(t, 1, observer.dropped[DropQueueFull])
	assert.Equal(t, uint64(1), a.Stats().Dropped[DropMTU])
}

func TestIntegrityCheck(t *testing.T) {
	run := func(checksum bool) (delivered int, corrupted int, dropped uint64) {
		s := scheduler.New(scheduler.Config{})
		_, a, b, err := CreateChannel(s, Params{
			DataRate:  100 * MegabitPerSecond,
			Delay:     time.Millisecond,
			ErrorRate: 0.999,
			Seed:      7,
		})
		require.NoError(t, err)
		b.SetReceiveCallback(func(f *frame.Frame) {
			delivered++
			if f.Data[1] != 0 || f.Data[0] != 9 {
				corrupted++
			}
		})
		s.Schedule(0, func() {
			for i := 0; i < 20; i++ {
				a.Send(frame.New([]byte{9, 0}, checksum))
			}
		})
		s.Run(time.Second)
		return delivered, corrupted, b.Stats().Dropped[DropChecksum]
	}

	delivered, _, dropped := run(true)
	assert.Less(t, delivered, 5)
	assert.Equal(t, uint64(20-delivered), dropped)

	delivered, corrupted, dropped := run(false)
	assert.Equal(t, 20, delivered)
	assert.Greater(t, corrupted, 15)
	assert.Equal(t, uint64(0), dropped)
}

func TestDetach(t *testing.T) {
	s := scheduler.New(scheduler.Config{})
	c, a, b, err := CreateChannel(s, Params{DataRate: MegabitPerSecond, Delay: 10 * time.Millisecond})
	require.NoError(t, err)
	atB := record(s, b)

	s.Schedule(0, func() { a.Send(frame.New(payload(10, 1), false)) })
	s.Schedule(time.Millisecond, func() {
		c.Detach()
		assert.False(t, a.Send(frame.New(payload(10, 2), false)))
	})
	s.Run(time.Second)

	assert.True(t, c.Detached())
	assert.Len(t, *atB, 0)
	assert.Equal(t, uint64(1), a.Stats().Dropped[DropDetached])
}

func TestBackoff(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	b := DefaultBackoff()
	assert.Equal(t, time.Microsecond, b.Next(rng))
	for i := 0; i < 20; i++ {
		d := b.Next(rng)
		assert.GreaterOrEqual(t, d, time.Microsecond)
		assert.LessOrEqual(t, d, 1000*time.Microsecond)
	}
	assert.Equal(t, 21, b.Retries())
	assert.False(t, b.Exhausted())
	b.Reset()
	assert.Equal(t, 0, b.Retries())

	short := Backoff{SlotTime: time.Microsecond, MinSlots: 1, MaxSlots: 4, Ceiling: 2, MaxRetries: 2}
	short.Next(rng)
	short.Next(rng)
	assert.True(t, short.Exhausted())
}

func TestBackoffExhausted(t *testing.T) {
	s := scheduler.New(scheduler.Config{})
	_, a, b, err := CreateChannel(s, Params{DataRate: KilobitPerSecond, Delay: time.Millisecond})
	require.NoError(t, err)
	b.SetBackoff(Backoff{SlotTime: time.Microsecond, MinSlots: 1, MaxSlots: 1, Ceiling: 1, MaxRetries: 3})
	atA := record(s, a)

	s.Schedule(0, func() {
		// 100 bytes at 1kbps occupy the medium for 800ms
		a.Send(frame.New(payload(100, 1), false))
		b.Send(frame.New(payload(10, 2), false))
	})
	s.Run(2 * time.Second)

	assert.Len(t, *atA, 0)
	assert.Equal(t, uint64(1), b.Stats().Dropped[DropBackoff])
}
