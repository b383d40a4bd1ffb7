// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package simulator

import (
	"fmt"
	"testing"
	"time"

	"github.com/onosproject/onos-lib-go/pkg/errors"
	"github.com/onosproject/tapbridge-sim/pkg/simerrors"
	"github.com/onosproject/tapbridge-sim/pkg/simulator/csma"
	"github.com/onosproject/tapbridge-sim/pkg/simulator/scheduler"
	"github.com/onosproject/tapbridge-sim/pkg/simulator/tap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	nopObserver
	bridged map[Direction]int
}

func (o *countingObserver) BridgeFrame(device string, direction Direction) {
	o.bridged[direction]++
}

func TestDefaultRunConfiguration(t *testing.T) {
	cfg := DefaultRunConfiguration()
	assert.True(t, cfg.Realtime)
	assert.True(t, cfg.ChecksumEnabled)
	assert.Equal(t, 600*time.Second, cfg.Duration)
	assert.Equal(t, scheduler.DefaultOverrunSlack, cfg.OverrunSlack)
	assert.NotNil(t, cfg.OpenDevice)
}

func TestNewSimulationInvalid(t *testing.T) {
	_, err := NewSimulation(RunConfiguration{}, 3, []LinkSpec{link(0, 5, csma.MegabitPerSecond, time.Millisecond)})
	assert.ErrorIs(t, err, simerrors.ErrInvalidTopology)

	_, err = NewSimulation(RunConfiguration{}, 3, []LinkSpec{link(0, 1, csma.MegabitPerSecond, 0)})
	assert.ErrorIs(t, err, simerrors.ErrInvalidChannelParameters)
}

func TestEndToEnd(t *testing.T) {
	devices := tap.NewMemory()
	cfg := RunConfiguration{ChecksumEnabled: true, Duration: 10 * time.Second}
	sim := newTestSimulation(t, cfg, 3, exampleLinks(), devices)
	assert.Equal(t, Configured, sim.State())
	assert.Equal(t, 10*time.Second, sim.Config().Duration)

	indexed := Enumerate(sim.Graph().Nodes[1])
	require.Len(t, indexed, 2)
	assert.Equal(t, 0, indexed[0].LocalIndex)
	assert.Equal(t, 1, indexed[1].LocalIndex)

	for _, n := range sim.Graph().Nodes {
		for _, ii := range Enumerate(n) {
			name := fmt.Sprintf("tap_%d_%d", n.Index, ii.LocalIndex)
			devices.Add(name)
			_, err := sim.Bind(ii.Interface, name, ModeUseBridge)
			require.NoError(t, err)
		}
	}
	assert.Len(t, sim.Bindings(), 4)

	report, err := sim.Run()
	require.NoError(t, err)
	assert.Equal(t, Stopped, sim.State())
	assert.Equal(t, 10*time.Second, report.SimTime)
	assert.Zero(t, report.Dropped())
	assert.Zero(t, report.Overruns)

	// Teardown is terminal
	_, err = sim.Run()
	assert.True(t, errors.IsConflict(err))
	for _, l := range sim.Graph().Links {
		assert.True(t, l.Channel.Detached())
	}
	for _, ifc := range sim.Graph().Interfaces() {
		assert.Nil(t, ifc.Device())
	}

	// Devices are released and can be attached again
	for _, b := range sim.Bindings() {
		d, err := devices.Open(b.DeviceName)
		require.NoError(t, err)
		assert.NoError(t, d.Close())
	}
}

func TestNoDeliveryAfterStop(t *testing.T) {
	devices := tap.NewMemory("tap_a", "tap_b")
	observer := &countingObserver{bridged: make(map[Direction]int)}
	cfg := RunConfiguration{Realtime: true, Duration: 100 * time.Millisecond, Observer: observer}
	sim := newTestSimulation(t, cfg, 2, []LinkSpec{link(0, 1, csma.MegabitPerSecond, time.Millisecond)}, devices)
	_, err := sim.Bind(mustInterface(t, sim, 0, 0), "tap_a", ModeUseBridge)
	require.NoError(t, err)
	_, err = sim.Bind(mustInterface(t, sim, 1, 0), "tap_b", ModeUseBridge)
	require.NoError(t, err)

	_, err = sim.Run()
	require.NoError(t, err)

	devices.Device("tap_a").Send(make([]byte, 64))
	select {
	case <-devices.Device("tap_b").Receive():
		t.Fatal("frame delivered after teardown")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Zero(t, observer.bridged[Ingress])
	assert.Zero(t, observer.bridged[Egress])
}
