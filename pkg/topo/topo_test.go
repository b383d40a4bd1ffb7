// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package topo

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/onosproject/tapbridge-sim/pkg/simerrors"
	"github.com/onosproject/tapbridge-sim/pkg/simulator"
	"github.com/onosproject/tapbridge-sim/pkg/simulator/csma"
	"github.com/onosproject/tapbridge-sim/pkg/simulator/tap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deviceNames(bindings []DeviceBinding) []string {
	names := make([]string, 0, len(bindings))
	for _, b := range bindings {
		names = append(names, b.Device)
	}
	return names
}

func findBinding(bindings []DeviceBinding, node int, local int) DeviceBinding {
	for _, b := range bindings {
		if b.Node == node && b.Interface == local {
			return b
		}
	}
	return DeviceBinding{}
}

func TestLoadTestTopology(t *testing.T) {
	topology := &Topology{}
	require.NoError(t, LoadTopologyFile("../../topologies/test.yaml", topology))
	assert.Equal(t, 3, topology.Nodes)
	assert.Len(t, topology.Links, 3)
	assert.Equal(t, DefaultTopology().Links, topology.Links)

	links, err := topology.LinkSpecs()
	require.NoError(t, err)
	assert.Equal(t, 10*csma.MegabitPerSecond, links[1].DataRate)
	assert.Equal(t, 5*time.Millisecond, links[1].Delay)

	bindings, err := topology.ResolveBindings()
	require.NoError(t, err)
	assert.Equal(t, []string{"tap_1_0", "tap_1_1", "tap_2_0", "tap_2_1", "tap_3_0", "tap_3_1"}, deviceNames(bindings))
	for _, b := range bindings {
		assert.Equal(t, simulator.ModeUseBridge, b.Mode)
	}
}

func TestLoadNewYorkTopology(t *testing.T) {
	topology := &Topology{}
	require.NoError(t, LoadTopologyFile("../../topologies/newyork.yaml", topology))
	assert.Equal(t, 18, topology.Nodes)
	assert.Len(t, topology.Links, 51)

	counts := topology.InterfaceCounts()
	assert.Equal(t, 8, counts[0])
	assert.Equal(t, 12, counts[6])
	assert.Equal(t, 7, counts[13])
	assert.Equal(t, 1, counts[16])
	assert.Equal(t, 1, counts[17])

	links, err := topology.LinkSpecs()
	require.NoError(t, err)
	assert.Equal(t, 3*csma.MegabitPerSecond, links[0].DataRate)
	assert.Equal(t, 100*csma.MegabitPerSecond, links[50].DataRate)
	assert.Equal(t, time.Millisecond, links[50].Delay)

	bindings, err := topology.ResolveBindings()
	require.NoError(t, err)
	assert.Len(t, bindings, 2*51)
	assert.Equal(t, "tap_6_11", findBinding(bindings, 6, 11).Device)
	assert.Equal(t, "tap_13_6", findBinding(bindings, 13, 6).Device)
	assert.Equal(t, "tap_17_0", findBinding(bindings, 17, 0).Device)
}

func TestLoadTwoPathTopology(t *testing.T) {
	topology := &Topology{}
	require.NoError(t, LoadTopologyFile("../../topologies/twopath.yaml", topology))
	bindings, err := topology.ResolveBindings()
	require.NoError(t, err)
	assert.Len(t, bindings, 14)

	assert.Equal(t, "tap_0_0", findBinding(bindings, 0, 0).Device)
	assert.Equal(t, "tap_1_2", findBinding(bindings, 1, 0).Device)
	assert.Equal(t, "tap_1_0", findBinding(bindings, 1, 1).Device)
	assert.Equal(t, "tap_1_1", findBinding(bindings, 1, 2).Device)
	assert.Equal(t, "tap_3_0", findBinding(bindings, 3, 0).Device)
	assert.Equal(t, "tap_3_2", findBinding(bindings, 3, 1).Device)
	assert.Equal(t, "tap_3_1", findBinding(bindings, 3, 2).Device)
	assert.Equal(t, "tap_6_1", findBinding(bindings, 6, 1).Device)

	links, err := topology.LinkSpecs()
	require.NoError(t, err)
	assert.Equal(t, 3*csma.MegabitPerSecond, links[5].DataRate)
}

func readTopology(t *testing.T, text string) (*Topology, error) {
	topology := &Topology{}
	err := ReadTopology(strings.NewReader(text), topology)
	return topology, err
}

func TestInvalidTopologies(t *testing.T) {
	_, err := readTopology(t, "nodes: 0\n")
	assert.ErrorIs(t, err, simerrors.ErrInvalidTopology)

	_, err = readTopology(t, "nodes: 3\nlinks:\n  - {a: 0, b: 5}\n")
	assert.ErrorIs(t, err, simerrors.ErrInvalidTopology)

	_, err = readTopology(t, "nodes: 3\nlinks:\n  - {a: 0, b: 1, error_rate: 1.5}\n")
	assert.ErrorIs(t, err, simerrors.ErrInvalidTopology)

	_, err = readTopology(t, "nodes: 3\nlinks:\n  - {a: 0, b: 1}\nbindings:\n  - {node: 2, interface: 0, device: tap_x}\n")
	assert.ErrorIs(t, err, simerrors.ErrInvalidTopology)

	_, err = readTopology(t, "nodes: 3\nlinks:\n  - {a: 0, b: 1}\nbindings:\n  - {node: 0, interface: 0, device: a-name-far-too-long}\n")
	assert.ErrorIs(t, err, simerrors.ErrInvalidTopology)

	_, err = readTopology(t, "nodes: 3\nlinks:\n  - {a: 0, b: 1}\nbindings:\n  - {node: 0, interface: 0, device: tap_x, mode: Magic}\n")
	assert.ErrorIs(t, err, simerrors.ErrInvalidTopology)

	topology, err := readTopology(t, "nodes: 2\nlinks:\n  - {a: 0, b: 1, data_rate: fast}\n")
	require.NoError(t, err)
	_, err = topology.LinkSpecs()
	assert.ErrorIs(t, err, simerrors.ErrInvalidChannelParameters)

	topology, err = readTopology(t, "nodes: 2\nlinks:\n  - {a: 0, b: 1, delay: soon}\n")
	require.NoError(t, err)
	_, err = topology.LinkSpecs()
	assert.ErrorIs(t, err, simerrors.ErrInvalidChannelParameters)
}

func TestBindingConflicts(t *testing.T) {
	topology, err := readTopology(t, `nodes: 2
links:
  - {a: 0, b: 1}
bindings:
  - {node: 0, interface: 0, device: tap_a}
  - {node: 0, interface: 0, device: tap_b}
`)
	require.NoError(t, err)
	_, err = topology.ResolveBindings()
	assert.ErrorIs(t, err, simerrors.ErrDuplicateBinding)

	topology, err = readTopology(t, `nodes: 2
naming: {auto: true}
links:
  - {a: 0, b: 1}
bindings:
  - {node: 0, interface: 0, device: tap_1_0}
`)
	require.NoError(t, err)
	_, err = topology.ResolveBindings()
	assert.ErrorIs(t, err, simerrors.ErrNameCollision)

	// Without automatic naming only the explicit bindings are made
	topology, err = readTopology(t, `nodes: 2
links:
  - {a: 0, b: 1}
bindings:
  - {node: 1, interface: 0, device: tap_b, mode: UseBridge}
`)
	require.NoError(t, err)
	bindings, err := topology.ResolveBindings()
	require.NoError(t, err)
	assert.Equal(t, []string{"tap_b"}, deviceNames(bindings))
}

func TestDeviceName(t *testing.T) {
	assert.Equal(t, "tap_1_0", DeviceName("", 1, 0, 0))
	assert.Equal(t, "tap_6_11", DeviceName(DefaultNameFormat, 0, 6, 11))
	assert.Equal(t, "veth7-2", DeviceName("veth%d-%d", 2, 5, 2))
}

func TestRealize(t *testing.T) {
	topology := DefaultTopology()
	bindings, err := topology.ResolveBindings()
	require.NoError(t, err)
	devices := tap.NewMemory(deviceNames(bindings)...)

	cfg := simulator.RunConfiguration{Duration: time.Second, OpenDevice: devices.Open}
	sim, err := topology.Realize(cfg)
	require.NoError(t, err)
	assert.Len(t, sim.Bindings(), 6)
	report, err := sim.Run()
	require.NoError(t, err)
	assert.Equal(t, time.Second, report.SimTime)

	// A missing device fails the whole realization and releases the devices already opened
	devices = tap.NewMemory("tap_1_0", "tap_1_1", "tap_2_0")
	cfg.OpenDevice = devices.Open
	_, err = topology.Realize(cfg)
	assert.ErrorIs(t, err, simerrors.ErrExternalDeviceUnavailable)
	d, err := devices.Open("tap_1_0")
	require.NoError(t, err)
	assert.NoError(t, d.Close())
}

func TestGenerateShapes(t *testing.T) {
	assert.Len(t, GenerateLine(&Shape{Nodes: 5}).Links, 4)
	assert.Len(t, GenerateRing(&Shape{Nodes: 5}).Links, 5)
	assert.Len(t, GenerateRing(&Shape{Nodes: 2}).Links, 1)
	assert.Len(t, GenerateStar(&Shape{Nodes: 5}).Links, 4)
	assert.Len(t, GenerateMesh(&Shape{Nodes: 5}).Links, 10)
	assert.Equal(t, 4, GenerateMesh(&Shape{}).Nodes)

	_, err := GenerateFromRecipe(&Recipe{})
	assert.Error(t, err)
}

func TestGenerateTopology(t *testing.T) {
	dir := t.TempDir()
	recipeFile := filepath.Join(dir, "ring_recipe.yaml")
	topoFile := filepath.Join(dir, "ring.yaml")
	require.NoError(t, os.WriteFile(recipeFile, []byte(`ring:
  nodes: 4
  data_rate: 10Mbps
  delay: 2ms
  node_base: 1
`), 0600))
	require.NoError(t, GenerateTopology(recipeFile, topoFile))

	topology := &Topology{}
	require.NoError(t, LoadTopologyFile(topoFile, topology))
	assert.Equal(t, 4, topology.Nodes)
	assert.Len(t, topology.Links, 4)
	assert.Equal(t, Link{A: 3, B: 0}, topology.Links[3])

	links, err := topology.LinkSpecs()
	require.NoError(t, err)
	assert.Equal(t, 10*csma.MegabitPerSecond, links[0].DataRate)
	assert.Equal(t, 2*time.Millisecond, links[0].Delay)

	bindings, err := topology.ResolveBindings()
	require.NoError(t, err)
	assert.Equal(t, "tap_1_0", bindings[0].Device)
}

func TestWriteSetupScript(t *testing.T) {
	bindings, err := DefaultTopology().ResolveBindings()
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	require.NoError(t, WriteSetupScript(buf, bindings, SetupOptions{User: "sim"}))
	script := buf.String()
	assert.True(t, strings.HasPrefix(script, "#!/bin/sh\n"))
	assert.Contains(t, script, "ip tuntap add dev tap_1_0 mode tap user sim\n")
	assert.Contains(t, script, "ip link set dev tap_3_1 promisc on up\n")
	assert.Equal(t, 6, strings.Count(script, "ip tuntap add"))

	buf.Reset()
	require.NoError(t, WriteSetupScript(buf, bindings, SetupOptions{Teardown: true}))
	assert.Contains(t, buf.String(), "ip tuntap del dev tap_2_1 mode tap\n")
	assert.NotContains(t, buf.String(), "add dev")
}
