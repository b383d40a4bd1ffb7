// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package topo

import (
	"fmt"
	"sort"

	"github.com/onosproject/tapbridge-sim/pkg/simerrors"
	"github.com/onosproject/tapbridge-sim/pkg/simulator"
)

// DefaultNameFormat is the device naming convention shared with the host setup scripts
const DefaultNameFormat = "tap_%d_%d"

// DeviceName derives the external device name of an interface from its node index and local index
func DeviceName(format string, nodeBase int, node int, localIndex int) string {
	if format == "" {
		format = DefaultNameFormat
	}
	return fmt.Sprintf(format, node+nodeBase, localIndex)
}

// DeviceBinding is a resolved assignment of one node interface to an external device
type DeviceBinding struct {
	Node      int
	Interface int
	Device    string
	Mode      simulator.Mode
}

func (b DeviceBinding) String() string {
	return fmt.Sprintf("(%d, %d) -> %s", b.Node, b.Interface, b.Device)
}

// ResolveBindings computes the device binding of every interface to be exposed, ordered by node and
// local index. Explicit bindings take precedence; with automatic naming enabled, all other interfaces
// are bound to derived names.
func (t *Topology) ResolveBindings() ([]DeviceBinding, error) {
	type key struct{ node, local int }
	resolved := make(map[key]DeviceBinding)

	for _, b := range t.Bindings {
		k := key{b.Node, b.Interface}
		if existing, ok := resolved[k]; ok {
			return nil, simerrors.NewDuplicateBinding("Interface %d/%d bound to both %s and %s", b.Node, b.Interface, existing.Device, b.Device)
		}
		mode, err := simulator.ParseMode(pick(b.Mode, t.Defaults.Mode))
		if err != nil {
			return nil, err
		}
		resolved[k] = DeviceBinding{Node: b.Node, Interface: b.Interface, Device: b.Device, Mode: mode}
	}

	if t.Naming.Auto {
		mode, err := simulator.ParseMode(t.Defaults.Mode)
		if err != nil {
			return nil, err
		}
		for node, count := range t.InterfaceCounts() {
			for local := 0; local < count; local++ {
				k := key{node, local}
				if _, ok := resolved[k]; ok {
					continue
				}
				resolved[k] = DeviceBinding{
					Node:      node,
					Interface: local,
					Device:    DeviceName(t.Naming.Format, t.Naming.NodeBase, node, local),
					Mode:      mode,
				}
			}
		}
	}

	bindings := make([]DeviceBinding, 0, len(resolved))
	for _, b := range resolved {
		bindings = append(bindings, b)
	}
	sort.Slice(bindings, func(i, j int) bool {
		if bindings[i].Node == bindings[j].Node {
			return bindings[i].Interface < bindings[j].Interface
		}
		return bindings[i].Node < bindings[j].Node
	})

	names := make(map[string]DeviceBinding, len(bindings))
	for _, b := range bindings {
		if other, ok := names[b.Device]; ok {
			return nil, simerrors.NewNameCollision("Device %s assigned to both %d/%d and %d/%d", b.Device, other.Node, other.Interface, b.Node, b.Interface)
		}
		names[b.Device] = b
	}
	return bindings, nil
}

// Realize builds the simulation of the topology and establishes all its bindings; the simulation is
// returned ready to run
func (t *Topology) Realize(cfg simulator.RunConfiguration) (*simulator.Simulation, error) {
	links, err := t.LinkSpecs()
	if err != nil {
		return nil, err
	}
	bindings, err := t.ResolveBindings()
	if err != nil {
		return nil, err
	}
	sim, err := simulator.NewSimulation(cfg, t.Nodes, links)
	if err != nil {
		return nil, err
	}
	for _, b := range bindings {
		ifc, err := sim.Interface(b.Node, b.Interface)
		if err != nil {
			sim.Close()
			return nil, err
		}
		if _, err := sim.Bind(ifc, b.Device, b.Mode); err != nil {
			sim.Close()
			return nil, err
		}
	}
	return sim, nil
}
