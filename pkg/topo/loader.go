// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package topo

import (
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/onosproject/tapbridge-sim/pkg/simerrors"
	"github.com/onosproject/tapbridge-sim/pkg/simulator"
	"github.com/onosproject/tapbridge-sim/pkg/simulator/csma"
	"github.com/spf13/viper"
)

const (
	// DefaultDataRate is the data rate of links that specify none
	DefaultDataRate = "100Mbps"
	// DefaultDelay is the propagation delay of links that specify none
	DefaultDelay = "1ms"
)

var validate = validator.New()

// LoadTopologyFile loads and validates the specified topology YAML file; - reads from stdin
func LoadTopologyFile(path string, topology *Topology) error {
	log.Infof("Loading topology from %s", path)
	cfg, err := readConfig(path)
	if err != nil {
		return simerrors.NewInvalidTopology("Unable to read topology %s: %v", path, err)
	}
	return unmarshalTopology(cfg, topology)
}

// ReadTopology reads and validates a topology in YAML form
func ReadTopology(r io.Reader, topology *Topology) error {
	cfg := viper.New()
	cfg.SetConfigType("yaml")
	if err := cfg.ReadConfig(r); err != nil {
		return simerrors.NewInvalidTopology("Unable to read topology: %v", err)
	}
	return unmarshalTopology(cfg, topology)
}

func unmarshalTopology(cfg *viper.Viper, topology *Topology) error {
	if err := cfg.Unmarshal(topology); err != nil {
		return simerrors.NewInvalidTopology("Unable to decode topology: %v", err)
	}
	if err := topology.Validate(); err != nil {
		return err
	}
	log.Debugf("Nodes: %d; links: %d; bindings: %d", topology.Nodes, len(topology.Links), len(topology.Bindings))
	return nil
}

// Validate checks the topology is well formed
func (t *Topology) Validate() error {
	if err := validate.Struct(t); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			e := errs[0]
			return simerrors.NewInvalidTopology("%s: failed %s%s validation", e.Namespace(), e.Tag(), param(e.Param()))
		}
		return simerrors.NewInvalidTopology("%v", err)
	}
	for i, l := range t.Links {
		if l.A >= t.Nodes || l.B >= t.Nodes {
			return simerrors.NewInvalidTopology("L%d: link %d<->%d references a node outside [0, %d)", i+1, l.A, l.B, t.Nodes)
		}
	}
	counts := t.InterfaceCounts()
	for _, b := range t.Bindings {
		if b.Node >= t.Nodes {
			return simerrors.NewInvalidTopology("Binding %s references node %d outside [0, %d)", b.Device, b.Node, t.Nodes)
		}
		if b.Interface >= counts[b.Node] {
			return simerrors.NewInvalidTopology("Binding %s references interface %d of node %d, which has %d", b.Device, b.Interface, b.Node, counts[b.Node])
		}
	}
	return nil
}

func param(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}

// InterfaceCounts returns the number of interfaces of every node, which is the number of links touching it
func (t *Topology) InterfaceCounts() []int {
	counts := make([]int, t.Nodes)
	for _, l := range t.Links {
		if l.A >= 0 && l.A < t.Nodes {
			counts[l.A]++
		}
		if l.B >= 0 && l.B < t.Nodes {
			counts[l.B]++
		}
	}
	return counts
}

// LinkSpecs converts the links to the form consumed by the graph builder, in declaration order
func (t *Topology) LinkSpecs() ([]simulator.LinkSpec, error) {
	specs := make([]simulator.LinkSpec, 0, len(t.Links))
	for i, l := range t.Links {
		rate, err := csma.ParseDataRate(pick(l.DataRate, t.Defaults.DataRate, DefaultDataRate))
		if err != nil {
			return nil, simerrors.NewInvalidChannelParameters("L%d: %v", i+1, err)
		}
		delay, err := time.ParseDuration(pick(l.Delay, t.Defaults.Delay, DefaultDelay))
		if err != nil {
			return nil, simerrors.NewInvalidChannelParameters("L%d: invalid delay: %v", i+1, err)
		}
		mtu := l.MTU
		if mtu == 0 {
			mtu = t.Defaults.MTU
		}
		errorRate := l.ErrorRate
		if errorRate == 0 {
			errorRate = t.Defaults.ErrorRate
		}
		specs = append(specs, simulator.LinkSpec{
			NodeA:     l.A,
			NodeB:     l.B,
			DataRate:  rate,
			Delay:     delay,
			MTU:       mtu,
			ErrorRate: errorRate,
		})
	}
	return specs, nil
}

// Returns the first non-empty value
func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
