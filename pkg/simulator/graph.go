// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package simulator

import (
	"fmt"
	"time"

	"github.com/onosproject/tapbridge-sim/pkg/simerrors"
	"github.com/onosproject/tapbridge-sim/pkg/simulator/csma"
)

// LinkSpec describes one link of the topology: the two nodes it connects, in endpoint order, and the
// parameters of its channel
type LinkSpec struct {
	NodeA     int
	NodeB     int
	DataRate  csma.DataRate
	Delay     time.Duration
	MTU       int
	ErrorRate float64
}

func (l LinkSpec) String() string {
	return fmt.Sprintf("%d<->%d %s/%s", l.NodeA, l.NodeB, l.DataRate, l.Delay)
}

// Node is a simulated endpoint; its interfaces are kept in link declaration order
type Node struct {
	Index      int
	interfaces []*Interface
}

// Interfaces returns the interfaces of the node ordered by local index
func (n *Node) Interfaces() []*Interface {
	interfaces := make([]*Interface, len(n.interfaces))
	copy(interfaces, n.interfaces)
	return interfaces
}

// Link is one declared link and the channel realizing it
type Link struct {
	Index     int
	Spec      LinkSpec
	Channel   *csma.Channel
	Endpoints [2]*Interface
}

// Name returns the human-readable link name, e.g. L1 for the first declared link
func (l *Link) Name() string {
	return fmt.Sprintf("L%d", l.Index+1)
}

// Interface is the attachment of one node to one link endpoint
type Interface struct {
	// Node is the index of the owning node
	Node int
	// LocalIndex is the per-node sequence number, in link declaration order
	LocalIndex int
	// Link is the index of the link
	Link int
	// Endpoint is the endpoint of the link, 0 for the first declared node and 1 for the second
	Endpoint int

	device  *csma.Device
	binding *BridgeBinding
}

func (i *Interface) String() string {
	return fmt.Sprintf("%d/%d", i.Node, i.LocalIndex)
}

// Device returns the channel device backing the interface; nil once released
func (i *Interface) Device() *csma.Device {
	return i.device
}

// Binding returns the bridge binding of the interface, if any
func (i *Interface) Binding() *BridgeBinding {
	return i.binding
}

// IndexedInterface is an interface paired with its per-node index
type IndexedInterface struct {
	LocalIndex int
	Interface  *Interface
}

// Enumerate returns the interfaces of the node, paired with their local index, in the order the links
// touching the node were declared
func Enumerate(node *Node) []IndexedInterface {
	indexed := make([]IndexedInterface, 0, len(node.interfaces))
	for i, ifc := range node.interfaces {
		indexed = append(indexed, IndexedInterface{LocalIndex: i, Interface: ifc})
	}
	return indexed
}

// GraphOptions holds the optional parameters for building a graph
type GraphOptions struct {
	// Seed is the base seed of the per-link random sources
	Seed int64
	// Observer is notified of channel activity; may be nil
	Observer csma.Observer
}

// Graph is the realized topology: all nodes, all links and their channels
type Graph struct {
	Nodes []*Node
	Links []*Link
}

// BuildGraph creates nodeCount nodes and realizes the given links strictly in declaration order,
// appending the two interfaces of each link to its nodes, endpoint A first
func BuildGraph(sched csma.Scheduler, nodeCount int, links []LinkSpec, opts GraphOptions) (*Graph, error) {
	if nodeCount <= 0 {
		return nil, simerrors.NewInvalidTopology("Node count must be positive, got %d", nodeCount)
	}
	for i, spec := range links {
		if spec.NodeA < 0 || spec.NodeA >= nodeCount {
			return nil, simerrors.NewInvalidTopology("L%d: node %d out of range [0, %d)", i+1, spec.NodeA, nodeCount)
		}
		if spec.NodeB < 0 || spec.NodeB >= nodeCount {
			return nil, simerrors.NewInvalidTopology("L%d: node %d out of range [0, %d)", i+1, spec.NodeB, nodeCount)
		}
	}

	g := &Graph{
		Nodes: make([]*Node, nodeCount),
		Links: make([]*Link, 0, len(links)),
	}
	for i := range g.Nodes {
		g.Nodes[i] = &Node{Index: i}
	}

	for i, spec := range links {
		channel, devA, devB, err := csma.CreateChannel(sched, csma.Params{
			Link:      i,
			DataRate:  spec.DataRate,
			Delay:     spec.Delay,
			MTU:       spec.MTU,
			ErrorRate: spec.ErrorRate,
			Seed:      opts.Seed + int64(i),
			Observer:  opts.Observer,
		})
		if err != nil {
			return nil, err
		}
		link := &Link{Index: i, Spec: spec, Channel: channel}
		link.Endpoints[0] = g.attach(spec.NodeA, i, 0, devA)
		link.Endpoints[1] = g.attach(spec.NodeB, i, 1, devB)
		g.Links = append(g.Links, link)
		log.Debugf("%s: Realized link %s", link.Name(), spec)
	}
	log.Infof("Built graph with %d nodes and %d links", nodeCount, len(links))
	return g, nil
}

func (g *Graph) attach(node int, link int, endpoint int, device *csma.Device) *Interface {
	n := g.Nodes[node]
	ifc := &Interface{
		Node:       node,
		LocalIndex: len(n.interfaces),
		Link:       link,
		Endpoint:   endpoint,
		device:     device,
	}
	n.interfaces = append(n.interfaces, ifc)
	return ifc
}

// Interface returns the interface with the given per-node index
func (g *Graph) Interface(node int, localIndex int) (*Interface, error) {
	if node < 0 || node >= len(g.Nodes) {
		return nil, simerrors.NewInvalidTopology("Node %d not found", node)
	}
	n := g.Nodes[node]
	if localIndex < 0 || localIndex >= len(n.interfaces) {
		return nil, simerrors.NewInvalidTopology("Node %d has no interface %d", node, localIndex)
	}
	return n.interfaces[localIndex], nil
}

// Interfaces returns all interfaces of the graph, ordered by node and local index
func (g *Graph) Interfaces() []*Interface {
	var interfaces []*Interface
	for _, n := range g.Nodes {
		interfaces = append(interfaces, n.interfaces...)
	}
	return interfaces
}

func (g *Graph) owns(ifc *Interface) bool {
	if ifc == nil || ifc.Node < 0 || ifc.Node >= len(g.Nodes) {
		return false
	}
	n := g.Nodes[ifc.Node]
	return ifc.LocalIndex >= 0 && ifc.LocalIndex < len(n.interfaces) && n.interfaces[ifc.LocalIndex] == ifc
}

// release detaches every channel, after which no frame is delivered, and drops the device of every interface
func (g *Graph) release() {
	for _, l := range g.Links {
		l.Channel.Detach()
	}
	for _, n := range g.Nodes {
		for _, ifc := range n.interfaces {
			ifc.device = nil
		}
	}
}
