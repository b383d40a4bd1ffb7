// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package topo

// DefaultTopology returns the three-node test network used when no topology file is given
func DefaultTopology() *Topology {
	return &Topology{
		Nodes:  3,
		Naming: Naming{Auto: true, Format: DefaultNameFormat, NodeBase: 1},
		Links: []Link{
			{A: 0, B: 1, DataRate: "100Mbps", Delay: "1ms", Comment: "10.0.1.0/24"},
			{A: 0, B: 2, DataRate: "10Mbps", Delay: "5ms", Comment: "10.0.2.0/24"},
			{A: 1, B: 2, DataRate: "50Mbps", Delay: "2ms", Comment: "10.0.3.0/24"},
		},
	}
}
