// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

// Package frame contains the Ethernet frame carried by simulated channels and its integrity check
package frame

import (
	"fmt"
	"hash/crc32"
	"math/rand"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// HeaderLength is the length of an untagged Ethernet header
const HeaderLength = 14

// Frame is a single layer-2 frame in flight through the simulation
type Frame struct {
	// Data holds the raw Ethernet frame, without FCS
	Data []byte
	// FCS is the frame check sequence computed when the frame entered the simulation
	FCS uint32
	// Checked indicates whether the FCS has been computed and must be validated on delivery
	Checked bool
}

// New creates a frame from a copy of the given bytes; the FCS is computed only if checksum is true
func New(data []byte, checksum bool) *Frame {
	f := &Frame{Data: append([]byte(nil), data...)}
	if checksum {
		f.FCS = crc32.ChecksumIEEE(f.Data)
		f.Checked = true
	}
	return f
}

// Len returns the frame length in bytes
func (f *Frame) Len() int {
	return len(f.Data)
}

// WireLen returns the number of bytes occupying the medium, including the FCS when present
func (f *Frame) WireLen() int {
	if f.Checked {
		return len(f.Data) + crc32.Size
	}
	return len(f.Data)
}

// Valid returns true if the frame passes its integrity check; frames without FCS are always valid
func (f *Frame) Valid() bool {
	if !f.Checked {
		return true
	}
	return crc32.ChecksumIEEE(f.Data) == f.FCS
}

// Corrupt flips a random bit of the frame payload, simulating a receive error on the medium
func (f *Frame) Corrupt(rng *rand.Rand) {
	if len(f.Data) == 0 {
		return
	}
	i := rng.Intn(len(f.Data))
	f.Data[i] ^= 1 << uint(rng.Intn(8))
}

// Clone returns a deep copy of the frame, so each receiver of a shared medium owns its bytes
func (f *Frame) Clone() *Frame {
	return &Frame{Data: append([]byte(nil), f.Data...), FCS: f.FCS, Checked: f.Checked}
}

// Summary returns a short human-readable description of the frame layers, for debug logging
func (f *Frame) Summary() string {
	packet := gopacket.NewPacket(f.Data, layers.LayerTypeEthernet, gopacket.Lazy)
	eth, ok := packet.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if !ok {
		return fmt.Sprintf("non-ethernet length=%d", len(f.Data))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s -> %s %s", eth.SrcMAC, eth.DstMAC, eth.EthernetType)
	if ip, ok := packet.Layer(layers.LayerTypeIPv4).(*layers.IPv4); ok {
		fmt.Fprintf(&b, " %s -> %s %s", ip.SrcIP, ip.DstIP, ip.Protocol)
	}
	fmt.Fprintf(&b, " length=%d", len(f.Data))
	return b.String()
}
