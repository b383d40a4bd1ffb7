// SPDX-FileCopyrightText: 2022-present Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// IP returns the given IPv4 address as bytes
func IP(addr string) []byte {
	return net.ParseIP(addr).To4()
}

// MAC returns the given MAC address as bytes
func MAC(addr string) []byte {
	b, _ := net.ParseMAC(addr)
	return b
}

var serializeOptions = gopacket.SerializeOptions{
	FixLengths:       true,
	ComputeChecksums: true,
}

// ARPRequestPacket returns packet bytes with an ARP request for the specified IP address
func ARPRequestPacket(theirIP []byte, ourMAC []byte, ourIP []byte) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       ourMAC,
		DstMAC:       net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   ourMAC,
		SourceProtAddress: ourIP,
		DstHwAddress:      []byte{0, 0, 0, 0, 0, 0},
		DstProtAddress:    theirIP,
	}
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, serializeOptions, eth, arp)
	return buf.Bytes(), err
}

// UDPPacket returns packet bytes of an Ethernet/IPv4/UDP datagram carrying the given payload
func UDPPacket(srcMAC, dstMAC []byte, srcIP, dstIP []byte, srcPort, dstPort uint16, payload []byte) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    srcIP,
		DstIP:    dstIP,
	}
	udp := &layers.UDP{
		SrcPort: layers.UDPPort(srcPort),
		DstPort: layers.UDPPort(dstPort),
	}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}
	buf := gopacket.NewSerializeBuffer()
	err := gopacket.SerializeLayers(buf, serializeOptions, eth, ip, udp, gopacket.Payload(payload))
	return buf.Bytes(), err
}
