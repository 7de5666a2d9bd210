// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package header provides encoding and decoding of the wire formats the
// stack speaks directly: Ethernet, ARP, the IPv4/IPv6 address helpers,
// and the IGMP/MLD membership report layouts.
package header

import (
	"encoding/binary"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
)

const (
	dstMAC    = 0
	srcMAC    = 6
	ethType   = 12
	ethHdrLen = 14
)

const (
	// EthernetMinimumSize is the Ethernet header length.
	EthernetMinimumSize = ethHdrLen

	// EthernetAddressSize is the length of a MAC address.
	EthernetAddressSize = 6
)

// Ethertypes understood by the stack core.
const (
	EtherTypeIPv4 uint16 = 0x0800
	EtherTypeARP  uint16 = 0x0806
	EtherTypeVLAN uint16 = 0x8100
	EtherTypeIPv6 uint16 = 0x86dd
	EtherTypeVMAN uint16 = 0x88a8
)

// EthernetFields holds the parsed fields of an Ethernet header.
type EthernetFields struct {
	SrcAddr tcpip.LinkAddress
	DstAddr tcpip.LinkAddress
	Type    uint16
}

// Ethernet is an Ethernet header backed by wire bytes.
type Ethernet []byte

// SourceAddress returns the source MAC.
func (b Ethernet) SourceAddress() tcpip.LinkAddress {
	return tcpip.LinkAddress(b[srcMAC:][:EthernetAddressSize])
}

// DestinationAddress returns the destination MAC.
func (b Ethernet) DestinationAddress() tcpip.LinkAddress {
	return tcpip.LinkAddress(b[dstMAC:][:EthernetAddressSize])
}

// Type returns the ethertype.
func (b Ethernet) Type() uint16 {
	return binary.BigEndian.Uint16(b[ethType:])
}

// Encode writes f into b, which must be at least EthernetMinimumSize
// bytes long.
func (b Ethernet) Encode(f *EthernetFields) {
	copy(b[dstMAC:][:EthernetAddressSize], f.DstAddr)
	copy(b[srcMAC:][:EthernetAddressSize], f.SrcAddr)
	binary.BigEndian.PutUint16(b[ethType:], f.Type)
}
