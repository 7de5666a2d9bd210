// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package header

import "github.com/nomadarchitect/tinynet/pkg/tcpip"

const (
	// IPv4AddressSize is the length of an IPv4 address.
	IPv4AddressSize = 4

	// IPv4ProtocolNumber is the ethertype of IPv4.
	IPv4ProtocolNumber = EtherTypeIPv4
)

// IPv4Any is the unspecified IPv4 address.
const IPv4Any = tcpip.Address("\x00\x00\x00\x00")

// IPv4Broadcast is the limited broadcast address.
const IPv4Broadcast = tcpip.Address("\xff\xff\xff\xff")

// IsV4MulticastAddress reports whether addr is in 224.0.0.0/4.
func IsV4MulticastAddress(addr tcpip.Address) bool {
	if len(addr) != IPv4AddressSize {
		return false
	}
	return addr[0]&0xf0 == 0xe0
}

// IsV4BroadcastOnSubnet reports whether addr is the directed broadcast of
// the subnet formed by local and mask.
func IsV4BroadcastOnSubnet(addr, local, mask tcpip.Address) bool {
	if len(addr) != IPv4AddressSize || len(local) != IPv4AddressSize || len(mask) != IPv4AddressSize {
		return false
	}
	for i := 0; i < IPv4AddressSize; i++ {
		if addr[i]&mask[i] != local[i]&mask[i] || addr[i]|mask[i] != 0xff {
			return false
		}
	}
	return true
}

// IPv4MulticastLinkAddress maps a multicast group to its Ethernet
// address: 01:00:5e plus the low 23 bits of the group.
func IPv4MulticastLinkAddress(group tcpip.Address) tcpip.LinkAddress {
	return tcpip.LinkAddress([]byte{
		0x01, 0x00, 0x5e,
		group[1] & 0x7f,
		group[2],
		group[3],
	})
}
