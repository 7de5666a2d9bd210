// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package header

import "github.com/nomadarchitect/tinynet/pkg/tcpip"

const (
	// IPv6AddressSize is the length of an IPv6 address.
	IPv6AddressSize = 16

	// IPv6ProtocolNumber is the ethertype of IPv6.
	IPv6ProtocolNumber = EtherTypeIPv6
)

// IPv6Any is the unspecified IPv6 address.
const IPv6Any = tcpip.Address("\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00")

// IsV6MulticastAddress reports whether addr is in ff00::/8.
func IsV6MulticastAddress(addr tcpip.Address) bool {
	if len(addr) != IPv6AddressSize {
		return false
	}
	return addr[0] == 0xff
}

// IsMulticastAddress reports whether addr is an IPv4 or IPv6 multicast
// address.
func IsMulticastAddress(addr tcpip.Address) bool {
	return IsV4MulticastAddress(addr) || IsV6MulticastAddress(addr)
}

// IPv6MulticastLinkAddress maps a multicast group to its Ethernet
// address: 33:33 plus the low 32 bits of the group.
func IPv6MulticastLinkAddress(group tcpip.Address) tcpip.LinkAddress {
	return tcpip.LinkAddress([]byte{
		0x33, 0x33,
		group[12],
		group[13],
		group[14],
		group[15],
	})
}
