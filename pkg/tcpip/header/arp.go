// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package header

import (
	"encoding/binary"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
)

const (
	// ARPSize is the length of an Ethernet/IPv4 ARP body.
	ARPSize = 28

	// ARPHardwareEther is the hardware type for Ethernet.
	ARPHardwareEther uint16 = 1

	// ARPProtocolIPv4 is the protocol type for IPv4.
	ARPProtocolIPv4 uint16 = EtherTypeIPv4
)

// ARPOp is an ARP opcode.
type ARPOp uint16

// Opcodes defined by RFC 826.
const (
	ARPRequest ARPOp = 1
	ARPReply   ARPOp = 2
)

// ARP is an ARP body backed by wire bytes.
type ARP []byte

// HardwareType returns the hardware type field.
func (a ARP) HardwareType() uint16 { return binary.BigEndian.Uint16(a[0:]) }

// ProtocolType returns the protocol type field.
func (a ARP) ProtocolType() uint16 { return binary.BigEndian.Uint16(a[2:]) }

// HardwareAddressSize returns the hardware address length field.
func (a ARP) HardwareAddressSize() int { return int(a[4]) }

// ProtocolAddressSize returns the protocol address length field.
func (a ARP) ProtocolAddressSize() int { return int(a[5]) }

// Op returns the opcode.
func (a ARP) Op() ARPOp { return ARPOp(binary.BigEndian.Uint16(a[6:])) }

// SetOp stores the opcode.
func (a ARP) SetOp(op ARPOp) { binary.BigEndian.PutUint16(a[6:], uint16(op)) }

// SetIPv4OverEthernet fills in the fixed fields for Ethernet/IPv4.
func (a ARP) SetIPv4OverEthernet() {
	binary.BigEndian.PutUint16(a[0:], ARPHardwareEther)
	binary.BigEndian.PutUint16(a[2:], ARPProtocolIPv4)
	a[4] = EthernetAddressSize
	a[5] = IPv4AddressSize
}

// HardwareAddressSender returns the sender hardware address field.
func (a ARP) HardwareAddressSender() []byte { return a[8:][:EthernetAddressSize] }

// ProtocolAddressSender returns the sender protocol address field.
func (a ARP) ProtocolAddressSender() []byte { return a[14:][:IPv4AddressSize] }

// HardwareAddressTarget returns the target hardware address field.
func (a ARP) HardwareAddressTarget() []byte { return a[18:][:EthernetAddressSize] }

// ProtocolAddressTarget returns the target protocol address field.
func (a ARP) ProtocolAddressTarget() []byte { return a[24:][:IPv4AddressSize] }

// IsValid reports whether the body is long enough and describes
// Ethernet/IPv4 addressing.
func (a ARP) IsValid() bool {
	if len(a) < ARPSize {
		return false
	}
	return a.HardwareType() == ARPHardwareEther &&
		a.ProtocolType() == ARPProtocolIPv4 &&
		a.HardwareAddressSize() == EthernetAddressSize &&
		a.ProtocolAddressSize() == IPv4AddressSize
}

// IsProbe reports whether the packet is an address probe, i.e. a request
// whose sender protocol address is unspecified.
func (a ARP) IsProbe() bool {
	return a.Op() == ARPRequest && tcpip.Address(a.ProtocolAddressSender()).IsUnspecified()
}
