// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package tcpip provides the types shared by every layer of the stack:
// addresses, link addresses, the status taxonomy returned by stack
// operations, and the clock contract used to drive protocol timers.
//
// The stack is built for small, static-memory deployments: state lives in
// fixed-size tables, a single mutex serializes mutation, and interrupt
// context communicates only through signalable events. Packages under
// pkg/tcpip assume that model throughout.
package tcpip

import (
	"fmt"
	"net"
	"time"
)

// Address is a byte string representing an IPv4 (4 bytes) or IPv6
// (16 bytes) address. The zero value (length 0) is the unspecified
// address of no particular family.
type Address string

// AddressFromBytes returns an Address backed by a copy of b.
func AddressFromBytes(b []byte) Address {
	return Address(b)
}

// ParseAddress parses a literal IPv4 or IPv6 address. The boolean result
// reports whether s was a valid literal.
func ParseAddress(s string) (Address, bool) {
	ip := net.ParseIP(s)
	if ip == nil {
		return "", false
	}
	if v4 := ip.To4(); v4 != nil {
		return Address(v4), true
	}
	return Address(ip.To16()), true
}

// IsV4 reports whether a is a 4-byte IPv4 address.
func (a Address) IsV4() bool { return len(a) == 4 }

// IsV6 reports whether a is a 16-byte IPv6 address.
func (a Address) IsV6() bool { return len(a) == 16 }

// IsUnspecified reports whether a is empty or all zeros.
func (a Address) IsUnspecified() bool {
	for i := 0; i < len(a); i++ {
		if a[i] != 0 {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer.
func (a Address) String() string {
	switch len(a) {
	case 4, 16:
		return net.IP(a).String()
	case 0:
		return "<nil>"
	default:
		return fmt.Sprintf("%x", string(a))
	}
}

// LinkAddress is a 6-byte Ethernet MAC address.
type LinkAddress string

// BroadcastLinkAddress is the Ethernet broadcast address.
const BroadcastLinkAddress = LinkAddress("\xff\xff\xff\xff\xff\xff")

// IsUnicast reports whether the individual/group bit of a is clear and a
// is not all zeros.
func (a LinkAddress) IsUnicast() bool {
	if len(a) != 6 {
		return false
	}
	if a[0]&1 != 0 {
		return false
	}
	for i := 0; i < len(a); i++ {
		if a[i] != 0 {
			return true
		}
	}
	return false
}

// String implements fmt.Stringer.
func (a LinkAddress) String() string {
	if len(a) != 6 {
		return fmt.Sprintf("%x", string(a))
	}
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

// NICID identifies a network interface within a Net context.
type NICID int32

// FullAddress is a (interface, address, port) endpoint triple.
type FullAddress struct {
	NIC  NICID
	Addr Address
	Port uint16
}

// InfiniteTimeout makes blocking socket operations wait indefinitely.
const InfiniteTimeout time.Duration = -1 << 62

// Clock is the stack's time source. Implementations must be monotonic;
// tests substitute a manual clock to drive protocol timers
// deterministically.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// StdClock is a Clock backed by the runtime's monotonic clock.
type StdClock struct{}

// Now implements Clock.
func (StdClock) Now() time.Time { return time.Now() }

// Error is the status type returned by stack operations. Values are
// compared by identity; each failure kind has exactly one value.
type Error struct {
	msg string
}

// String implements fmt.Stringer.
func (e *Error) String() string { return e.msg }

var (
	// ErrInvalidParameter indicates a nil pointer or an out-of-range
	// numeric argument.
	ErrInvalidParameter = &Error{msg: "invalid parameter"}

	// ErrInvalidEndpointState indicates an operation not permitted for
	// the endpoint's type or current state.
	ErrInvalidEndpointState = &Error{msg: "endpoint is in an invalid state"}

	// ErrBadAddress indicates an address of the wrong kind, or an
	// inbound packet rejected by an address filter.
	ErrBadAddress = &Error{msg: "bad address"}

	// ErrNotSupported indicates a capability this build does not carry.
	ErrNotSupported = &Error{msg: "operation not supported"}

	// ErrNoResource indicates a full fixed-size table.
	ErrNoResource = &Error{msg: "no resource available"}

	// ErrNoMemory indicates a failed buffer allocation.
	ErrNoMemory = &Error{msg: "out of memory"}

	// ErrWouldBlock indicates an empty receive queue on a non-blocking
	// read.
	ErrWouldBlock = &Error{msg: "operation would block"}

	// ErrMalformedPacket indicates wire bytes that do not parse.
	ErrMalformedPacket = &Error{msg: "malformed packet"}

	// ErrBadLength indicates a frame too small or too large for the
	// endpoint type.
	ErrBadLength = &Error{msg: "bad length"}

	// ErrTimeout indicates an expired blocking operation.
	ErrTimeout = &Error{msg: "operation timed out"}

	// ErrWaitCanceled indicates that an external event interrupted a
	// poll before any endpoint became ready.
	ErrWaitCanceled = &Error{msg: "wait canceled"}

	// ErrInProgress indicates that neighbor resolution was started and
	// the caller must retry once it completes.
	ErrInProgress = &Error{msg: "resolution in progress"}

	// ErrAddressNotFound indicates a missing neighbor or group entry.
	ErrAddressNotFound = &Error{msg: "address not found"}

	// ErrUnexpectedState indicates a request that the target entry's
	// state cannot honor.
	ErrUnexpectedState = &Error{msg: "unexpected state"}
)
