// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package header

import (
	"encoding/binary"
	"time"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
)

// MLDType is the ICMPv6 type of an MLD message.
type MLDType byte

// MLD message types per RFC 2710 and RFC 3810.
const (
	MLDQuery    MLDType = 130
	MLDReport   MLDType = 131
	MLDDone     MLDType = 132
	MLDv2Report MLDType = 143
)

const (
	// MLDMinimumSize is the length of an MLDv1 message body, after the
	// 4-byte ICMPv6 header.
	MLDMinimumSize = 20

	// MLDv2RecordMinimumSize is the length of a multicast address
	// record with no sources.
	MLDv2RecordMinimumSize = 20
)

// MLD is an MLDv1 message body (maximum response delay, reserved,
// multicast address) backed by wire bytes.
type MLD []byte

// MaximumResponseDelay returns the maximum response delay.
func (b MLD) MaximumResponseDelay() time.Duration {
	return time.Duration(binary.BigEndian.Uint16(b)) * time.Millisecond
}

// SetMaximumResponseDelay stores the maximum response delay in
// milliseconds.
func (b MLD) SetMaximumResponseDelay(ms uint16) { binary.BigEndian.PutUint16(b, ms) }

// MulticastAddress returns the multicast address field.
func (b MLD) MulticastAddress() tcpip.Address { return tcpip.Address(b[4:][:IPv6AddressSize]) }

// SetMulticastAddress stores the multicast address field.
func (b MLD) SetMulticastAddress(addr tcpip.Address) { copy(b[4:][:IPv6AddressSize], addr) }

// MLDv2MaximumResponseCode encodes a maximum response delay, in
// milliseconds, into the 16-bit floating-point form of RFC 3810 §5.1.3:
// values below 32768 are literal; larger values use a 3-bit exponent and
// 12-bit mantissa as (mantissa | 0x1000) << (exponent + 3).
func MLDv2MaximumResponseCode(ms uint32) uint16 {
	if ms < 0x8000 {
		return uint16(ms)
	}
	exp := uint16(0)
	mant := ms >> 3
	for mant > 0x1fff {
		mant >>= 1
		exp++
	}
	if exp > 7 {
		// Saturate at the largest representable delay.
		return 0xffff
	}
	return 0x8000 | exp<<12 | uint16(mant&0xfff)
}

// MLDv2MaximumResponseDelay decodes the 16-bit floating-point maximum
// response code into milliseconds.
func MLDv2MaximumResponseDelay(code uint16) uint32 {
	if code < 0x8000 {
		return uint32(code)
	}
	exp := uint32(code>>12) & 0x7
	mant := uint32(code) & 0xfff
	return (mant | 0x1000) << (exp + 3)
}

// MLDv2QQIC encodes a querier's query interval, in seconds, into the
// 8-bit floating-point form of RFC 3810 §5.1.9: values below 128 are
// literal; larger values use a 3-bit exponent and 4-bit mantissa as
// (mantissa | 0x10) << (exponent + 3).
func MLDv2QQIC(seconds uint32) byte {
	if seconds < 0x80 {
		return byte(seconds)
	}
	exp := uint32(0)
	mant := seconds >> 3
	for mant > 0x1f {
		mant >>= 1
		exp++
	}
	if exp > 7 {
		return 0xff
	}
	return byte(0x80 | exp<<4 | mant&0xf)
}

// MLDv2QueryInterval decodes the 8-bit floating-point query interval
// code into seconds.
func MLDv2QueryInterval(code byte) uint32 {
	if code < 0x80 {
		return uint32(code)
	}
	exp := uint32(code>>4) & 0x7
	mant := uint32(code) & 0xf
	return (mant | 0x10) << (exp + 3)
}

// MLDv2AddressRecord appends one multicast address record to buf and
// returns the extended slice. The record type values match the IGMPv3
// group record types.
func MLDv2AddressRecord(buf []byte, typ IGMPv3RecordType, group tcpip.Address, sources []tcpip.Address) []byte {
	rec := make([]byte, MLDv2RecordMinimumSize+len(sources)*IPv6AddressSize)
	rec[0] = byte(typ)
	binary.BigEndian.PutUint16(rec[2:], uint16(len(sources)))
	copy(rec[4:], group)
	for i, src := range sources {
		copy(rec[20+i*IPv6AddressSize:], src)
	}
	return append(buf, rec...)
}
