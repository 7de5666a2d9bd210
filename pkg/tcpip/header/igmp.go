// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package header

import (
	"encoding/binary"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
)

// IGMPType is an IGMP message type.
type IGMPType byte

// IGMP message types per RFC 2236 and RFC 3376.
const (
	IGMPMembershipQuery    IGMPType = 0x11
	IGMPv1MembershipReport IGMPType = 0x12
	IGMPv2MembershipReport IGMPType = 0x16
	IGMPLeaveGroup         IGMPType = 0x17
	IGMPv3MembershipReport IGMPType = 0x22
)

const (
	// IGMPMinimumSize is the length of an IGMPv1/v2 message.
	IGMPMinimumSize = 8

	// IGMPv3ReportMinimumSize is the length of an IGMPv3 report with no
	// group records.
	IGMPv3ReportMinimumSize = 8

	// IGMPv3GroupRecordMinimumSize is the length of a group record with
	// no sources.
	IGMPv3GroupRecordMinimumSize = 8
)

// IGMPv3RecordType is an IGMPv3 group record type per RFC 3376 §4.2.12.
type IGMPv3RecordType byte

// Group record types.
const (
	IGMPv3ModeIsInclude   IGMPv3RecordType = 1
	IGMPv3ModeIsExclude   IGMPv3RecordType = 2
	IGMPv3ChangeToInclude IGMPv3RecordType = 3
	IGMPv3ChangeToExclude IGMPv3RecordType = 4
	IGMPv3AllowNewSources IGMPv3RecordType = 5
	IGMPv3BlockOldSources IGMPv3RecordType = 6
)

// IGMP is an IGMPv1/v2 message backed by wire bytes.
type IGMP []byte

// Type returns the message type.
func (b IGMP) Type() IGMPType { return IGMPType(b[0]) }

// SetType stores the message type.
func (b IGMP) SetType(t IGMPType) { b[0] = byte(t) }

// MaxRespTime returns the max response time field in tenths of a second.
func (b IGMP) MaxRespTime() byte { return b[1] }

// Checksum returns the checksum field.
func (b IGMP) Checksum() uint16 { return binary.BigEndian.Uint16(b[2:]) }

// SetChecksum stores the checksum field.
func (b IGMP) SetChecksum(v uint16) { binary.BigEndian.PutUint16(b[2:], v) }

// GroupAddress returns the group address field.
func (b IGMP) GroupAddress() tcpip.Address { return tcpip.Address(b[4:][:IPv4AddressSize]) }

// SetGroupAddress stores the group address field.
func (b IGMP) SetGroupAddress(addr tcpip.Address) { copy(b[4:][:IPv4AddressSize], addr) }

// IGMPv3GroupRecord appends one group record to buf and returns the
// extended slice. sources must not exceed what the surrounding report
// accounted for in its record count.
func IGMPv3GroupRecord(buf []byte, typ IGMPv3RecordType, group tcpip.Address, sources []tcpip.Address) []byte {
	rec := make([]byte, IGMPv3GroupRecordMinimumSize+len(sources)*IPv4AddressSize)
	rec[0] = byte(typ)
	binary.BigEndian.PutUint16(rec[2:], uint16(len(sources)))
	copy(rec[4:], group)
	for i, src := range sources {
		copy(rec[8+i*IPv4AddressSize:], src)
	}
	return append(buf, rec...)
}

// InternetChecksum computes the RFC 1071 checksum of b folded into init.
func InternetChecksum(b []byte, init uint32) uint16 {
	sum := init
	for len(b) >= 2 {
		sum += uint32(binary.BigEndian.Uint16(b))
		b = b[2:]
	}
	if len(b) == 1 {
		sum += uint32(b[0]) << 8
	}
	for sum>>16 != 0 {
		sum = sum&0xffff + sum>>16
	}
	return ^uint16(sum)
}
