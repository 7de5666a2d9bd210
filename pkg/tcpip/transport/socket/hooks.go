// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package socket

import (
	"time"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/buffer"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/stack"
	"github.com/nomadarchitect/tinynet/pkg/waiter"
)

// Flags modify a single send or receive call.
type Flags uint16

// Send/receive flags.
const (
	// FlagPeek returns data without consuming it.
	FlagPeek Flags = 1 << iota

	// FlagWaitAll delays return until the caller's buffer is full.
	FlagWaitAll

	// FlagDontRoute restricts the send to the local subnet.
	FlagDontRoute
)

// Msg is the ancillary-carrying message used by SendMsg and ReceiveMsg.
// Build one by copying DefaultMsg and populating what the call needs;
// the zero Msg is not a valid starting point.
type Msg struct {
	// Data is the payload: the bytes to send, or the buffer to fill.
	Data []byte

	SrcAddr tcpip.Address
	SrcPort uint16
	DstAddr tcpip.Address
	DstPort uint16

	Interface *stack.Interface

	TTL uint8
	TOS uint8

	DontRoute bool

	// Link-layer fields, meaningful on raw Ethernet endpoints only.
	SrcMAC    tcpip.LinkAddress
	DstMAC    tcpip.LinkAddress
	EtherType uint16

	VlanPCP int8
	VlanDEI int8
	VmanPCP int8
	VmanDEI int8

	Timestamp time.Time
}

// DefaultMsg is the neutral Msg value. A negative VLAN/VMAN field means
// "not set, inherit the endpoint's value"; a zero TTL means the same.
var DefaultMsg = Msg{
	VlanPCP: -1,
	VlanDEI: -1,
	VmanPCP: -1,
	VmanDEI: -1,
}

// Datagram is one buffered inbound message on a connectionless endpoint.
type Datagram struct {
	Data        buffer.VectorisedView
	Sender      tcpip.FullAddress
	Destination tcpip.FullAddress
	Ancillary   stack.RxAncillary

	// Link-layer fields, kept for raw Ethernet endpoints.
	SrcMAC    tcpip.LinkAddress
	DstMAC    tcpip.LinkAddress
	EtherType uint16
}

// StreamState is the connection state reported by the stream protocol.
type StreamState int

// Stream connection states.
const (
	StreamClosed StreamState = iota
	StreamListen
	StreamConnecting
	StreamEstablished
	StreamClosing
)

// StreamProtocol is the contract of the connection-oriented transport
// engine. The engine owns connection state, sequencing, and buffering;
// the socket table owns the slot, its options, and its events. Blocking
// calls honor the socket's configured timeout.
type StreamProtocol interface {
	Connect(s *Socket, addr tcpip.Address, port uint16) *tcpip.Error
	Listen(s *Socket, backlog int) *tcpip.Error
	Accept(s *Socket) (*Socket, tcpip.Address, uint16, *tcpip.Error)
	Send(s *Socket, data []byte, flags Flags) (int, *tcpip.Error)
	Receive(s *Socket, b []byte, flags Flags) (int, *tcpip.Error)
	Shutdown(s *Socket, how ShutdownHow) *tcpip.Error
	Abort(s *Socket)
	State(s *Socket) StreamState
	Readiness(s *Socket) waiter.EventMask
}

// DatagramSender encapsulates and transmits one datagram for a DGRAM
// endpoint. It is the boundary to the UDP layer.
type DatagramSender interface {
	SendDatagram(s *Socket, msg *Msg) (int, *tcpip.Error)
}

// RawIPSender transmits one raw network-layer packet.
type RawIPSender interface {
	SendRawIP(s *Socket, msg *Msg) (int, *tcpip.Error)
}

// RawEthSender transmits one raw Ethernet payload; the link-layer fields
// of msg carry the parsed header.
type RawEthSender interface {
	SendRawEth(s *Socket, msg *Msg) (int, *tcpip.Error)
}
