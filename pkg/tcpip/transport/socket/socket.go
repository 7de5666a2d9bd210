// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package socket implements the BSD-style endpoint table: a fixed array
// of slots covering stream, datagram, raw-IP, and raw-Ethernet
// endpoints, with blocking/timeout semantics, per-socket multicast
// membership, and multi-endpoint readiness polling.
//
// Everything mutable is serialized by the owning Net context's mutex;
// blocking operations drop it while parked on the socket's event queue.
package socket

import (
	"time"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/network/multicast"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/stack"
	"github.com/nomadarchitect/tinynet/pkg/waiter"
)

// Table geometry.
const (
	// SlotCount is the process-wide number of socket slots.
	SlotCount = 16

	// GroupsPerSocket is the number of multicast groups one endpoint
	// may hold.
	GroupsPerSocket = 4

	// SourcesPerGroup bounds a per-socket source list.
	SourcesPerGroup = 8

	// ReceiveQueueDepth bounds the buffered datagrams per endpoint.
	ReceiveQueueDepth = 8
)

// Stream tuning bounds.
const (
	MinMSS        = 64
	MaxMSS        = 1430
	DefaultMSS    = 1430
	MaxBufferSize = 65535
)

// Type selects the endpoint flavor of a slot.
type Type int

// Endpoint types.
const (
	TypeUnused Type = iota
	TypeStream
	TypeDgram
	TypeRawIP
	TypeRawEth
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case TypeUnused:
		return "UNUSED"
	case TypeStream:
		return "STREAM"
	case TypeDgram:
		return "DGRAM"
	case TypeRawIP:
		return "RAW_IP"
	case TypeRawEth:
		return "RAW_ETH"
	default:
		return "UNKNOWN"
	}
}

// ShutdownHow selects which direction Shutdown closes.
type ShutdownHow int

// Shutdown directions.
const (
	ShutdownReceive ShutdownHow = iota
	ShutdownSend
	ShutdownBoth
)

// Options is the per-endpoint option bitset.
type Options uint32

// Option bits.
const (
	// OptionBroadcast permits sending to broadcast addresses.
	OptionBroadcast Options = 1 << iota
)

// GroupMembership is one per-socket multicast slot: the joined group and
// the socket's source filter for it. A zero-length Addr marks the slot
// free; a filter of (INCLUDE, no sources) never persists, it means the
// slot is deleted.
type GroupMembership struct {
	Addr      tcpip.Address
	Mode      multicast.FilterMode
	Sources   []tcpip.Address
	ifc       *stack.Interface
	anySource bool
}

// Socket is one endpoint slot. The zero value is an unused slot; Open
// initializes it.
type Socket struct {
	table      *Table
	descriptor int

	// Guarded by the net mutex.
	typ        Type
	protocol   uint16
	ifc        *stack.Interface
	localAddr  tcpip.Address
	localPort  uint16
	remoteAddr tcpip.Address
	remotePort uint16

	options      Options
	ttl          uint8
	multicastTTL uint8
	tos          uint8
	vlanPCP      int8
	vlanDEI      int8
	vmanPCP      int8
	vmanDEI      int8
	timeout      time.Duration

	mss               uint16
	txBufferSize      int
	rxBufferSize      int
	keepAliveEnabled  bool
	keepAliveIdle     time.Duration
	keepAliveInterval time.Duration
	keepAliveProbes   int

	groups [GroupsPerSocket]GroupMembership

	rcvQueue    []*Datagram
	rcvShutdown bool
	sndShutdown bool

	queue      waiter.Queue
	eventFlags waiter.EventMask
}

// Descriptor returns the slot index, stable for the socket's lifetime.
func (s *Socket) Descriptor() int { return s.descriptor }

// Table returns the owning table.
func (s *Socket) Table() *Table { return s.table }

// Type returns the endpoint type.
func (s *Socket) Type() Type {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	return s.typ
}

// Protocol returns the protocol or ethertype selector given to Open.
func (s *Socket) Protocol() uint16 {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	return s.protocol
}

// Table is the process-wide endpoint table.
type Table struct {
	net   *stack.Net
	mcast *multicast.State

	stream StreamProtocol
	dgram  DatagramSender
	rawIP  RawIPSender
	rawEth RawEthSender

	slots [SlotCount]Socket
}

// NewTable creates the endpoint table over net and registers it as the
// contribution source of the multicast reception table.
func NewTable(net *stack.Net, mcast *multicast.State) *Table {
	t := &Table{net: net, mcast: mcast}
	for i := range t.slots {
		t.slots[i].table = t
		t.slots[i].descriptor = i
	}
	if mcast != nil {
		mcast.SetEnumerator(t.enumerateContributions)
	}
	return t
}

// Net returns the owning stack context.
func (t *Table) Net() *stack.Net { return t.net }

// SetStreamProtocol installs the connection-oriented transport engine.
func (t *Table) SetStreamProtocol(p StreamProtocol) { t.stream = p }

// SetDatagramSender installs the datagram transmit path.
func (t *Table) SetDatagramSender(d DatagramSender) { t.dgram = d }

// SetRawIPSender installs the raw network-layer transmit path.
func (t *Table) SetRawIPSender(r RawIPSender) { t.rawIP = r }

// SetRawEthSender installs the raw Ethernet transmit path.
func (t *Table) SetRawEthSender(r RawEthSender) { t.rawEth = r }

// Open claims an unused slot for an endpoint of the given type and
// protocol (an IP protocol number, or an ethertype for raw Ethernet).
func (t *Table) Open(typ Type, protocol uint16) (*Socket, *tcpip.Error) {
	switch typ {
	case TypeStream, TypeDgram, TypeRawIP, TypeRawEth:
	default:
		return nil, tcpip.ErrInvalidParameter
	}
	t.net.Lock()
	defer t.net.Unlock()
	for i := range t.slots {
		s := &t.slots[i]
		if s.typ != TypeUnused {
			continue
		}
		*s = Socket{
			table:        t,
			descriptor:   i,
			typ:          typ,
			protocol:     protocol,
			ttl:          64,
			multicastTTL: 1,
			vlanPCP:      -1,
			vlanDEI:      -1,
			vmanPCP:      -1,
			vmanDEI:      -1,
			timeout:      tcpip.InfiniteTimeout,
			mss:          DefaultMSS,
			txBufferSize: 2 * DefaultMSS,
			rxBufferSize: 2 * DefaultMSS,
		}
		return s, nil
	}
	return nil, tcpip.ErrNoResource
}

// OpenCount returns the number of slots in use.
func (t *Table) OpenCount() int {
	t.net.Lock()
	defer t.net.Unlock()
	n := 0
	for i := range t.slots {
		if t.slots[i].typ != TypeUnused {
			n++
		}
	}
	return n
}

// Sockets returns the in-use sockets.
func (t *Table) Sockets() []*Socket {
	t.net.Lock()
	defer t.net.Unlock()
	var out []*Socket
	for i := range t.slots {
		if t.slots[i].typ != TypeUnused {
			out = append(out, &t.slots[i])
		}
	}
	return out
}
