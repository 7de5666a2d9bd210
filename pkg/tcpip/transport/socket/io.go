// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package socket

import (
	"time"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/header"
	"github.com/nomadarchitect/tinynet/pkg/waiter"
)

// Bind assigns the local endpoint address.
func (s *Socket) Bind(addr tcpip.Address, port uint16) *tcpip.Error {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	switch s.typ {
	case TypeStream, TypeDgram, TypeRawIP:
	default:
		return tcpip.ErrInvalidEndpointState
	}
	s.localAddr = addr
	s.localPort = port
	return nil
}

// Connect sets the remote endpoint. Stream endpoints start the handshake
// and may block up to the socket timeout; connectionless endpoints only
// record the destination for subsequent Send calls.
func (s *Socket) Connect(addr tcpip.Address, port uint16) *tcpip.Error {
	s.table.net.Lock()
	switch s.typ {
	case TypeStream:
		stream := s.table.stream
		s.remoteAddr = addr
		s.remotePort = port
		s.table.net.Unlock()
		if stream == nil {
			return tcpip.ErrNotSupported
		}
		return stream.Connect(s, addr, port)
	case TypeDgram, TypeRawIP:
		s.remoteAddr = addr
		s.remotePort = port
		s.table.net.Unlock()
		return nil
	default:
		s.table.net.Unlock()
		return tcpip.ErrInvalidEndpointState
	}
}

// Listen moves a stream endpoint into the listening state.
func (s *Socket) Listen(backlog int) *tcpip.Error {
	s.table.net.Lock()
	typ, stream := s.typ, s.table.stream
	s.table.net.Unlock()
	if typ != TypeStream {
		return tcpip.ErrInvalidEndpointState
	}
	if stream == nil {
		return tcpip.ErrNotSupported
	}
	return stream.Listen(s, backlog)
}

// Accept takes the next pending connection, blocking up to the socket
// timeout. It returns the connected endpoint and the peer address.
func (s *Socket) Accept() (*Socket, tcpip.Address, uint16, *tcpip.Error) {
	s.table.net.Lock()
	typ, stream := s.typ, s.table.stream
	s.table.net.Unlock()
	if typ != TypeStream {
		return nil, "", 0, tcpip.ErrInvalidEndpointState
	}
	if stream == nil {
		return nil, "", 0, tcpip.ErrNotSupported
	}
	return stream.Accept(s)
}

// Shutdown closes one or both directions of a stream endpoint.
func (s *Socket) Shutdown(how ShutdownHow) *tcpip.Error {
	s.table.net.Lock()
	if s.typ != TypeStream {
		s.table.net.Unlock()
		return tcpip.ErrInvalidEndpointState
	}
	stream := s.table.stream
	if how == ShutdownReceive || how == ShutdownBoth {
		s.rcvShutdown = true
	}
	if how == ShutdownSend || how == ShutdownBoth {
		s.sndShutdown = true
	}
	s.updateEventsLocked()
	s.table.net.Unlock()
	if stream == nil {
		return tcpip.ErrNotSupported
	}
	return stream.Shutdown(s, how)
}

// Close releases the slot. Stream connections are aborted; datagram and
// raw-IP endpoints first withdraw their multicast memberships so the
// interface state and hardware filter are rederived. Close never fails.
func (s *Socket) Close() {
	s.table.net.Lock()
	if s.typ == TypeUnused {
		s.table.net.Unlock()
		return
	}
	if s.typ == TypeStream && s.table.stream != nil {
		stream := s.table.stream
		s.table.net.Unlock()
		stream.Abort(s)
		s.table.net.Lock()
	}
	if s.typ == TypeDgram || s.typ == TypeRawIP {
		for i := range s.groups {
			g := &s.groups[i]
			if len(g.Addr) == 0 {
				continue
			}
			ifc, group := g.ifc, g.Addr
			*g = GroupMembership{}
			if s.table.mcast != nil && ifc != nil {
				s.table.mcast.UpdateLocked(ifc, group)
			}
		}
	}
	s.rcvQueue = nil
	s.queue.Notify(waiter.EventHUp)
	table, desc := s.table, s.descriptor
	*s = Socket{table: table, descriptor: desc}
	s.table.net.Unlock()
}

// GetLocalAddr returns the bound local address and port.
func (s *Socket) GetLocalAddr() (tcpip.Address, uint16) {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	return s.localAddr, s.localPort
}

// GetRemoteAddr returns the connected remote address and port.
func (s *Socket) GetRemoteAddr() (tcpip.Address, uint16) {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	return s.remoteAddr, s.remotePort
}

// Send transmits to the connected remote endpoint.
func (s *Socket) Send(data []byte, flags Flags) (int, *tcpip.Error) {
	s.table.net.Lock()
	typ := s.typ
	remoteAddr, remotePort := s.remoteAddr, s.remotePort
	s.table.net.Unlock()
	if typ == TypeStream {
		if s.table.stream == nil {
			return 0, tcpip.ErrNotSupported
		}
		return s.table.stream.Send(s, data, flags)
	}
	return s.SendTo(remoteAddr, remotePort, data, flags)
}

// SendTo transmits one message to an explicit destination. For raw
// Ethernet endpoints the first 14 bytes of data carry the Ethernet
// header, which is parsed off; the reported count excludes it.
func (s *Socket) SendTo(addr tcpip.Address, port uint16, data []byte, flags Flags) (int, *tcpip.Error) {
	s.table.net.Lock()
	typ := s.typ
	s.table.net.Unlock()

	switch typ {
	case TypeStream:
		// The connection, not the argument, addresses stream data.
		if s.table.stream == nil {
			return 0, tcpip.ErrNotSupported
		}
		return s.table.stream.Send(s, data, flags)
	case TypeDgram, TypeRawIP:
		msg := DefaultMsg
		msg.Data = data
		msg.DstAddr = addr
		msg.DstPort = port
		return s.sendMsg(&msg, flags)
	case TypeRawEth:
		if len(data) < header.EthernetMinimumSize {
			return 0, tcpip.ErrBadLength
		}
		eth := header.Ethernet(data)
		msg := DefaultMsg
		msg.Data = data[header.EthernetMinimumSize:]
		msg.DstMAC = eth.DestinationAddress()
		msg.SrcMAC = eth.SourceAddress()
		msg.EtherType = eth.Type()
		return s.sendMsg(&msg, flags)
	default:
		return 0, tcpip.ErrInvalidEndpointState
	}
}

// SendMsg transmits one message with explicit ancillary data. Stream
// endpoints do not carry per-message ancillary state and are rejected.
func (s *Socket) SendMsg(msg *Msg, flags Flags) (int, *tcpip.Error) {
	if msg == nil {
		return 0, tcpip.ErrInvalidParameter
	}
	s.table.net.Lock()
	typ := s.typ
	s.table.net.Unlock()
	switch typ {
	case TypeDgram, TypeRawIP, TypeRawEth:
		return s.sendMsg(msg, flags)
	default:
		return 0, tcpip.ErrInvalidEndpointState
	}
}

// sendMsg fills endpoint defaults into msg and dispatches it to the
// protocol sender for the endpoint type.
func (s *Socket) sendMsg(msg *Msg, flags Flags) (int, *tcpip.Error) {
	s.table.net.Lock()
	typ := s.typ
	if msg.Interface == nil {
		if msg.Interface = s.ifc; msg.Interface == nil {
			msg.Interface = s.table.net.DefaultInterfaceLocked()
		}
	}
	if len(msg.SrcAddr) == 0 {
		msg.SrcAddr = s.localAddr
	}
	if msg.SrcPort == 0 {
		msg.SrcPort = s.localPort
	}
	if len(msg.DstAddr) == 0 {
		msg.DstAddr = s.remoteAddr
	}
	if msg.DstPort == 0 {
		msg.DstPort = s.remotePort
	}
	if msg.TTL == 0 {
		if header.IsMulticastAddress(msg.DstAddr) {
			msg.TTL = s.multicastTTL
		} else {
			msg.TTL = s.ttl
		}
	}
	if msg.TOS == 0 {
		msg.TOS = s.tos
	}
	if msg.VlanPCP < 0 {
		msg.VlanPCP = s.vlanPCP
	}
	if msg.VlanDEI < 0 {
		msg.VlanDEI = s.vlanDEI
	}
	if msg.VmanPCP < 0 {
		msg.VmanPCP = s.vmanPCP
	}
	if msg.VmanDEI < 0 {
		msg.VmanDEI = s.vmanDEI
	}
	if flags&FlagDontRoute != 0 {
		msg.DontRoute = true
	}
	dgram, rawIP, rawEth := s.table.dgram, s.table.rawIP, s.table.rawEth
	s.table.net.Unlock()

	switch typ {
	case TypeDgram:
		if dgram == nil {
			return 0, tcpip.ErrNotSupported
		}
		return dgram.SendDatagram(s, msg)
	case TypeRawIP:
		if rawIP == nil {
			return 0, tcpip.ErrNotSupported
		}
		return rawIP.SendRawIP(s, msg)
	case TypeRawEth:
		if rawEth == nil {
			return 0, tcpip.ErrNotSupported
		}
		return rawEth.SendRawEth(s, msg)
	default:
		return 0, tcpip.ErrInvalidEndpointState
	}
}

// Receive reads from the endpoint into b, blocking up to the socket
// timeout. For raw Ethernet endpoints the Ethernet header is rebuilt in
// front of the payload and counted in the result.
func (s *Socket) Receive(b []byte, flags Flags) (int, *tcpip.Error) {
	n, _, _, err := s.ReceiveEx(b, flags)
	return n, err
}

// ReceiveFrom is Receive plus the message source.
func (s *Socket) ReceiveFrom(b []byte, flags Flags) (int, tcpip.FullAddress, *tcpip.Error) {
	n, src, _, err := s.ReceiveEx(b, flags)
	return n, src, err
}

// ReceiveEx is Receive plus the message source and destination. For
// stream endpoints the source is the connected remote and the
// destination the bound local endpoint.
func (s *Socket) ReceiveEx(b []byte, flags Flags) (int, tcpip.FullAddress, tcpip.FullAddress, *tcpip.Error) {
	s.table.net.Lock()
	typ := s.typ
	src := tcpip.FullAddress{Addr: s.remoteAddr, Port: s.remotePort}
	dst := tcpip.FullAddress{Addr: s.localAddr, Port: s.localPort}
	s.table.net.Unlock()

	switch typ {
	case TypeStream:
		if s.table.stream == nil {
			return 0, src, dst, tcpip.ErrNotSupported
		}
		n, err := s.table.stream.Receive(s, b, flags)
		return n, src, dst, err
	case TypeDgram, TypeRawIP, TypeRawEth:
		s.table.net.Lock()
		d, err := s.dequeueLocked(flags)
		s.table.net.Unlock()
		if err != nil {
			return 0, tcpip.FullAddress{}, tcpip.FullAddress{}, err
		}
		n := 0
		if typ == TypeRawEth {
			n = rebuildEthernetHeader(b, d)
		}
		n += copyPayload(b[n:], d)
		return n, d.Sender, d.Destination, nil
	default:
		return 0, tcpip.FullAddress{}, tcpip.FullAddress{}, tcpip.ErrInvalidEndpointState
	}
}

// ReceiveMsg reads one message and its ancillary data into msg.Data,
// blocking up to the socket timeout. Initialise msg from DefaultMsg.
func (s *Socket) ReceiveMsg(msg *Msg, flags Flags) (int, *tcpip.Error) {
	if msg == nil {
		return 0, tcpip.ErrInvalidParameter
	}
	s.table.net.Lock()
	typ := s.typ
	s.table.net.Unlock()
	switch typ {
	case TypeDgram, TypeRawIP, TypeRawEth:
	default:
		return 0, tcpip.ErrInvalidEndpointState
	}

	s.table.net.Lock()
	d, err := s.dequeueLocked(flags)
	s.table.net.Unlock()
	if err != nil {
		return 0, err
	}
	n := copyPayload(msg.Data, d)
	msg.SrcAddr = d.Sender.Addr
	msg.SrcPort = d.Sender.Port
	msg.DstAddr = d.Destination.Addr
	msg.DstPort = d.Destination.Port
	msg.TTL = d.Ancillary.TTL
	msg.TOS = d.Ancillary.TOS
	msg.Timestamp = d.Ancillary.Timestamp
	if typ == TypeRawEth {
		msg.SrcMAC = d.SrcMAC
		msg.DstMAC = d.DstMAC
		msg.EtherType = d.EtherType
	}
	return n, nil
}

func rebuildEthernetHeader(b []byte, d *Datagram) int {
	if len(b) < header.EthernetMinimumSize {
		return 0
	}
	header.Ethernet(b).Encode(&header.EthernetFields{
		SrcAddr: d.SrcMAC,
		DstAddr: d.DstMAC,
		Type:    d.EtherType,
	})
	return header.EthernetMinimumSize
}

func copyPayload(b []byte, d *Datagram) int {
	n := 0
	for _, v := range d.Data.Views() {
		n += copy(b[n:], v)
		if n == len(b) {
			break
		}
	}
	return n
}

// dequeueLocked pops (or, with FlagPeek, copies) the front of the
// receive queue, parking the caller while it is empty. A zero socket
// timeout makes the call non-blocking.
func (s *Socket) dequeueLocked(flags Flags) (*Datagram, *tcpip.Error) {
	if len(s.rcvQueue) == 0 {
		if s.timeout == 0 {
			return nil, tcpip.ErrWouldBlock
		}
		if err := s.blockLocked(waiter.EventIn|waiter.EventHUp, func() bool {
			return len(s.rcvQueue) > 0 || s.typ == TypeUnused
		}); err != nil {
			return nil, err
		}
		if s.typ == TypeUnused {
			return nil, tcpip.ErrInvalidEndpointState
		}
	}
	d := s.rcvQueue[0]
	if flags&FlagPeek == 0 {
		s.rcvQueue = s.rcvQueue[1:]
		s.updateEventsLocked()
	}
	return d, nil
}

// blockLocked parks the caller until pred holds or the socket timeout
// expires. The net mutex is held on entry and exit, and released across
// the wait.
func (s *Socket) blockLocked(mask waiter.EventMask, pred func() bool) *tcpip.Error {
	if pred() {
		return nil
	}
	timeout := s.timeout
	ev := waiter.NewEvent()
	entry := s.queue.Subscribe(ev, mask)
	defer s.queue.Unsubscribe(entry)

	var deadline time.Time
	if timeout != tcpip.InfiniteTimeout {
		deadline = time.Now().Add(timeout)
	}
	for !pred() {
		wait := tcpip.InfiniteTimeout
		if timeout != tcpip.InfiniteTimeout {
			if wait = time.Until(deadline); wait <= 0 {
				return tcpip.ErrTimeout
			}
		}
		s.table.net.Unlock()
		ok := ev.Wait(wait)
		s.table.net.Lock()
		if !ok && !pred() {
			return tcpip.ErrTimeout
		}
	}
	return nil
}

// readinessLocked derives the endpoint's current event flags.
func (s *Socket) readinessLocked() waiter.EventMask {
	switch s.typ {
	case TypeUnused:
		return 0
	case TypeStream:
		if s.table.stream == nil {
			return 0
		}
		return s.table.stream.Readiness(s)
	default:
		// Datagram sends never block.
		m := waiter.EventOut
		if len(s.rcvQueue) > 0 {
			m |= waiter.EventIn
		}
		if s.rcvShutdown {
			m |= waiter.EventIn | waiter.EventHUp
		}
		return m
	}
}

// updateEventsLocked rederives the sticky event flags and wakes
// subscribers interested in newly raised conditions.
func (s *Socket) updateEventsLocked() {
	flags := s.readinessLocked()
	newly := flags &^ s.eventFlags
	s.eventFlags = flags
	if newly != 0 {
		s.queue.Notify(newly)
	}
}

// SubscribersEmpty reports whether any event subscriber remains
// registered on the endpoint.
func (s *Socket) SubscribersEmpty() bool {
	return s.queue.Empty()
}

// ReadinessChanged is called by the stream protocol engine after its
// side of the endpoint changed state.
func (s *Socket) ReadinessChanged() {
	s.table.net.Lock()
	s.updateEventsLocked()
	s.table.net.Unlock()
}

// Deliver appends one inbound message to the endpoint's receive queue
// and wakes readers. It is the upcall boundary from the network layer's
// demultiplexer, which runs under the net mutex or schedules itself to.
func (t *Table) Deliver(s *Socket, d *Datagram) *tcpip.Error {
	t.net.Lock()
	defer t.net.Unlock()
	switch s.typ {
	case TypeDgram, TypeRawIP, TypeRawEth:
	default:
		return tcpip.ErrInvalidEndpointState
	}
	if s.rcvShutdown {
		return tcpip.ErrInvalidEndpointState
	}
	if len(s.rcvQueue) >= ReceiveQueueDepth {
		return tcpip.ErrNoMemory
	}
	s.rcvQueue = append(s.rcvQueue, d)
	s.updateEventsLocked()
	return nil
}
