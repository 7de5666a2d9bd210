// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package dns

import (
	"sync/atomic"
	"time"

	"golang.org/x/net/dns/dnsmessage"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/stack"
)

// Transport carries one query/response exchange over the stack's own
// datagram path. Implementations send query to server:port and return
// the first response payload within timeout.
type Transport interface {
	Exchange(ifc *stack.Interface, server tcpip.Address, port uint16, query []byte, timeout time.Duration) ([]byte, *tcpip.Error)
}

// UnicastResolver is the ordinary DNS mechanism: unicast queries against
// a configured server.
type UnicastResolver struct {
	Server    tcpip.Address
	Port      uint16
	Transport Transport

	id uint32
}

// NewUnicastResolver returns a resolver querying server over transport
// on the standard port.
func NewUnicastResolver(server tcpip.Address, transport Transport) *UnicastResolver {
	return &UnicastResolver{Server: server, Port: 53, Transport: transport}
}

// Resolve implements Resolver.
func (r *UnicastResolver) Resolve(ifc *stack.Interface, name string, v6 bool, timeout time.Duration) (tcpip.Address, *tcpip.Error) {
	if r.Transport == nil || len(r.Server) == 0 {
		return "", tcpip.ErrInvalidParameter
	}
	id := uint16(atomic.AddUint32(&r.id, 1))
	query, err := buildQuery(id, name, v6)
	if err != nil {
		return "", err
	}
	resp, terr := r.Transport.Exchange(ifc, r.Server, r.Port, query, timeout)
	if terr != nil {
		return "", terr
	}
	return parseAnswer(id, resp, v6)
}

func buildQuery(id uint16, name string, v6 bool) ([]byte, *tcpip.Error) {
	if len(name) == 0 || name[len(name)-1] != '.' {
		name += "."
	}
	qname, err := dnsmessage.NewName(name)
	if err != nil {
		return nil, tcpip.ErrInvalidParameter
	}
	qtype := dnsmessage.TypeA
	if v6 {
		qtype = dnsmessage.TypeAAAA
	}
	msg := dnsmessage.Message{
		Header: dnsmessage.Header{ID: id, RecursionDesired: true},
		Questions: []dnsmessage.Question{{
			Name:  qname,
			Type:  qtype,
			Class: dnsmessage.ClassINET,
		}},
	}
	packed, err := msg.Pack()
	if err != nil {
		return nil, tcpip.ErrMalformedPacket
	}
	return packed, nil
}

func parseAnswer(id uint16, resp []byte, v6 bool) (tcpip.Address, *tcpip.Error) {
	var msg dnsmessage.Message
	if err := msg.Unpack(resp); err != nil {
		return "", tcpip.ErrMalformedPacket
	}
	if msg.Header.ID != id || !msg.Header.Response {
		return "", tcpip.ErrMalformedPacket
	}
	if msg.Header.RCode != dnsmessage.RCodeSuccess {
		return "", tcpip.ErrAddressNotFound
	}
	for _, ans := range msg.Answers {
		switch body := ans.Body.(type) {
		case *dnsmessage.AResource:
			if !v6 {
				return tcpip.AddressFromBytes(body.A[:]), nil
			}
		case *dnsmessage.AAAAResource:
			if v6 {
				return tcpip.AddressFromBytes(body.AAAA[:]), nil
			}
		}
	}
	return "", tcpip.ErrAddressNotFound
}
