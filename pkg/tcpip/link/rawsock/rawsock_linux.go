// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build linux

// Package rawsock drives a host Ethernet device through an AF_PACKET
// socket, so the stack can run against real interfaces during bring-up
// and integration testing.
package rawsock

import (
	"fmt"
	"net"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/buffer"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/stack"
)

// Endpoint is an AF_PACKET-backed link driver.
type Endpoint struct {
	device  string
	ifindex int
	mac     tcpip.LinkAddress
	mtu     uint32
	fd      int

	ifc     *stack.Interface
	joined  map[tcpip.LinkAddress]struct{}
	closeCh chan struct{}
}

// Dial opens device and binds a packet socket to it.
func Dial(device string) (*Endpoint, error) {
	hostIfc, err := net.InterfaceByName(device)
	if err != nil {
		return nil, fmt.Errorf("rawsock: lookup %s: %w", device, err)
	}
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW|unix.SOCK_CLOEXEC, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, fmt.Errorf("rawsock: socket: %w", err)
	}
	sll := unix.SockaddrLinklayer{
		Protocol: htons(unix.ETH_P_ALL),
		Ifindex:  hostIfc.Index,
	}
	if err := unix.Bind(fd, &sll); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rawsock: bind %s: %w", device, err)
	}
	return &Endpoint{
		device:  device,
		ifindex: hostIfc.Index,
		mac:     tcpip.LinkAddress(hostIfc.HardwareAddr),
		mtu:     uint32(hostIfc.MTU),
		fd:      fd,
		joined:  make(map[tcpip.LinkAddress]struct{}),
		closeCh: make(chan struct{}),
	}, nil
}

// LinkAddress returns the host device's MAC.
func (e *Endpoint) LinkAddress() tcpip.LinkAddress { return e.mac }

// MTU returns the host device's MTU.
func (e *Endpoint) MTU() uint32 { return e.mtu }

// Attach implements stack.LinkDriver and starts the receive loop.
func (e *Endpoint) Attach(ifc *stack.Interface) error {
	e.ifc = ifc
	go e.readLoop()
	ifc.SetLinkState(true)
	return nil
}

func (e *Endpoint) readLoop() {
	buf := make([]byte, int(e.mtu)+18)
	for {
		select {
		case <-e.closeCh:
			return
		default:
		}
		n, _, err := unix.Recvfrom(e.fd, buf, 0)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			glog.Errorf("rawsock: %s: recv: %v", e.device, err)
			return
		}
		frame := make([]byte, n)
		copy(frame, buf[:n])
		// Skip our own transmissions echoed back by the host.
		if n >= 12 && tcpip.LinkAddress(frame[6:12]) == e.mac {
			continue
		}
		e.ifc.DeliverFrame(frame, &stack.RxAncillary{})
	}
}

// Send implements stack.LinkDriver.
func (e *Endpoint) Send(frame buffer.VectorisedView, offset int, anc *stack.TxAncillary) error {
	flat := frame.ToView()
	if offset > 0 {
		flat = flat[offset:]
	}
	if _, err := unix.Write(e.fd, flat); err != nil {
		return fmt.Errorf("rawsock: %s: send: %w", e.device, err)
	}
	return nil
}

// UpdateMACFilter implements stack.LinkDriver by diffing the acceptance
// list into packet-socket multicast memberships.
func (e *Endpoint) UpdateMACFilter(ifc *stack.Interface) error {
	want := make(map[tcpip.LinkAddress]struct{})
	for _, addr := range ifc.MACFilter().Addresses() {
		if addr == e.mac || addr == tcpip.BroadcastLinkAddress {
			continue
		}
		want[addr] = struct{}{}
	}
	for addr := range want {
		if _, ok := e.joined[addr]; !ok {
			if err := e.membership(unix.PACKET_ADD_MEMBERSHIP, addr); err != nil {
				return err
			}
			e.joined[addr] = struct{}{}
		}
	}
	for addr := range e.joined {
		if _, ok := want[addr]; !ok {
			if err := e.membership(unix.PACKET_DROP_MEMBERSHIP, addr); err != nil {
				return err
			}
			delete(e.joined, addr)
		}
	}
	return nil
}

func (e *Endpoint) membership(op int, addr tcpip.LinkAddress) error {
	mreq := unix.PacketMreq{
		Ifindex: int32(e.ifindex),
		Type:    unix.PACKET_MR_MULTICAST,
		Alen:    6,
	}
	copy(mreq.Address[:], addr)
	if err := unix.SetsockoptPacketMreq(e.fd, unix.SOL_PACKET, op, &mreq); err != nil {
		return fmt.Errorf("rawsock: %s: membership %s: %w", e.device, addr, err)
	}
	return nil
}

// Capabilities implements stack.LinkDriver.
func (e *Endpoint) Capabilities() stack.LinkCapabilities { return 0 }

// Close stops the receive loop and releases the socket.
func (e *Endpoint) Close() error {
	close(e.closeCh)
	return unix.Close(e.fd)
}

func htons(v int) uint16 {
	return uint16(v)<<8 | uint16(v)>>8
}
