// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package channel provides an in-memory link driver. Transmitted frames
// land in a bounded queue the test (or a pipe peer) drains; inbound
// frames are injected directly into the interface. It doubles as the
// reference implementation of the driver contract.
package channel

import (
	"errors"
	"sync"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/buffer"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/stack"
)

var errQueueFull = errors.New("channel: transmit queue full")

// Frame is one transmitted frame with its ancillary data.
type Frame struct {
	Data      []byte
	Ancillary stack.TxAncillary
}

// Endpoint is the in-memory driver.
type Endpoint struct {
	mu      sync.Mutex
	ifc     *stack.Interface
	queue   []Frame
	size    int
	filters []tcpip.LinkAddress
	updates int
}

// New creates an endpoint whose transmit queue holds size frames.
func New(size int) *Endpoint {
	return &Endpoint{size: size}
}

// Attach implements stack.LinkDriver.
func (e *Endpoint) Attach(ifc *stack.Interface) error {
	e.mu.Lock()
	e.ifc = ifc
	e.mu.Unlock()
	return nil
}

// Send implements stack.LinkDriver.
func (e *Endpoint) Send(frame buffer.VectorisedView, offset int, anc *stack.TxAncillary) error {
	flat := frame.ToView()
	if offset > 0 {
		flat = flat[offset:]
	}
	out := Frame{Data: append([]byte(nil), flat...)}
	if anc != nil {
		out.Ancillary = *anc
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) >= e.size {
		return errQueueFull
	}
	e.queue = append(e.queue, out)
	return nil
}

// UpdateMACFilter implements stack.LinkDriver, recording the acceptance
// list for inspection.
func (e *Endpoint) UpdateMACFilter(ifc *stack.Interface) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filters = ifc.MACFilter().Addresses()
	e.updates++
	return nil
}

// Capabilities implements stack.LinkDriver.
func (e *Endpoint) Capabilities() stack.LinkCapabilities { return 0 }

// Read pops the oldest transmitted frame.
func (e *Endpoint) Read() (Frame, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return Frame{}, false
	}
	f := e.queue[0]
	e.queue = e.queue[1:]
	return f, true
}

// Drain pops every transmitted frame.
func (e *Endpoint) Drain() []Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.queue
	e.queue = nil
	return out
}

// InjectInbound delivers one frame to the interface, as the receive
// interrupt path would.
func (e *Endpoint) InjectInbound(frame []byte, rx *stack.RxAncillary) {
	e.mu.Lock()
	ifc := e.ifc
	e.mu.Unlock()
	if ifc != nil {
		ifc.DeliverFrame(frame, rx)
	}
}

// FilterAddresses returns the last acceptance list pushed by the stack.
func (e *Endpoint) FilterAddresses() []tcpip.LinkAddress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]tcpip.LinkAddress(nil), e.filters...)
}

// FilterUpdates returns how many times the acceptance list was pushed.
func (e *Endpoint) FilterUpdates() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updates
}
