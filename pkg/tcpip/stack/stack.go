// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package stack ties the interface table, the NIC driver contract, and
// the global serialization model together. One Net value is the whole
// process context: a single coarse mutex guards every table hanging off
// it, and interrupt context funnels work through ScheduleFromISR.
package stack

import (
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/waiter"
)

// Net is the process-wide stack context. All protocol state — the socket
// table, neighbor caches, multicast filter tables — is reached through
// it and serialized by its mutex.
type Net struct {
	clock tcpip.Clock
	event *waiter.Event

	mu     sync.Mutex
	ifaces []*Interface
	nextID tcpip.NICID

	workMu sync.Mutex
	work   []func()
}

// New creates an empty stack context. A nil clock selects the runtime
// clock.
func New(clock tcpip.Clock) *Net {
	if clock == nil {
		clock = tcpip.StdClock{}
	}
	return &Net{
		clock:  clock,
		event:  waiter.NewEvent(),
		nextID: 1,
	}
}

// Clock returns the stack's time source.
func (n *Net) Clock() tcpip.Clock { return n.clock }

// Event returns the global net event, signaled whenever deferred work or
// a link transition needs servicing.
func (n *Net) Event() *waiter.Event { return n.event }

// Lock acquires the net mutex. Protocol packages take it around every
// state mutation; blocking socket operations drop it across waits.
func (n *Net) Lock() { n.mu.Lock() }

// Unlock releases the net mutex.
func (n *Net) Unlock() { n.mu.Unlock() }

// AddInterface registers a new interface over driver and attaches it.
func (n *Net) AddInterface(name string, mac tcpip.LinkAddress, mtu uint32, driver LinkDriver) (*Interface, error) {
	n.mu.Lock()
	ifc := &Interface{
		net:      n,
		id:       n.nextID,
		name:     name,
		mac:      mac,
		mtu:      mtu,
		driver:   driver,
		handlers: make(map[uint16]PacketHandler),
	}
	n.nextID++
	n.ifaces = append(n.ifaces, ifc)
	n.mu.Unlock()

	if err := driver.Attach(ifc); err != nil {
		n.mu.Lock()
		n.ifaces = n.ifaces[:len(n.ifaces)-1]
		n.mu.Unlock()
		return nil, err
	}
	glog.Infof("%s: interface added, mac %s mtu %d", name, mac, mtu)
	return ifc, nil
}

// Interface returns the interface with the given id, or nil.
func (n *Net) Interface(id tcpip.NICID) *Interface {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ifc := range n.ifaces {
		if ifc.id == id {
			return ifc
		}
	}
	return nil
}

// DefaultInterface returns the first registered interface, or nil.
func (n *Net) DefaultInterface() *Interface {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.defaultInterfaceLocked()
}

// DefaultInterfaceLocked is DefaultInterface for callers already holding
// the net mutex.
func (n *Net) DefaultInterfaceLocked() *Interface {
	return n.defaultInterfaceLocked()
}

func (n *Net) defaultInterfaceLocked() *Interface {
	if len(n.ifaces) == 0 {
		return nil
	}
	return n.ifaces[0]
}

// Interfaces returns a snapshot of the interface list.
func (n *Net) Interfaces() []*Interface {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Interface, len(n.ifaces))
	copy(out, n.ifaces)
	return out
}

// ScheduleFromISR queues f to run under the net mutex and signals the
// global net event. It never blocks and takes no stack locks, so it is
// safe from the NIC receive interrupt.
func (n *Net) ScheduleFromISR(f func()) {
	n.workMu.Lock()
	n.work = append(n.work, f)
	n.workMu.Unlock()
	n.event.Signal()
}

// Service drains queued work under the net mutex. It returns the number
// of work items run.
func (n *Net) Service() int {
	n.workMu.Lock()
	work := n.work
	n.work = nil
	n.workMu.Unlock()
	if len(work) == 0 {
		return 0
	}
	n.mu.Lock()
	for _, f := range work {
		f()
	}
	n.mu.Unlock()
	return len(work)
}

// Tick drives every interface's periodic maintenance: protocol timers
// registered with AddTicker, then the driver's own tick when it has one.
func (n *Net) Tick(period time.Duration) {
	now := n.clock.Now()

	n.mu.Lock()
	ifaces := make([]*Interface, len(n.ifaces))
	copy(ifaces, n.ifaces)
	n.mu.Unlock()

	for _, ifc := range ifaces {
		n.mu.Lock()
		for _, t := range ifc.tickers {
			t(now)
		}
		n.mu.Unlock()
		if lt, ok := ifc.driver.(LinkTicker); ok {
			lt.Tick(period)
		}
	}
}
