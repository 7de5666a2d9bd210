// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package stack

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/buffer"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/header"
)

// LinkCapabilities describes what a link driver can do.
type LinkCapabilities uint32

// Capability flags.
const (
	// CapLinkStateNotification is set when the driver reports link
	// transitions itself instead of being polled.
	CapLinkStateNotification LinkCapabilities = 1 << iota

	// CapMACConfig is set when the MAC speed/duplex can be reprogrammed.
	CapMACConfig
)

// TxAncillary carries per-frame transmit metadata alongside the payload.
type TxAncillary struct {
	TTL       uint8
	TOS       uint8
	VlanPCP   int8
	VlanDEI   int8
	VmanPCP   int8
	VmanDEI   int8
	Timestamp time.Time
}

// RxAncillary carries per-frame receive metadata from the driver.
type RxAncillary struct {
	Timestamp time.Time
	TTL       uint8
	TOS       uint8
}

// LinkDriver is the contract a NIC driver implements. Send may be called
// with the net mutex held and must not reacquire it. The driver delivers
// inbound frames through Interface.DeliverFrame, either directly from a
// context that may take the net mutex or via Net.ScheduleFromISR.
type LinkDriver interface {
	// Attach binds the driver to its interface and brings the hardware
	// up. It is called once, before any Send.
	Attach(ifc *Interface) error

	// Send queues one Ethernet frame for transmission. offset is the
	// index of the first byte to transmit.
	Send(frame buffer.VectorisedView, offset int, anc *TxAncillary) error

	// UpdateMACFilter reprograms the hardware unicast/multicast
	// acceptance list from ifc.MACFilter().
	UpdateMACFilter(ifc *Interface) error

	// Capabilities reports the driver's capability flags.
	Capabilities() LinkCapabilities
}

// LinkTicker is implemented by drivers that need periodic maintenance.
type LinkTicker interface {
	Tick(period time.Duration)
}

// IRQController is implemented by drivers whose receive interrupt can
// be masked around critical sections.
type IRQController interface {
	EnableIRQ()
	DisableIRQ()
}

// PHYAccessor is implemented by drivers exposing raw PHY registers.
type PHYAccessor interface {
	ReadPHYReg(reg uint8) (uint16, error)
	WritePHYReg(reg uint8, value uint16) error
}

// MACConfigurer is implemented by drivers with CapMACConfig.
type MACConfigurer interface {
	UpdateMACConfig(speedMbps int, fullDuplex bool) error
}

// AddressState is the lifecycle state of an interface address.
type AddressState int

// Address states.
const (
	// AddrStateTentative marks an address still under duplicate
	// detection; it must not source traffic.
	AddrStateTentative AddressState = iota

	// AddrStateValid marks a usable address.
	AddrStateValid

	// AddrStateConflict marks an address another node claimed.
	AddrStateConflict
)

// AddressEntry is one address assigned to an interface.
type AddressEntry struct {
	Addr  tcpip.Address
	Mask  tcpip.Address
	State AddressState
}

// StatCounter is a monotonically increasing event counter, safe to bump
// from interrupt context.
type StatCounter struct {
	v uint64
}

// Increment adds 1.
func (c *StatCounter) Increment() { atomic.AddUint64(&c.v, 1) }

// IncrementBy adds n.
func (c *StatCounter) IncrementBy(n uint64) { atomic.AddUint64(&c.v, n) }

// Value returns the current count.
func (c *StatCounter) Value() uint64 { return atomic.LoadUint64(&c.v) }

// InterfaceStats counts frame-level activity on one interface.
type InterfaceStats struct {
	TxFrames  StatCounter
	TxBytes   StatCounter
	RxFrames  StatCounter
	RxBytes   StatCounter
	RxDropped StatCounter
}

// macFilterEntry is one reference-counted hardware acceptance address.
type macFilterEntry struct {
	addr tcpip.LinkAddress
	refs int
}

// MACFilter is the reference-counted list of MAC addresses the hardware
// should accept, handed to the driver on each update.
type MACFilter struct {
	entries []macFilterEntry
}

// Add references addr, returning true when it was newly inserted and the
// hardware filter must be reprogrammed.
func (f *MACFilter) Add(addr tcpip.LinkAddress) bool {
	for i := range f.entries {
		if f.entries[i].addr == addr {
			f.entries[i].refs++
			return false
		}
	}
	f.entries = append(f.entries, macFilterEntry{addr: addr, refs: 1})
	return true
}

// Remove drops one reference to addr, returning true when the last
// reference went away.
func (f *MACFilter) Remove(addr tcpip.LinkAddress) bool {
	for i := range f.entries {
		if f.entries[i].addr != addr {
			continue
		}
		f.entries[i].refs--
		if f.entries[i].refs > 0 {
			return false
		}
		f.entries = append(f.entries[:i], f.entries[i+1:]...)
		return true
	}
	return false
}

// Addresses returns the currently referenced addresses.
func (f *MACFilter) Addresses() []tcpip.LinkAddress {
	out := make([]tcpip.LinkAddress, 0, len(f.entries))
	for i := range f.entries {
		out = append(out, f.entries[i].addr)
	}
	return out
}

// PacketHandler consumes one inbound frame for a registered ethertype.
// Handlers run with the net mutex held.
type PacketHandler func(ifc *Interface, eth header.EthernetFields, payload buffer.View, rx *RxAncillary)

// Ticker is a periodic maintenance hook driven by Net.Tick. Tickers run
// with the net mutex held.
type Ticker func(now time.Time)

// Interface is one network attachment: a MAC, an address list, the
// hardware acceptance filter, and the protocol state keyed to it.
type Interface struct {
	net    *Net
	id     tcpip.NICID
	name   string
	mac    tcpip.LinkAddress
	mtu    uint32
	driver LinkDriver

	// The fields below are guarded by the net mutex.
	linkUp    bool
	addrs     []*AddressEntry
	macFilter MACFilter
	handlers  map[uint16]PacketHandler
	tickers   []Ticker

	stats InterfaceStats
}

// ID returns the interface identifier.
func (ifc *Interface) ID() tcpip.NICID { return ifc.id }

// Name returns the configured interface name.
func (ifc *Interface) Name() string { return ifc.name }

// LinkAddress returns the interface MAC.
func (ifc *Interface) LinkAddress() tcpip.LinkAddress { return ifc.mac }

// MTU returns the link MTU.
func (ifc *Interface) MTU() uint32 { return ifc.mtu }

// Net returns the owning context.
func (ifc *Interface) Net() *Net { return ifc.net }

// Stats returns the interface counters.
func (ifc *Interface) Stats() *InterfaceStats { return &ifc.stats }

// Driver returns the attached link driver.
func (ifc *Interface) Driver() LinkDriver { return ifc.driver }

// SetLinkState records a link transition and wakes the net event.
func (ifc *Interface) SetLinkState(up bool) {
	ifc.net.mu.Lock()
	changed := ifc.linkUp != up
	ifc.linkUp = up
	ifc.net.mu.Unlock()
	if changed {
		glog.Infof("%s: link %v", ifc.name, map[bool]string{true: "up", false: "down"}[up])
		ifc.net.event.Signal()
	}
}

// LinkUp reports the current link state.
func (ifc *Interface) LinkUp() bool {
	ifc.net.mu.Lock()
	defer ifc.net.mu.Unlock()
	return ifc.linkUp
}

// AddAddress assigns addr to the interface. Addresses start in the state
// given; duplicate assignment fails.
func (ifc *Interface) AddAddress(addr, mask tcpip.Address, state AddressState) *tcpip.Error {
	if !addr.IsV4() && !addr.IsV6() {
		return tcpip.ErrBadAddress
	}
	ifc.net.mu.Lock()
	defer ifc.net.mu.Unlock()
	for _, e := range ifc.addrs {
		if e.Addr == addr {
			return tcpip.ErrInvalidParameter
		}
	}
	ifc.addrs = append(ifc.addrs, &AddressEntry{Addr: addr, Mask: mask, State: state})
	return nil
}

// RemoveAddress unassigns addr.
func (ifc *Interface) RemoveAddress(addr tcpip.Address) *tcpip.Error {
	ifc.net.mu.Lock()
	defer ifc.net.mu.Unlock()
	for i, e := range ifc.addrs {
		if e.Addr == addr {
			ifc.addrs = append(ifc.addrs[:i], ifc.addrs[i+1:]...)
			return nil
		}
	}
	return tcpip.ErrAddressNotFound
}

// addressEntriesLocked returns the live address entries for the given
// family. Callers hold the net mutex and may mutate entry state.
func (ifc *Interface) addressEntriesLocked(v6 bool) []*AddressEntry {
	out := make([]*AddressEntry, 0, len(ifc.addrs))
	for _, e := range ifc.addrs {
		if e.Addr.IsV6() == v6 {
			out = append(out, e)
		}
	}
	return out
}

// IPv4AddressEntriesLocked returns the IPv4 address entries. The net
// mutex must be held.
func (ifc *Interface) IPv4AddressEntriesLocked() []*AddressEntry {
	return ifc.addressEntriesLocked(false)
}

// PrimaryAddress returns the first valid address of the given family.
func (ifc *Interface) PrimaryAddress(v6 bool) (tcpip.Address, bool) {
	ifc.net.mu.Lock()
	defer ifc.net.mu.Unlock()
	for _, e := range ifc.addrs {
		if e.Addr.IsV6() == v6 && e.State == AddrStateValid {
			return e.Addr, true
		}
	}
	return "", false
}

// AddressState returns the state of addr on this interface.
func (ifc *Interface) AddressState(addr tcpip.Address) (AddressState, bool) {
	ifc.net.mu.Lock()
	defer ifc.net.mu.Unlock()
	for _, e := range ifc.addrs {
		if e.Addr == addr {
			return e.State, true
		}
	}
	return 0, false
}

// SetAddressState moves addr to the given state.
func (ifc *Interface) SetAddressState(addr tcpip.Address, state AddressState) *tcpip.Error {
	ifc.net.mu.Lock()
	defer ifc.net.mu.Unlock()
	for _, e := range ifc.addrs {
		if e.Addr == addr {
			e.State = state
			return nil
		}
	}
	return tcpip.ErrAddressNotFound
}

// MACFilter returns the hardware acceptance list. The net mutex must be
// held to mutate it.
func (ifc *Interface) MACFilter() *MACFilter { return &ifc.macFilter }

// RefreshMACFilterLocked pushes the acceptance list to the driver. The
// net mutex must be held.
func (ifc *Interface) RefreshMACFilterLocked() {
	if err := ifc.driver.UpdateMACFilter(ifc); err != nil {
		glog.Errorf("%s: MAC filter update: %v", ifc.name, err)
	}
}

// RegisterPacketHandler installs h for an ethertype. The handler runs
// with the net mutex held.
func (ifc *Interface) RegisterPacketHandler(ethertype uint16, h PacketHandler) {
	ifc.net.mu.Lock()
	defer ifc.net.mu.Unlock()
	ifc.handlers[ethertype] = h
}

// AddTicker installs a periodic maintenance hook.
func (ifc *Interface) AddTicker(t Ticker) {
	ifc.net.mu.Lock()
	defer ifc.net.mu.Unlock()
	ifc.tickers = append(ifc.tickers, t)
}

// DeliverFrame demultiplexes one inbound Ethernet frame. Drivers call it
// from a context allowed to take the net mutex.
func (ifc *Interface) DeliverFrame(frame []byte, rx *RxAncillary) {
	ifc.stats.RxFrames.Increment()
	ifc.stats.RxBytes.IncrementBy(uint64(len(frame)))
	if len(frame) < header.EthernetMinimumSize {
		ifc.stats.RxDropped.Increment()
		return
	}
	eth := header.Ethernet(frame)
	fields := header.EthernetFields{
		SrcAddr: eth.SourceAddress(),
		DstAddr: eth.DestinationAddress(),
		Type:    eth.Type(),
	}
	if glog.V(2) {
		glog.Infof("%s: rx %s -> %s type %#04x len %d", ifc.name, fields.SrcAddr, fields.DstAddr, fields.Type, len(frame))
	}

	ifc.net.mu.Lock()
	h, ok := ifc.handlers[fields.Type]
	if !ok {
		ifc.stats.RxDropped.Increment()
		ifc.net.mu.Unlock()
		return
	}
	h(ifc, fields, buffer.View(frame[header.EthernetMinimumSize:]), rx)
	ifc.net.mu.Unlock()
}

// WriteEthernetLocked prepends an Ethernet header and hands the frame to
// the driver. The net mutex must be held.
func (ifc *Interface) WriteEthernetLocked(dst tcpip.LinkAddress, ethertype uint16, payload buffer.VectorisedView, anc *TxAncillary) *tcpip.Error {
	hdr := buffer.NewView(header.EthernetMinimumSize)
	header.Ethernet(hdr).Encode(&header.EthernetFields{
		SrcAddr: ifc.mac,
		DstAddr: dst,
		Type:    ethertype,
	})
	frame := hdr.ToVectorisedView()
	for _, v := range payload.Views() {
		frame.AppendView(v)
	}
	if err := ifc.driver.Send(frame, 0, anc); err != nil {
		glog.Warningf("%s: send: %v", ifc.name, err)
		return tcpip.ErrNoMemory
	}
	ifc.stats.TxFrames.Increment()
	ifc.stats.TxBytes.IncrementBy(uint64(frame.Size()))
	return nil
}

// String implements fmt.Stringer.
func (ifc *Interface) String() string {
	return fmt.Sprintf("%s(%d)", ifc.name, ifc.id)
}
