// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package arp implements IPv4 neighbor resolution over Ethernet: a
// bounded cache with timer-driven entry lifecycle, a per-entry queue of
// packets awaiting resolution, and conflict detection for tentative
// interface addresses.
package arp

import (
	"time"

	"github.com/golang/glog"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/buffer"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/header"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/stack"
)

const (
	// CacheSize is the number of neighbor entries per interface.
	CacheSize = 8

	// QueueSize is the number of packets held per unresolved entry.
	QueueSize = 2

	// MaxRequests is the number of broadcast requests sent before an
	// unresolved entry is abandoned.
	MaxRequests = 3

	// MaxProbes is the number of unicast reachability probes sent
	// before a stale entry is discarded.
	MaxProbes = 2
)

// Config carries the cache timing parameters.
type Config struct {
	RequestTimeout      time.Duration
	ProbeTimeout        time.Duration
	ReachableTime       time.Duration
	DelayFirstProbeTime time.Duration
}

// DefaultConfig returns the RFC 1122/4861-shaped defaults.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:      time.Second,
		ProbeTimeout:        time.Second,
		ReachableTime:       60 * time.Second,
		DelayFirstProbeTime: 5 * time.Second,
	}
}

// EntryState is the lifecycle state of a neighbor entry.
type EntryState int

// Neighbor entry states.
const (
	StateNone EntryState = iota
	StateIncomplete
	StateReachable
	StateStale
	StateDelay
	StateProbe
	StatePermanent
)

// String implements fmt.Stringer.
func (s EntryState) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateIncomplete:
		return "INCOMPLETE"
	case StateReachable:
		return "REACHABLE"
	case StateStale:
		return "STALE"
	case StateDelay:
		return "DELAY"
	case StateProbe:
		return "PROBE"
	case StatePermanent:
		return "PERMANENT"
	default:
		return "UNKNOWN"
	}
}

// queuedPacket is one payload held while its destination resolves.
type queuedPacket struct {
	payload buffer.VectorisedView
	offset  int
	anc     stack.TxAncillary
}

// entry is one neighbor. Queued packets exist only in StateIncomplete.
type entry struct {
	ipAddr          tcpip.Address
	macAddr         tcpip.LinkAddress
	state           EntryState
	timestamp       time.Time
	timeout         time.Duration
	retransmitCount int
	queue           []queuedPacket
}

// Stats counts cache activity.
type Stats struct {
	RequestsSent     stack.StatCounter
	RequestsReceived stack.StatCounter
	RepliesSent      stack.StatCounter
	RepliesReceived  stack.StatCounter
	Resolved         stack.StatCounter
	Failures         stack.StatCounter
	PacketsQueued    stack.StatCounter
	PacketsDropped   stack.StatCounter
	Conflicts        stack.StatCounter
}

// Cache is the per-interface neighbor table.
type Cache struct {
	ifc    *stack.Interface
	config Config

	// Guarded by the net mutex.
	enabled bool
	entries [CacheSize]entry

	stats Stats
}

// NewCache creates the neighbor cache for ifc, hooks it into the
// interface's inbound demux and timer, and enables it.
func NewCache(ifc *stack.Interface, config Config) *Cache {
	c := &Cache{ifc: ifc, config: config, enabled: true}
	ifc.RegisterPacketHandler(header.EtherTypeARP, c.handlePacket)
	ifc.AddTicker(c.tick)
	return c
}

// SetEnabled turns dynamic resolution on or off. Disabled caches still
// answer nothing and resolve nothing; static entries keep working.
func (c *Cache) SetEnabled(enabled bool) {
	c.ifc.Net().Lock()
	c.enabled = enabled
	c.ifc.Net().Unlock()
}

// Stats returns the cache counters.
func (c *Cache) Stats() *Stats { return &c.stats }

// EntryInfo is a diagnostic snapshot of one live entry.
type EntryInfo struct {
	Addr        tcpip.Address
	LinkAddr    tcpip.LinkAddress
	State       EntryState
	QueuedCount int
}

// Entries returns a snapshot of the live entries.
func (c *Cache) Entries() []EntryInfo {
	c.ifc.Net().Lock()
	defer c.ifc.Net().Unlock()
	var out []EntryInfo
	for i := range c.entries {
		e := &c.entries[i]
		if e.state == StateNone {
			continue
		}
		out = append(out, EntryInfo{
			Addr:        e.ipAddr,
			LinkAddr:    e.macAddr,
			State:       e.state,
			QueuedCount: len(e.queue),
		})
	}
	return out
}

// StateCounts returns the number of live entries per state.
func (c *Cache) StateCounts() map[EntryState]int {
	c.ifc.Net().Lock()
	defer c.ifc.Net().Unlock()
	out := make(map[EntryState]int)
	for i := range c.entries {
		if s := c.entries[i].state; s != StateNone {
			out[s]++
		}
	}
	return out
}

// Resolve maps ip to its link address. A hit on a stale entry starts the
// delay/probe reconfirmation; a miss creates an unresolved entry, emits
// the first broadcast request, and reports ErrInProgress so the caller
// can queue the packet and retry later.
func (c *Cache) Resolve(ip tcpip.Address) (tcpip.LinkAddress, *tcpip.Error) {
	c.ifc.Net().Lock()
	defer c.ifc.Net().Unlock()
	return c.resolveLocked(ip)
}

func (c *Cache) resolveLocked(ip tcpip.Address) (tcpip.LinkAddress, *tcpip.Error) {
	if !ip.IsV4() {
		return "", tcpip.ErrBadAddress
	}
	if e := c.findLocked(ip); e != nil {
		switch e.state {
		case StateIncomplete:
			return "", tcpip.ErrInProgress
		case StateStale:
			// First use of a stale entry arms the probe timer.
			e.state = StateDelay
			e.timestamp = c.now()
			e.timeout = c.config.DelayFirstProbeTime
			return e.macAddr, nil
		default:
			return e.macAddr, nil
		}
	}
	if !c.enabled {
		return "", tcpip.ErrAddressNotFound
	}
	e := c.createEntryLocked()
	if e == nil {
		return "", tcpip.ErrNoResource
	}
	e.ipAddr = ip
	e.state = StateIncomplete
	e.timestamp = c.now()
	e.timeout = c.config.RequestTimeout
	e.retransmitCount = 1
	c.sendRequestLocked(ip)
	return "", tcpip.ErrInProgress
}

// EnqueuePacket holds payload until ip resolves. Only unresolved entries
// accept packets; on overflow the oldest held packet is dropped.
func (c *Cache) EnqueuePacket(ip tcpip.Address, payload buffer.VectorisedView, offset int, anc *stack.TxAncillary) *tcpip.Error {
	c.ifc.Net().Lock()
	defer c.ifc.Net().Unlock()

	e := c.findLocked(ip)
	if e == nil {
		return tcpip.ErrAddressNotFound
	}
	if e.state != StateIncomplete {
		return tcpip.ErrUnexpectedState
	}
	if len(e.queue) >= QueueSize {
		e.queue = e.queue[1:]
		c.stats.PacketsDropped.Increment()
	}
	qp := queuedPacket{payload: payload, offset: offset}
	if anc != nil {
		qp.anc = *anc
	}
	e.queue = append(e.queue, qp)
	c.stats.PacketsQueued.Increment()
	return nil
}

// QueuedPacketCount returns the number of packets held across all
// entries.
func (c *Cache) QueuedPacketCount() int {
	c.ifc.Net().Lock()
	defer c.ifc.Net().Unlock()
	total := 0
	for i := range c.entries {
		total += len(c.entries[i].queue)
	}
	return total
}

// AddStaticEntry installs a permanent mapping. Dynamic discovery never
// updates or evicts it.
func (c *Cache) AddStaticEntry(ip tcpip.Address, mac tcpip.LinkAddress) *tcpip.Error {
	if !ip.IsV4() || len(mac) != header.EthernetAddressSize {
		return tcpip.ErrInvalidParameter
	}
	c.ifc.Net().Lock()
	defer c.ifc.Net().Unlock()

	e := c.findLocked(ip)
	if e == nil {
		e = c.createEntryLocked()
		if e == nil {
			return tcpip.ErrNoResource
		}
		e.ipAddr = ip
	} else {
		c.dropQueueLocked(e)
	}
	e.macAddr = mac
	e.state = StatePermanent
	e.timestamp = c.now()
	e.timeout = 0
	e.retransmitCount = 0
	return nil
}

// RemoveStaticEntry removes a permanent mapping.
func (c *Cache) RemoveStaticEntry(ip tcpip.Address) *tcpip.Error {
	c.ifc.Net().Lock()
	defer c.ifc.Net().Unlock()
	if e := c.findLocked(ip); e != nil && e.state == StatePermanent {
		*e = entry{}
		return nil
	}
	return tcpip.ErrAddressNotFound
}

// Flush discards every dynamic entry and its queued packets.
func (c *Cache) Flush() {
	c.ifc.Net().Lock()
	defer c.ifc.Net().Unlock()
	for i := range c.entries {
		e := &c.entries[i]
		if e.state == StateNone || e.state == StatePermanent {
			continue
		}
		c.dropQueueLocked(e)
		*e = entry{}
	}
}

// SendProbe broadcasts an address probe: a request whose sender protocol
// address is unspecified, used for duplicate address detection on
// tentative interface addresses.
func (c *Cache) SendProbe(target tcpip.Address) *tcpip.Error {
	if !target.IsV4() {
		return tcpip.ErrBadAddress
	}
	c.ifc.Net().Lock()
	defer c.ifc.Net().Unlock()
	return c.sendPacketLocked(header.ARPRequest, tcpip.BroadcastLinkAddress, header.IPv4Any, "", target)
}

func (c *Cache) now() time.Time { return c.ifc.Net().Clock().Now() }

func (c *Cache) findLocked(ip tcpip.Address) *entry {
	for i := range c.entries {
		if c.entries[i].state != StateNone && c.entries[i].ipAddr == ip {
			return &c.entries[i]
		}
	}
	return nil
}

// createEntryLocked returns a free slot, recycling the oldest
// non-permanent entry when the table is full.
func (c *Cache) createEntryLocked() *entry {
	var oldest *entry
	for i := range c.entries {
		e := &c.entries[i]
		if e.state == StateNone {
			return e
		}
		if e.state == StatePermanent {
			continue
		}
		if oldest == nil || e.timestamp.Before(oldest.timestamp) {
			oldest = e
		}
	}
	if oldest == nil {
		return nil
	}
	c.dropQueueLocked(oldest)
	*oldest = entry{}
	return oldest
}

func (c *Cache) dropQueueLocked(e *entry) {
	if n := len(e.queue); n > 0 {
		c.stats.PacketsDropped.IncrementBy(uint64(n))
	}
	e.queue = nil
}

// flushQueueLocked transmits every held packet to the freshly learned
// link address.
func (c *Cache) flushQueueLocked(e *entry) {
	for i := range e.queue {
		qp := &e.queue[i]
		payload := qp.payload
		if qp.offset > 0 {
			payload.TrimFront(qp.offset)
		}
		if err := c.ifc.WriteEthernetLocked(e.macAddr, header.EtherTypeIPv4, payload, &qp.anc); err != nil {
			glog.Warningf("%s: flush to %s: %v", c.ifc.Name(), e.ipAddr, err)
		}
	}
	e.queue = nil
}

// sourceAddressLocked picks the sender protocol address for an exchange
// with target: the on-subnet interface address when one exists,
// otherwise the first valid address.
func (c *Cache) sourceAddressLocked(target tcpip.Address) tcpip.Address {
	var fallback tcpip.Address
	for _, ae := range c.ifc.IPv4AddressEntriesLocked() {
		if ae.State != stack.AddrStateValid {
			continue
		}
		if fallback == "" {
			fallback = ae.Addr
		}
		if sameSubnet(ae.Addr, target, ae.Mask) {
			return ae.Addr
		}
	}
	if fallback == "" {
		return header.IPv4Any
	}
	return fallback
}

func sameSubnet(a, b, mask tcpip.Address) bool {
	if len(a) != 4 || len(b) != 4 || len(mask) != 4 {
		return false
	}
	for i := 0; i < 4; i++ {
		if a[i]&mask[i] != b[i]&mask[i] {
			return false
		}
	}
	return true
}

func (c *Cache) sendRequestLocked(target tcpip.Address) {
	spa := c.sourceAddressLocked(target)
	if err := c.sendPacketLocked(header.ARPRequest, tcpip.BroadcastLinkAddress, spa, "", target); err == nil {
		c.stats.RequestsSent.Increment()
	}
}

// sendUnicastProbeLocked reconfirms a cached mapping in place.
func (c *Cache) sendUnicastProbeLocked(e *entry) {
	spa := c.sourceAddressLocked(e.ipAddr)
	if err := c.sendPacketLocked(header.ARPRequest, e.macAddr, spa, "", e.ipAddr); err == nil {
		c.stats.RequestsSent.Increment()
	}
}

func (c *Cache) sendReplyLocked(senderIP tcpip.Address, targetMAC tcpip.LinkAddress, targetIP tcpip.Address) {
	if err := c.sendPacketLocked(header.ARPReply, targetMAC, senderIP, targetMAC, targetIP); err == nil {
		c.stats.RepliesSent.Increment()
	}
}

func (c *Cache) sendPacketLocked(op header.ARPOp, dst tcpip.LinkAddress, spa tcpip.Address, tha tcpip.LinkAddress, tpa tcpip.Address) *tcpip.Error {
	body := buffer.NewView(header.ARPSize)
	a := header.ARP(body)
	a.SetIPv4OverEthernet()
	a.SetOp(op)
	copy(a.HardwareAddressSender(), c.ifc.LinkAddress())
	copy(a.ProtocolAddressSender(), spa)
	copy(a.HardwareAddressTarget(), tha)
	copy(a.ProtocolAddressTarget(), tpa)
	if glog.V(2) {
		glog.Infof("%s: arp tx op=%d spa=%s tpa=%s", c.ifc.Name(), op, spa, tpa)
	}
	return c.ifc.WriteEthernetLocked(dst, header.EtherTypeARP, body.ToVectorisedView(), nil)
}
