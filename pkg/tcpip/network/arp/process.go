// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package arp

import (
	"time"

	"github.com/golang/glog"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/buffer"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/header"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/stack"
)

// tick advances entry timers. It runs with the net mutex held.
func (c *Cache) tick(now time.Time) {
	for i := range c.entries {
		e := &c.entries[i]
		if e.state == StateNone || e.state == StatePermanent {
			continue
		}
		if e.timeout == 0 || now.Sub(e.timestamp) < e.timeout {
			continue
		}
		switch e.state {
		case StateIncomplete:
			if e.retransmitCount < MaxRequests {
				e.retransmitCount++
				e.timestamp = now
				c.sendRequestLocked(e.ipAddr)
			} else {
				glog.V(1).Infof("%s: arp: %s unresolved after %d requests", c.ifc.Name(), e.ipAddr, MaxRequests)
				c.stats.Failures.Increment()
				c.dropQueueLocked(e)
				*e = entry{}
			}
		case StateReachable:
			e.state = StateStale
			e.timestamp = now
			e.timeout = 0
		case StateDelay:
			e.state = StateProbe
			e.retransmitCount = 1
			e.timestamp = now
			e.timeout = c.config.ProbeTimeout
			c.sendUnicastProbeLocked(e)
		case StateProbe:
			if e.retransmitCount < MaxProbes {
				e.retransmitCount++
				e.timestamp = now
				c.sendUnicastProbeLocked(e)
			} else {
				glog.V(1).Infof("%s: arp: %s unreachable after %d probes", c.ifc.Name(), e.ipAddr, MaxProbes)
				c.stats.Failures.Increment()
				*e = entry{}
			}
		}
	}
}

// handlePacket demultiplexes one inbound ARP body. It runs with the net
// mutex held.
func (c *Cache) handlePacket(ifc *stack.Interface, eth header.EthernetFields, payload buffer.View, rx *stack.RxAncillary) {
	a := header.ARP(payload)
	if !a.IsValid() {
		return
	}
	spa := tcpip.Address(a.ProtocolAddressSender())
	if header.IsV4MulticastAddress(spa) || c.isDirectedBroadcastLocked(spa) {
		return
	}
	switch a.Op() {
	case header.ARPRequest:
		c.stats.RequestsReceived.Increment()
		c.processRequestLocked(a)
	case header.ARPReply:
		c.stats.RepliesReceived.Increment()
		c.processReplyLocked(a)
	}
}

func (c *Cache) isDirectedBroadcastLocked(addr tcpip.Address) bool {
	for _, ae := range c.ifc.IPv4AddressEntriesLocked() {
		if header.IsV4BroadcastOnSubnet(addr, ae.Addr, ae.Mask) {
			return true
		}
	}
	return false
}

// processRequestLocked checks a request against the interface address
// list for conflicts and answers requests targeting one of our valid
// addresses.
func (c *Cache) processRequestLocked(a header.ARP) {
	sha := tcpip.LinkAddress(a.HardwareAddressSender())
	spa := tcpip.Address(a.ProtocolAddressSender())
	tpa := tcpip.Address(a.ProtocolAddressTarget())
	ourMAC := c.ifc.LinkAddress()

	for _, ae := range c.ifc.IPv4AddressEntriesLocked() {
		switch ae.State {
		case stack.AddrStateTentative:
			// A probe for the address we are still verifying, or any
			// claim of it, from different hardware means we lost.
			if (ae.Addr == tpa || ae.Addr == spa) && sha != ourMAC {
				c.markConflictLocked(ae)
			}
		default:
			if ae.Addr == spa && sha != ourMAC {
				c.markConflictLocked(ae)
			}
		}
	}

	if !c.enabled || a.IsProbe() {
		return
	}
	for _, ae := range c.ifc.IPv4AddressEntriesLocked() {
		if ae.State != stack.AddrStateTentative && ae.Addr == tpa {
			c.sendReplyLocked(tpa, sha, spa)
			return
		}
	}
}

func (c *Cache) markConflictLocked(ae *stack.AddressEntry) {
	if ae.State == stack.AddrStateConflict {
		return
	}
	glog.Warningf("%s: arp: address conflict on %s", c.ifc.Name(), ae.Addr)
	ae.State = stack.AddrStateConflict
	c.stats.Conflicts.Increment()
	c.ifc.Net().Event().Signal()
}

// processReplyLocked folds a reply into the cache. The sender hardware
// address must be unicast and the sender protocol address usable;
// permanent entries are never overwritten.
func (c *Cache) processReplyLocked(a header.ARP) {
	sha := tcpip.LinkAddress(a.HardwareAddressSender())
	spa := tcpip.Address(a.ProtocolAddressSender())
	if !sha.IsUnicast() || spa.IsUnspecified() || spa == header.IPv4Broadcast {
		return
	}

	// A reply claiming one of our addresses from foreign hardware is a
	// conflict regardless of cache state.
	for _, ae := range c.ifc.IPv4AddressEntriesLocked() {
		if ae.Addr == spa && sha != c.ifc.LinkAddress() {
			c.markConflictLocked(ae)
		}
	}

	e := c.findLocked(spa)
	if e == nil {
		return
	}
	switch e.state {
	case StateIncomplete:
		e.macAddr = sha
		e.state = StateReachable
		e.timestamp = c.now()
		e.timeout = c.config.ReachableTime
		e.retransmitCount = 0
		c.stats.Resolved.Increment()
		c.flushQueueLocked(e)
	case StateReachable:
		if e.macAddr != sha {
			e.state = StateStale
			e.timestamp = c.now()
			e.timeout = 0
		}
	case StateProbe:
		e.macAddr = sha
		e.state = StateReachable
		e.timestamp = c.now()
		e.timeout = c.config.ReachableTime
		e.retransmitCount = 0
		c.stats.Resolved.Increment()
	}
}
