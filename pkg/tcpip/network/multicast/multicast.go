// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package multicast reconciles per-socket multicast reception state into
// per-interface state: for every joined group it derives the effective
// (filter mode, source list) pair, keeps the hardware acceptance list in
// step, and tells the membership-report layer when the derived state
// changes.
package multicast

import (
	"github.com/golang/glog"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/header"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/stack"
)

// InterfaceSourceMax bounds the derived per-interface source list.
const InterfaceSourceMax = 64

// FilterMode selects how a source list is interpreted.
type FilterMode int

// Filter modes per RFC 3376/3810.
const (
	// Include accepts only the listed sources.
	Include FilterMode = iota

	// Exclude accepts everything but the listed sources.
	Exclude
)

// String implements fmt.Stringer.
func (m FilterMode) String() string {
	switch m {
	case Include:
		return "INCLUDE"
	case Exclude:
		return "EXCLUDE"
	default:
		return "UNKNOWN"
	}
}

// Contribution is one socket's reception state for a (interface, group)
// pair. AnySource marks a plain join, which overrides source filtering
// for the whole interface while it stands.
type Contribution struct {
	Mode      FilterMode
	Sources   []tcpip.Address
	AnySource bool
}

// Enumerator yields every socket contribution for (ifc, group). It is
// called with the net mutex held.
type Enumerator func(ifc *stack.Interface, group tcpip.Address, yield func(Contribution))

// RouterNotifier observes derived per-interface state transitions; a
// membership-report implementation (IGMP, MLD) hangs off it. Calls are
// made with the net mutex held, immediately after the hardware filter
// was brought in step.
type RouterNotifier interface {
	MulticastFilterChanged(ifc *stack.Interface, group tcpip.Address, mode FilterMode, sources []tcpip.Address)
}

type entryKey struct {
	ifc   *stack.Interface
	group tcpip.Address
}

// ifEntry is the derived reception state for one (interface, group).
type ifEntry struct {
	group             tcpip.Address
	anySourceRefCount int
	macConfigured     bool
	mode              FilterMode
	sources           []tcpip.Address
}

// receives reports whether the entry would accept at least one source.
func (e *ifEntry) receives() bool {
	return e.mode == Exclude || len(e.sources) > 0
}

// State is the per-process multicast reception table.
type State struct {
	net      *stack.Net
	enum     Enumerator
	notifier RouterNotifier

	// Guarded by the net mutex.
	entries map[entryKey]*ifEntry
}

// NewState creates an empty reception table bound to net.
func NewState(net *stack.Net) *State {
	return &State{
		net:     net,
		entries: make(map[entryKey]*ifEntry),
	}
}

// SetEnumerator installs the socket-contribution source. The socket
// table calls this once at construction.
func (s *State) SetEnumerator(e Enumerator) { s.enum = e }

// SetNotifier installs the membership-report hook.
func (s *State) SetNotifier(n RouterNotifier) { s.notifier = n }

// UpdateLocked rederives the interface state for (ifc, group) from the
// current socket contributions, synchronizes the hardware filter, and
// notifies the report hook. The net mutex must be held.
//
// The derivation: all-INCLUDE contributions union; all-EXCLUDE
// contributions intersect; mixed modes exclude the EXCLUDE-union minus
// the INCLUDE-union. Any plain join forces (EXCLUDE, empty).
func (s *State) UpdateLocked(ifc *stack.Interface, group tcpip.Address) {
	key := entryKey{ifc: ifc, group: group}
	e := s.entries[key]

	var (
		contribs     int
		anySource    int
		includes     int
		includeUnion []tcpip.Address
		excludeAll   [][]tcpip.Address
	)
	if s.enum != nil {
		s.enum(ifc, group, func(c Contribution) {
			contribs++
			if c.AnySource {
				anySource++
				return
			}
			if c.Mode == Include {
				includes++
				includeUnion = addressUnion(includeUnion, c.Sources)
			} else {
				excludeAll = append(excludeAll, c.Sources)
			}
		})
	}

	var mode FilterMode
	var sources []tcpip.Address
	switch {
	case contribs == 0:
		mode, sources = Include, nil
	case anySource > 0:
		mode, sources = Exclude, nil
	case len(excludeAll) == 0:
		mode, sources = Include, includeUnion
	case includes == 0:
		mode, sources = Exclude, addressIntersectionAll(excludeAll)
	default:
		var excludeUnion []tcpip.Address
		for _, set := range excludeAll {
			excludeUnion = addressUnion(excludeUnion, set)
		}
		mode = Exclude
		sources = addressDifference(excludeUnion, includeUnion)
	}
	if len(sources) > InterfaceSourceMax {
		// The derived list no longer fits the static table; widen to
		// accept-all rather than silently lose sources.
		mode, sources = Exclude, nil
	}

	receives := mode == Exclude || len(sources) > 0
	if e == nil {
		if !receives && contribs == 0 {
			return
		}
		e = &ifEntry{group: group}
		s.entries[key] = e
	}
	e.anySourceRefCount = anySource
	e.mode = mode
	e.sources = sources

	mac := multicastLinkAddress(group)
	switch {
	case receives && !e.macConfigured:
		if ifc.MACFilter().Add(mac) {
			ifc.RefreshMACFilterLocked()
		}
		e.macConfigured = true
	case !receives && e.macConfigured:
		if ifc.MACFilter().Remove(mac) {
			ifc.RefreshMACFilterLocked()
		}
		e.macConfigured = false
	}

	if glog.V(1) {
		glog.Infof("%s: multicast %s -> %s %v", ifc.Name(), group, mode, sources)
	}
	if s.notifier != nil {
		s.notifier.MulticastFilterChanged(ifc, group, mode, sources)
	}

	if mode == Include && len(sources) == 0 {
		delete(s.entries, key)
	}
}

// Accept reports whether an inbound datagram for group dst from src
// passes the interface filter; a filtered or unknown destination yields
// ErrBadAddress.
func (s *State) Accept(ifc *stack.Interface, dst, src tcpip.Address) *tcpip.Error {
	s.net.Lock()
	defer s.net.Unlock()
	return s.acceptLocked(ifc, dst, src)
}

func (s *State) acceptLocked(ifc *stack.Interface, dst, src tcpip.Address) *tcpip.Error {
	e := s.entries[entryKey{ifc: ifc, group: dst}]
	if e == nil {
		return tcpip.ErrBadAddress
	}
	listed := addressListed(e.sources, src)
	if e.mode == Include && listed || e.mode == Exclude && !listed {
		return nil
	}
	return tcpip.ErrBadAddress
}

// SourceFilter returns the derived interface state for (ifc, group).
// An absent entry reports (EXCLUDE, none); callers relying on presence
// should test Joined instead.
func (s *State) SourceFilter(ifc *stack.Interface, group tcpip.Address) (FilterMode, []tcpip.Address) {
	s.net.Lock()
	defer s.net.Unlock()
	e := s.entries[entryKey{ifc: ifc, group: group}]
	if e == nil {
		return Exclude, nil
	}
	return e.mode, append([]tcpip.Address(nil), e.sources...)
}

// Joined reports whether the interface currently has reception state for
// group.
func (s *State) Joined(ifc *stack.Interface, group tcpip.Address) bool {
	s.net.Lock()
	defer s.net.Unlock()
	return s.entries[entryKey{ifc: ifc, group: group}] != nil
}

// GroupCount returns the number of groups with reception state in the
// given family.
func (s *State) GroupCount(v6 bool) int {
	s.net.Lock()
	defer s.net.Unlock()
	n := 0
	for k := range s.entries {
		if k.group.IsV6() == v6 {
			n++
		}
	}
	return n
}

func multicastLinkAddress(group tcpip.Address) tcpip.LinkAddress {
	if group.IsV6() {
		return header.IPv6MulticastLinkAddress(group)
	}
	return header.IPv4MulticastLinkAddress(group)
}

func addressListed(list []tcpip.Address, addr tcpip.Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}

func addressUnion(a, b []tcpip.Address) []tcpip.Address {
	out := a
	for _, addr := range b {
		if !addressListed(out, addr) {
			out = append(out, addr)
		}
	}
	return out
}

func addressIntersectionAll(sets [][]tcpip.Address) []tcpip.Address {
	if len(sets) == 0 {
		return nil
	}
	out := append([]tcpip.Address(nil), sets[0]...)
	for _, set := range sets[1:] {
		kept := out[:0]
		for _, addr := range out {
			if addressListed(set, addr) {
				kept = append(kept, addr)
			}
		}
		out = kept
	}
	return out
}

func addressDifference(a, b []tcpip.Address) []tcpip.Address {
	var out []tcpip.Address
	for _, addr := range a {
		if !addressListed(b, addr) {
			out = append(out, addr)
		}
	}
	return out
}
