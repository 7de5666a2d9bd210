// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package socket

import (
	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/header"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/network/multicast"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/stack"
)

// checkGroupOpLocked validates the common preconditions of every
// membership operation and resolves the target interface.
func (s *Socket) checkGroupOpLocked(group tcpip.Address) (*stack.Interface, *tcpip.Error) {
	if s.typ != TypeDgram && s.typ != TypeRawIP {
		return nil, tcpip.ErrInvalidEndpointState
	}
	if !header.IsMulticastAddress(group) {
		return nil, tcpip.ErrBadAddress
	}
	ifc := s.ifc
	if ifc == nil {
		ifc = s.table.net.DefaultInterfaceLocked()
	}
	if ifc == nil {
		return nil, tcpip.ErrInvalidEndpointState
	}
	return ifc, nil
}

func (s *Socket) findGroupLocked(group tcpip.Address) *GroupMembership {
	for i := range s.groups {
		if s.groups[i].Addr == group {
			return &s.groups[i]
		}
	}
	return nil
}

func (s *Socket) allocGroupLocked() *GroupMembership {
	for i := range s.groups {
		if len(s.groups[i].Addr) == 0 {
			return &s.groups[i]
		}
	}
	return nil
}

// collapseGroupLocked frees the slot when its filter degenerated to
// accepting nothing.
func collapseGroupLocked(g *GroupMembership) {
	if !g.anySource && g.Mode == multicast.Include && len(g.Sources) == 0 {
		*g = GroupMembership{}
	}
}

// JoinMulticastGroup joins group with no source filtering.
func (s *Socket) JoinMulticastGroup(group tcpip.Address) *tcpip.Error {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	ifc, err := s.checkGroupOpLocked(group)
	if err != nil {
		return err
	}
	g := s.findGroupLocked(group)
	if g == nil {
		if g = s.allocGroupLocked(); g == nil {
			return tcpip.ErrNoResource
		}
	}
	*g = GroupMembership{
		Addr:      group,
		Mode:      multicast.Exclude,
		ifc:       ifc,
		anySource: true,
	}
	s.table.mcast.UpdateLocked(ifc, group)
	return nil
}

// LeaveMulticastGroup withdraws the endpoint's membership of group.
func (s *Socket) LeaveMulticastGroup(group tcpip.Address) *tcpip.Error {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if _, err := s.checkGroupOpLocked(group); err != nil {
		return err
	}
	g := s.findGroupLocked(group)
	if g == nil {
		return tcpip.ErrAddressNotFound
	}
	ifc := g.ifc
	*g = GroupMembership{}
	s.table.mcast.UpdateLocked(ifc, group)
	return nil
}

// SetMulticastSourceFilter replaces the endpoint's source filter for
// group with the full state (mode, sources). An INCLUDE filter with no
// sources removes the membership.
func (s *Socket) SetMulticastSourceFilter(group tcpip.Address, mode multicast.FilterMode, sources []tcpip.Address) *tcpip.Error {
	if mode != multicast.Include && mode != multicast.Exclude {
		return tcpip.ErrInvalidParameter
	}
	if len(sources) > SourcesPerGroup {
		return tcpip.ErrInvalidParameter
	}
	s.table.net.Lock()
	defer s.table.net.Unlock()
	ifc, err := s.checkGroupOpLocked(group)
	if err != nil {
		return err
	}
	for _, src := range sources {
		if src.IsV6() != group.IsV6() {
			return tcpip.ErrBadAddress
		}
	}

	g := s.findGroupLocked(group)
	if mode == multicast.Include && len(sources) == 0 {
		if g == nil {
			return nil
		}
		ifc = g.ifc
		*g = GroupMembership{}
		s.table.mcast.UpdateLocked(ifc, group)
		return nil
	}
	if g == nil {
		if g = s.allocGroupLocked(); g == nil {
			return tcpip.ErrNoResource
		}
		g.Addr = group
		g.ifc = ifc
	}
	g.Mode = mode
	g.Sources = append(g.Sources[:0], sources...)
	g.anySource = false
	s.table.mcast.UpdateLocked(g.ifc, group)
	return nil
}

// GetMulticastSourceFilter returns the endpoint's source filter for
// group. A missing membership reads as (INCLUDE, no sources).
func (s *Socket) GetMulticastSourceFilter(group tcpip.Address) (multicast.FilterMode, []tcpip.Address, *tcpip.Error) {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if _, err := s.checkGroupOpLocked(group); err != nil {
		return multicast.Include, nil, err
	}
	g := s.findGroupLocked(group)
	if g == nil {
		return multicast.Include, nil, nil
	}
	if g.anySource {
		return multicast.Exclude, nil, nil
	}
	return g.Mode, append([]tcpip.Address(nil), g.Sources...), nil
}

// AddMulticastSource accepts one more source for group, creating the
// membership in INCLUDE mode as needed.
func (s *Socket) AddMulticastSource(group, source tcpip.Address) *tcpip.Error {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	ifc, err := s.checkGroupOpLocked(group)
	if err != nil {
		return err
	}
	if source.IsV6() != group.IsV6() {
		return tcpip.ErrBadAddress
	}
	g := s.findGroupLocked(group)
	if g == nil {
		if g = s.allocGroupLocked(); g == nil {
			return tcpip.ErrNoResource
		}
		*g = GroupMembership{Addr: group, Mode: multicast.Include, ifc: ifc}
	}
	if g.anySource || g.Mode == multicast.Exclude {
		g.Mode = multicast.Include
		g.Sources = g.Sources[:0]
		g.anySource = false
	}
	if !sourceListed(g.Sources, source) {
		if len(g.Sources) >= SourcesPerGroup {
			return tcpip.ErrNoResource
		}
		g.Sources = append(g.Sources, source)
	}
	s.table.mcast.UpdateLocked(g.ifc, group)
	return nil
}

// DropMulticastSource stops accepting source for group; dropping the
// last included source removes the membership.
func (s *Socket) DropMulticastSource(group, source tcpip.Address) *tcpip.Error {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if _, err := s.checkGroupOpLocked(group); err != nil {
		return err
	}
	g := s.findGroupLocked(group)
	if g == nil {
		return tcpip.ErrAddressNotFound
	}
	if !g.anySource && g.Mode == multicast.Include {
		g.Sources = sourceRemove(g.Sources, source)
	}
	ifc := g.ifc
	collapseGroupLocked(g)
	s.table.mcast.UpdateLocked(ifc, group)
	return nil
}

// BlockMulticastSource rejects source for group, switching the
// membership to EXCLUDE mode as needed.
func (s *Socket) BlockMulticastSource(group, source tcpip.Address) *tcpip.Error {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if _, err := s.checkGroupOpLocked(group); err != nil {
		return err
	}
	if source.IsV6() != group.IsV6() {
		return tcpip.ErrBadAddress
	}
	g := s.findGroupLocked(group)
	if g == nil {
		return tcpip.ErrAddressNotFound
	}
	if g.anySource || g.Mode == multicast.Include {
		g.Mode = multicast.Exclude
		g.Sources = g.Sources[:0]
		g.anySource = false
	}
	if !sourceListed(g.Sources, source) {
		if len(g.Sources) >= SourcesPerGroup {
			return tcpip.ErrNoResource
		}
		g.Sources = append(g.Sources, source)
	}
	s.table.mcast.UpdateLocked(g.ifc, group)
	return nil
}

// UnblockMulticastSource accepts a previously blocked source again.
func (s *Socket) UnblockMulticastSource(group, source tcpip.Address) *tcpip.Error {
	s.table.net.Lock()
	defer s.table.net.Unlock()
	if _, err := s.checkGroupOpLocked(group); err != nil {
		return err
	}
	g := s.findGroupLocked(group)
	if g == nil {
		return tcpip.ErrAddressNotFound
	}
	if !g.anySource && g.Mode == multicast.Exclude {
		g.Sources = sourceRemove(g.Sources, source)
	}
	s.table.mcast.UpdateLocked(g.ifc, group)
	return nil
}

func sourceListed(list []tcpip.Address, addr tcpip.Address) bool {
	for _, a := range list {
		if a == addr {
			return true
		}
	}
	return false
}

func sourceRemove(list []tcpip.Address, addr tcpip.Address) []tcpip.Address {
	for i, a := range list {
		if a == addr {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// enumerateContributions yields every socket's filter state for (ifc,
// group) into the interface reconciliation. It runs with the net mutex
// held.
func (t *Table) enumerateContributions(ifc *stack.Interface, group tcpip.Address, yield func(multicast.Contribution)) {
	for i := range t.slots {
		s := &t.slots[i]
		if s.typ != TypeDgram && s.typ != TypeRawIP {
			continue
		}
		for j := range s.groups {
			g := &s.groups[j]
			if g.Addr != group || g.ifc != ifc {
				continue
			}
			yield(multicast.Contribution{
				Mode:      g.Mode,
				Sources:   g.Sources,
				AnySource: g.anySource,
			})
		}
	}
}
