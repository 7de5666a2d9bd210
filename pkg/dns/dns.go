// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package dns dispatches host-name lookups across the configured
// resolver mechanisms. The façade itself only parses literals, picks a
// family, and routes by name shape; the mechanisms (DNS, mDNS, NBNS,
// LLMNR) plug in behind the Resolver interface.
package dns

import (
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/stack"
)

// Flags adjust a single lookup.
type Flags uint32

// Lookup flags. Family flags override the client default; resolver
// flags override the name-shape heuristic.
const (
	FlagIPv4 Flags = 1 << iota
	FlagIPv6
	FlagDNS
	FlagMDNS
	FlagNBNS
	FlagLLMNR
)

// Kind names a resolver mechanism.
type Kind int

// Resolver mechanisms.
const (
	KindDNS Kind = iota
	KindMDNS
	KindNBNS
	KindLLMNR
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindDNS:
		return "dns"
	case KindMDNS:
		return "mdns"
	case KindNBNS:
		return "nbns"
	case KindLLMNR:
		return "llmnr"
	default:
		return "unknown"
	}
}

// Resolver is one name-to-address mechanism.
type Resolver interface {
	Resolve(ifc *stack.Interface, name string, v6 bool, timeout time.Duration) (tcpip.Address, *tcpip.Error)
}

// Client is the lookup façade.
type Client struct {
	net       *stack.Net
	resolvers map[Kind]Resolver
	preferV6  bool
	timeout   time.Duration
}

// NewClient creates a façade with no mechanisms configured and IPv4 as
// the default family.
func NewClient(net *stack.Net) *Client {
	return &Client{
		net:       net,
		resolvers: make(map[Kind]Resolver),
		timeout:   5 * time.Second,
	}
}

// SetResolver installs the mechanism for kind; nil removes it.
func (c *Client) SetResolver(kind Kind, r Resolver) {
	if r == nil {
		delete(c.resolvers, kind)
		return
	}
	c.resolvers[kind] = r
}

// SetPreferIPv6 flips the default family used when no flag selects one.
func (c *Client) SetPreferIPv6(v6 bool) { c.preferV6 = v6 }

// SetTimeout bounds each mechanism invocation.
func (c *Client) SetTimeout(d time.Duration) { c.timeout = d }

// GetHostByName resolves name to an address. Literal addresses
// short-circuit without touching any mechanism. Otherwise the mechanism
// is chosen by flags, or failing that by the shape of the name.
func (c *Client) GetHostByName(ifc *stack.Interface, name string, flags Flags) (tcpip.Address, *tcpip.Error) {
	if name == "" {
		return "", tcpip.ErrInvalidParameter
	}
	if ifc == nil {
		ifc = c.net.DefaultInterface()
	}

	if addr, ok := tcpip.ParseAddress(name); ok {
		return addr, nil
	}

	v6 := c.preferV6
	if flags&FlagIPv4 != 0 {
		v6 = false
	} else if flags&FlagIPv6 != 0 {
		v6 = true
	}

	kind := c.pickKind(name, flags, v6)
	r, ok := c.resolvers[kind]
	if !ok {
		return "", tcpip.ErrInvalidParameter
	}
	glog.V(1).Infof("resolving %q via %s", name, kind)
	return r.Resolve(ifc, name, v6, c.timeout)
}

// pickKind routes a lookup: flags win; then ".local" names go to mDNS,
// single-label names to NBNS (IPv4, when configured) or LLMNR, and
// everything else to DNS.
func (c *Client) pickKind(name string, flags Flags, v6 bool) Kind {
	switch {
	case flags&FlagDNS != 0:
		return KindDNS
	case flags&FlagMDNS != 0:
		return KindMDNS
	case flags&FlagNBNS != 0:
		return KindNBNS
	case flags&FlagLLMNR != 0:
		return KindLLMNR
	}
	if len(name) >= 6 && strings.EqualFold(name[len(name)-6:], ".local") {
		return KindMDNS
	}
	if !strings.Contains(name, ".") {
		if !v6 && len(name) <= 15 {
			if _, ok := c.resolvers[KindNBNS]; ok {
				return KindNBNS
			}
		}
		return KindLLMNR
	}
	return KindDNS
}
