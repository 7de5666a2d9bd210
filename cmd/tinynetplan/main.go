// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// tinynetplan checks a deployment description offline: it validates the
// YAML, prints the per-interface plan, and shows the hardware filter
// addresses any listed multicast groups would occupy.
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/nomadarchitect/tinynet/pkg/config"
	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/header"
)

func main() {
	configPath := flag.StringP("config", "c", "tinynet.yaml", "deployment description")
	groups := flag.StringSliceP("group", "g", nil, "multicast group to map onto a hardware filter address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	for _, ifc := range cfg.Interfaces {
		fmt.Printf("interface %s (device %s)\n", ifc.Name, ifc.Device)
		for _, a := range ifc.Addresses {
			state := "valid"
			if a.Tentative {
				state = "tentative"
			}
			fmt.Printf("  address %s mask %s (%s)\n", a.Addr, a.Mask, state)
		}
		for _, nb := range ifc.StaticNeighbors {
			fmt.Printf("  neighbor %s at %s (permanent)\n", nb.Addr, nb.MAC)
		}
	}

	for _, g := range *groups {
		addr, ok := tcpip.ParseAddress(g)
		if !ok || !header.IsMulticastAddress(addr) {
			fmt.Fprintf(os.Stderr, "not a multicast group: %q\n", g)
			os.Exit(1)
		}
		var mac tcpip.LinkAddress
		if addr.IsV6() {
			mac = header.IPv6MulticastLinkAddress(addr)
		} else {
			mac = header.IPv4MulticastLinkAddress(addr)
		}
		fmt.Printf("group %s -> filter %s\n", addr, mac)
	}
}
