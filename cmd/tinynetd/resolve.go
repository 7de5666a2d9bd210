// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build linux

package main

import (
	"context"
	"flag"
	"fmt"
	gonet "net"
	"time"

	"github.com/golang/glog"
	"github.com/google/subcommands"

	"github.com/nomadarchitect/tinynet/pkg/dns"
	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/stack"
)

// resolveCmd is a lookup smoke test: it runs the façade's literal
// parsing and routing logic, with the DNS mechanism carried over a host
// UDP socket.
type resolveCmd struct {
	server string
	v6     bool
}

func (*resolveCmd) Name() string     { return "resolve" }
func (*resolveCmd) Synopsis() string { return "resolve a host name" }
func (*resolveCmd) Usage() string {
	return "resolve [-server <ip>] [-6] <name>: resolve and print one address.\n"
}

func (c *resolveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.server, "server", "", "DNS server address")
	f.BoolVar(&c.v6, "6", false, "resolve an IPv6 address")
}

func (c *resolveCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		glog.Error("resolve: exactly one name required")
		return subcommands.ExitUsageError
	}
	net := stack.New(nil)
	client := dns.NewClient(net)
	client.SetPreferIPv6(c.v6)
	if c.server != "" {
		server, ok := tcpip.ParseAddress(c.server)
		if !ok {
			glog.Errorf("resolve: bad server %q", c.server)
			return subcommands.ExitUsageError
		}
		client.SetResolver(dns.KindDNS, dns.NewUnicastResolver(server, hostTransport{}))
	}
	addr, err := client.GetHostByName(nil, f.Arg(0), 0)
	if err != nil {
		glog.Errorf("resolve %s: %s", f.Arg(0), err)
		return subcommands.ExitFailure
	}
	fmt.Println(addr)
	return subcommands.ExitSuccess
}

// hostTransport exchanges a query over the host's UDP stack.
type hostTransport struct{}

func (hostTransport) Exchange(_ *stack.Interface, server tcpip.Address, port uint16, query []byte, timeout time.Duration) ([]byte, *tcpip.Error) {
	conn, err := gonet.DialTimeout("udp", fmt.Sprintf("%s:%d", server, port), timeout)
	if err != nil {
		return nil, tcpip.ErrTimeout
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(timeout))
	if _, err := conn.Write(query); err != nil {
		return nil, tcpip.ErrTimeout
	}
	resp := make([]byte, 4096)
	n, err := conn.Read(resp)
	if err != nil {
		return nil, tcpip.ErrTimeout
	}
	return resp[:n], nil
}
