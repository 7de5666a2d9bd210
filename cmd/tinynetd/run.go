// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

//go:build linux

package main

import (
	"context"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/glog"
	"github.com/google/subcommands"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/nomadarchitect/tinynet/pkg/config"
	"github.com/nomadarchitect/tinynet/pkg/stats"
	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/buffer"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/header"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/link/rawsock"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/network/arp"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/network/multicast"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/stack"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/transport/socket"
)

type runCmd struct {
	configPath string
	statsEvery time.Duration
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "run the stack against host devices" }
func (*runCmd) Usage() string {
	return "run -config <file>: attach the configured interfaces and serve metrics.\n"
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.configPath, "config", "tinynet.yaml", "deployment description")
	f.DurationVar(&c.statsEvery, "stats-every", time.Minute, "interval between stats log lines")
}

func (c *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		glog.Error(err)
		return subcommands.ExitFailure
	}
	if err := c.run(ctx, cfg); err != nil {
		glog.Error(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (c *runCmd) run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	net := stack.New(nil)
	mcast := multicast.NewState(net)
	table := socket.NewTable(net, mcast)
	collector := stats.NewCollector(net)
	collector.Table = table
	collector.Mcast = mcast

	var endpoints []*rawsock.Endpoint
	for _, ic := range cfg.Interfaces {
		ep, err := rawsock.Dial(ic.Device)
		if err != nil {
			return err
		}
		endpoints = append(endpoints, ep)
		mtu := ic.MTU
		if mtu == 0 {
			mtu = ep.MTU()
		}
		ifc, err := net.AddInterface(ic.Name, ep.LinkAddress(), mtu, ep)
		if err != nil {
			return err
		}
		cache := arp.NewCache(ifc, arp.DefaultConfig())
		collector.AddCache(ic.Name, cache)
		registerDropLogger(ifc)

		for _, ac := range ic.Addresses {
			addr, _ := tcpip.ParseAddress(ac.Addr)
			mask, _ := tcpip.ParseAddress(ac.Mask)
			state := stack.AddrStateValid
			if ac.Tentative {
				state = stack.AddrStateTentative
			}
			if err := ifc.AddAddress(addr, mask, state); err != nil {
				glog.Warningf("%s: address %s: %v", ic.Name, addr, err)
				continue
			}
			if ac.Tentative && addr.IsV4() {
				startDuplicateDetection(ctx, ifc, cache, addr)
			}
		}
		for _, nb := range ic.StaticNeighbors {
			addr, _ := tcpip.ParseAddress(nb.Addr)
			mac, err := config.ParseMAC(nb.MAC)
			if err != nil {
				return err
			}
			if err := cache.AddStaticEntry(addr, mac); err != nil {
				glog.Warningf("%s: static neighbor %s: %v", ic.Name, addr, err)
			}
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collector)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		g.Go(func() error {
			glog.Infof("metrics on %s", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Shutdown(context.Background())
		})
	}

	// Protocol timers.
	period := time.Duration(cfg.TickMillis) * time.Millisecond
	g.Go(func() error {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				net.Tick(period)
			}
		}
	})

	// Deferred work scheduled from driver receive context.
	g.Go(func() error {
		for {
			if !net.Event().Wait(250 * time.Millisecond) {
				select {
				case <-ctx.Done():
					return nil
				default:
					continue
				}
			}
			net.Service()
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(c.statsEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				logStats(net)
			}
		}
	})

	err := g.Wait()
	for _, ep := range endpoints {
		err = multierr.Append(err, ep.Close())
	}
	return err
}

// registerDropLogger installs handlers for the network-layer ethertypes
// this binary has no upper layer for, so inbound traffic is visible at
// a bounded log rate instead of vanishing.
func registerDropLogger(ifc *stack.Interface) {
	limiter := rate.NewLimiter(rate.Every(time.Second), 3)
	h := func(ifc *stack.Interface, eth header.EthernetFields, payload buffer.View, rx *stack.RxAncillary) {
		if limiter.Allow() {
			glog.Infof("%s: no upper layer for type %#04x (%d bytes from %s)", ifc.Name(), eth.Type, len(payload), eth.SrcAddr)
		}
	}
	ifc.RegisterPacketHandler(header.EtherTypeIPv4, h)
	ifc.RegisterPacketHandler(header.EtherTypeIPv6, h)
}

// startDuplicateDetection probes for addr and promotes it once no
// conflict shows up.
func startDuplicateDetection(ctx context.Context, ifc *stack.Interface, cache *arp.Cache, addr tcpip.Address) {
	go func() {
		for i := 0; i < 3; i++ {
			if err := cache.SendProbe(addr); err != nil {
				glog.Warningf("%s: probe %s: %v", ifc.Name(), addr, err)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
		if state, ok := ifc.AddressState(addr); ok && state == stack.AddrStateTentative {
			if err := ifc.SetAddressState(addr, stack.AddrStateValid); err == nil {
				glog.Infof("%s: %s verified", ifc.Name(), addr)
			}
		}
	}()
}

func logStats(net *stack.Net) {
	for _, ifc := range net.Interfaces() {
		s := ifc.Stats()
		glog.Infof("%s: rx %s frames / %s, tx %s frames / %s, dropped %s",
			ifc.Name(),
			humanize.Comma(int64(s.RxFrames.Value())),
			humanize.Bytes(s.RxBytes.Value()),
			humanize.Comma(int64(s.TxFrames.Value())),
			humanize.Bytes(s.TxBytes.Value()),
			humanize.Comma(int64(s.RxDropped.Value())))
	}
}
