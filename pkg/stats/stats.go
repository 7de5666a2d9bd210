// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package stats exposes the stack's counters as prometheus collectors:
// per-interface frame activity, socket table occupancy, neighbor cache
// composition, and multicast group counts.
package stats

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nomadarchitect/tinynet/pkg/tcpip/network/arp"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/network/multicast"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/stack"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/transport/socket"
)

// Collector gathers stack metrics on scrape. Register it with a
// prometheus registry; every field but Net is optional.
type Collector struct {
	Net    *stack.Net
	Table  *socket.Table
	Mcast  *multicast.State
	Caches map[string]*arp.Cache

	frames    *prometheus.Desc
	bytes     *prometheus.Desc
	dropped   *prometheus.Desc
	sockets   *prometheus.Desc
	neighbors *prometheus.Desc
	arpQueue  *prometheus.Desc
	groups    *prometheus.Desc
}

// NewCollector creates a collector with the standard descriptor set.
func NewCollector(net *stack.Net) *Collector {
	return &Collector{
		Net:    net,
		Caches: make(map[string]*arp.Cache),
		frames: prometheus.NewDesc("tinynet_interface_frames_total",
			"Frames handled per interface and direction.",
			[]string{"interface", "direction"}, nil),
		bytes: prometheus.NewDesc("tinynet_interface_bytes_total",
			"Bytes handled per interface and direction.",
			[]string{"interface", "direction"}, nil),
		dropped: prometheus.NewDesc("tinynet_interface_rx_dropped_total",
			"Inbound frames dropped per interface.",
			[]string{"interface"}, nil),
		sockets: prometheus.NewDesc("tinynet_sockets_open",
			"Socket slots in use.",
			nil, nil),
		neighbors: prometheus.NewDesc("tinynet_neighbor_entries",
			"Neighbor cache entries per interface and state.",
			[]string{"interface", "state"}, nil),
		arpQueue: prometheus.NewDesc("tinynet_neighbor_queued_packets",
			"Packets queued awaiting neighbor resolution.",
			[]string{"interface"}, nil),
		groups: prometheus.NewDesc("tinynet_multicast_groups",
			"Multicast groups with reception state per family.",
			[]string{"family"}, nil),
	}
}

// AddCache registers an interface's neighbor cache for scraping.
func (c *Collector) AddCache(name string, cache *arp.Cache) {
	c.Caches[name] = cache
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.frames
	ch <- c.bytes
	ch <- c.dropped
	ch <- c.sockets
	ch <- c.neighbors
	ch <- c.arpQueue
	ch <- c.groups
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, ifc := range c.Net.Interfaces() {
		s := ifc.Stats()
		name := ifc.Name()
		ch <- prometheus.MustNewConstMetric(c.frames, prometheus.CounterValue, float64(s.TxFrames.Value()), name, "tx")
		ch <- prometheus.MustNewConstMetric(c.frames, prometheus.CounterValue, float64(s.RxFrames.Value()), name, "rx")
		ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(s.TxBytes.Value()), name, "tx")
		ch <- prometheus.MustNewConstMetric(c.bytes, prometheus.CounterValue, float64(s.RxBytes.Value()), name, "rx")
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(s.RxDropped.Value()), name)
	}
	if c.Table != nil {
		ch <- prometheus.MustNewConstMetric(c.sockets, prometheus.GaugeValue, float64(c.Table.OpenCount()))
	}
	for name, cache := range c.Caches {
		for state, count := range cache.StateCounts() {
			ch <- prometheus.MustNewConstMetric(c.neighbors, prometheus.GaugeValue, float64(count), name, state.String())
		}
		ch <- prometheus.MustNewConstMetric(c.arpQueue, prometheus.GaugeValue, float64(cache.QueuedPacketCount()), name)
	}
	if c.Mcast != nil {
		ch <- prometheus.MustNewConstMetric(c.groups, prometheus.GaugeValue, float64(c.Mcast.GroupCount(false)), "ipv4")
		ch <- prometheus.MustNewConstMetric(c.groups, prometheus.GaugeValue, float64(c.Mcast.GroupCount(true)), "ipv6")
	}
}
