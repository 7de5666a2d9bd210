// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package config loads the YAML deployment description consumed by the
// stack daemon and its helper tools.
package config

import (
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
)

// Address is one assigned interface address.
type Address struct {
	Addr      string `yaml:"addr"`
	Mask      string `yaml:"mask"`
	Tentative bool   `yaml:"tentative"`
}

// Neighbor is one static neighbor mapping.
type Neighbor struct {
	Addr string `yaml:"addr"`
	MAC  string `yaml:"mac"`
}

// Interface describes one stack interface bound to a host device.
type Interface struct {
	Name            string     `yaml:"name"`
	Device          string     `yaml:"device"`
	MTU             uint32     `yaml:"mtu"`
	Addresses       []Address  `yaml:"addresses"`
	StaticNeighbors []Neighbor `yaml:"static_neighbors"`
}

// Config is the full deployment description.
type Config struct {
	MetricsAddr string      `yaml:"metrics_addr"`
	DNSServer   string      `yaml:"dns_server"`
	TickMillis  int         `yaml:"tick_millis"`
	Interfaces  []Interface `yaml:"interfaces"`
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var c Config
	if err := yaml.UnmarshalStrict(raw, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if c.TickMillis <= 0 {
		c.TickMillis = 100
	}
	for i := range c.Interfaces {
		ifc := &c.Interfaces[i]
		if ifc.Name == "" {
			return nil, fmt.Errorf("config: interface %d: missing name", i)
		}
		if ifc.Device == "" {
			ifc.Device = ifc.Name
		}
		for _, a := range ifc.Addresses {
			if _, ok := tcpip.ParseAddress(a.Addr); !ok {
				return nil, fmt.Errorf("config: %s: bad address %q", ifc.Name, a.Addr)
			}
			if a.Mask != "" {
				if _, ok := tcpip.ParseAddress(a.Mask); !ok {
					return nil, fmt.Errorf("config: %s: bad mask %q", ifc.Name, a.Mask)
				}
			}
		}
		for _, nb := range ifc.StaticNeighbors {
			if _, ok := tcpip.ParseAddress(nb.Addr); !ok {
				return nil, fmt.Errorf("config: %s: bad neighbor %q", ifc.Name, nb.Addr)
			}
			if _, err := net.ParseMAC(nb.MAC); err != nil {
				return nil, fmt.Errorf("config: %s: bad neighbor mac %q", ifc.Name, nb.MAC)
			}
		}
	}
	return &c, nil
}

// ParseMAC converts a textual MAC into a link address.
func ParseMAC(s string) (tcpip.LinkAddress, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return "", err
	}
	return tcpip.LinkAddress(hw), nil
}
