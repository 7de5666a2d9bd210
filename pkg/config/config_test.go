// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tinynet.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
metrics_addr: ":9100"
dns_server: 10.0.0.1
interfaces:
  - name: eth0
    device: enp3s0
    mtu: 1500
    addresses:
      - addr: 10.0.0.2
        mask: 255.255.255.0
        tentative: true
    static_neighbors:
      - addr: 10.0.0.1
        mac: "aa:bb:cc:dd:ee:ff"
`)
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := &Config{
		MetricsAddr: ":9100",
		DNSServer:   "10.0.0.1",
		TickMillis:  100,
		Interfaces: []Interface{{
			Name:   "eth0",
			Device: "enp3s0",
			MTU:    1500,
			Addresses: []Address{{
				Addr:      "10.0.0.2",
				Mask:      "255.255.255.0",
				Tentative: true,
			}},
			StaticNeighbors: []Neighbor{{
				Addr: "10.0.0.1",
				MAC:  "aa:bb:cc:dd:ee:ff",
			}},
		}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDefaultsDeviceToName(t *testing.T) {
	path := writeConfig(t, `
interfaces:
  - name: eth0
`)
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Interfaces[0].Device != "eth0" {
		t.Errorf("device = %q, want eth0", got.Interfaces[0].Device)
	}
	if got.TickMillis != 100 {
		t.Errorf("tick = %d, want default 100", got.TickMillis)
	}
}

func TestLoadRejections(t *testing.T) {
	for name, body := range map[string]string{
		"missing name":   "interfaces:\n  - device: eth0\n",
		"bad address":    "interfaces:\n  - name: eth0\n    addresses:\n      - addr: nonsense\n",
		"bad mask":       "interfaces:\n  - name: eth0\n    addresses:\n      - addr: 10.0.0.2\n        mask: bogus\n",
		"bad neighbor":   "interfaces:\n  - name: eth0\n    static_neighbors:\n      - addr: nope\n        mac: \"aa:bb:cc:dd:ee:ff\"\n",
		"bad mac":        "interfaces:\n  - name: eth0\n    static_neighbors:\n      - addr: 10.0.0.1\n        mac: zz\n",
		"unknown field":  "interfaces:\n  - name: eth0\n    bogus: 1\n",
		"malformed yaml": "interfaces: [",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Error("Load accepted a bad config")
			}
		})
	}
}

func TestParseMAC(t *testing.T) {
	mac, err := ParseMAC("aa:bb:cc:dd:ee:ff")
	if err != nil {
		t.Fatalf("ParseMAC: %v", err)
	}
	if want := "\xaa\xbb\xcc\xdd\xee\xff"; string(mac) != want {
		t.Errorf("mac = %x, want %x", mac, want)
	}
	if _, err := ParseMAC("not a mac"); err == nil {
		t.Error("ParseMAC accepted garbage")
	}
}
