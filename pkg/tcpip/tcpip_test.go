// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package tcpip

import "testing"

func TestParseAddress(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Address
		ok   bool
	}{
		{"127.0.0.1", Address("\x7f\x00\x00\x01"), true},
		{"10.0.0.2", Address("\x0a\x00\x00\x02"), true},
		{"::1", Address("\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x01"), true},
		{"fe80::1", Address("\xfe\x80\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x01"), true},
		{"example.com", "", false},
		{"10.0.0", "", false},
		{"", "", false},
	} {
		got, ok := ParseAddress(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseAddress(%q) = %s, %v; want %s, %v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestAddressPredicates(t *testing.T) {
	v4 := Address("\x0a\x00\x00\x01")
	v6 := Address("\xfe\x80\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x01")
	if !v4.IsV4() || v4.IsV6() {
		t.Error("IPv4 address misclassified")
	}
	if !v6.IsV6() || v6.IsV4() {
		t.Error("IPv6 address misclassified")
	}
	if !Address("").IsUnspecified() || !Address("\x00\x00\x00\x00").IsUnspecified() {
		t.Error("unspecified address not recognized")
	}
	if v4.IsUnspecified() {
		t.Error("assigned address reported unspecified")
	}
}

func TestLinkAddressUnicast(t *testing.T) {
	for _, tc := range []struct {
		addr LinkAddress
		want bool
	}{
		{LinkAddress("\x02\x00\x00\x00\x00\x01"), true},
		{BroadcastLinkAddress, false},
		{LinkAddress("\x01\x00\x5e\x00\x00\x01"), false}, // group bit set
		{LinkAddress("\x00\x00\x00\x00\x00\x00"), false}, // all zeros
		{LinkAddress("\x02\x00"), false},                 // truncated
	} {
		if got := tc.addr.IsUnicast(); got != tc.want {
			t.Errorf("IsUnicast(%s) = %v, want %v", tc.addr, got, tc.want)
		}
	}
}

func TestStringFormats(t *testing.T) {
	if got, want := Address("\x0a\x00\x00\x01").String(), "10.0.0.1"; got != want {
		t.Errorf("Address.String() = %q, want %q", got, want)
	}
	if got, want := LinkAddress("\x02\x00\x00\x00\x00\x0a").String(), "02:00:00:00:00:0a"; got != want {
		t.Errorf("LinkAddress.String() = %q, want %q", got, want)
	}
}

func TestErrorIdentity(t *testing.T) {
	if ErrTimeout == ErrWouldBlock {
		t.Error("distinct error kinds share a value")
	}
	if ErrTimeout.String() == "" {
		t.Error("error has no message")
	}
}
