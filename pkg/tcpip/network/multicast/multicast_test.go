// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package multicast_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/link/channel"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/network/multicast"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/stack"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/testutil"
)

var (
	groupV4 = tcpip.Address("\xe0\x01\x02\x03") // 224.1.2.3
	groupV6 = tcpip.Address("\xff\x02\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x01\x00\x05")
	src5    = tcpip.Address("\x0a\x00\x00\x05")
	src6    = tcpip.Address("\x0a\x00\x00\x06")
	src7    = tcpip.Address("\x0a\x00\x00\x07")

	groupV4MAC = tcpip.LinkAddress("\x01\x00\x5e\x01\x02\x03")
	groupV6MAC = tcpip.LinkAddress("\x33\x33\x00\x01\x00\x05")
)

// contribSource is a swappable enumerator: each test sets the socket
// contributions it wants reconciled.
type contribSource struct {
	contribs []multicast.Contribution
}

func (cs *contribSource) enumerate(_ *stack.Interface, _ tcpip.Address, yield func(multicast.Contribution)) {
	for _, c := range cs.contribs {
		yield(c)
	}
}

// notifyRecord captures the report-hook invocations.
type notifyRecord struct {
	group   tcpip.Address
	mode    multicast.FilterMode
	sources []tcpip.Address
}

type recorder struct {
	calls []notifyRecord
}

func (r *recorder) MulticastFilterChanged(_ *stack.Interface, group tcpip.Address, mode multicast.FilterMode, sources []tcpip.Address) {
	r.calls = append(r.calls, notifyRecord{group: group, mode: mode, sources: append([]tcpip.Address(nil), sources...)})
}

type env struct {
	net   *stack.Net
	ep    *channel.Endpoint
	ifc   *stack.Interface
	state *multicast.State
	src   *contribSource
	hook  *recorder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	net := stack.New(testutil.NewClock(time.Unix(0, 0)))
	ep := channel.New(8)
	ifc, err := net.AddInterface("eth0", tcpip.LinkAddress("\x02\x00\x00\x00\x00\x01"), 1500, ep)
	if err != nil {
		t.Fatalf("AddInterface: %v", err)
	}
	state := multicast.NewState(net)
	src := &contribSource{}
	hook := &recorder{}
	state.SetEnumerator(src.enumerate)
	state.SetNotifier(hook)
	return &env{net: net, ep: ep, ifc: ifc, state: state, src: src, hook: hook}
}

func (e *env) update(group tcpip.Address, contribs ...multicast.Contribution) {
	e.src.contribs = contribs
	e.net.Lock()
	e.state.UpdateLocked(e.ifc, group)
	e.net.Unlock()
}

var unordered = cmpopts.SortSlices(func(a, b tcpip.Address) bool { return a < b })

func checkFilter(t *testing.T, e *env, group tcpip.Address, wantMode multicast.FilterMode, wantSources []tcpip.Address) {
	t.Helper()
	mode, sources := e.state.SourceFilter(e.ifc, group)
	if mode != wantMode {
		t.Errorf("mode = %s, want %s", mode, wantMode)
	}
	if diff := cmp.Diff(wantSources, sources, unordered, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}
}

func TestReconcileAllInclude(t *testing.T) {
	e := newEnv(t)
	e.update(groupV4,
		multicast.Contribution{Mode: multicast.Include, Sources: []tcpip.Address{src5}},
		multicast.Contribution{Mode: multicast.Include, Sources: []tcpip.Address{src6}},
	)
	checkFilter(t, e, groupV4, multicast.Include, []tcpip.Address{src5, src6})
	if diff := cmp.Diff([]tcpip.LinkAddress{groupV4MAC}, e.ep.FilterAddresses()); diff != "" {
		t.Errorf("hardware filter mismatch (-want +got):\n%s", diff)
	}

	// One contributor left.
	e.update(groupV4, multicast.Contribution{Mode: multicast.Include, Sources: []tcpip.Address{src5}})
	checkFilter(t, e, groupV4, multicast.Include, []tcpip.Address{src5})

	// Last contributor gone: entry deleted, hardware filter removed.
	e.update(groupV4)
	if e.state.Joined(e.ifc, groupV4) {
		t.Error("entry survived the last leave")
	}
	if got := e.ep.FilterAddresses(); len(got) != 0 {
		t.Errorf("hardware filter = %v, want empty", got)
	}
}

func TestReconcileAllExclude(t *testing.T) {
	e := newEnv(t)
	e.update(groupV4,
		multicast.Contribution{Mode: multicast.Exclude, Sources: []tcpip.Address{src5, src6}},
		multicast.Contribution{Mode: multicast.Exclude, Sources: []tcpip.Address{src6, src7}},
	)
	checkFilter(t, e, groupV4, multicast.Exclude, []tcpip.Address{src6})
}

func TestReconcileMixedModes(t *testing.T) {
	e := newEnv(t)
	// EXCLUDE {A} against INCLUDE {A, B}: the excluded set collapses.
	e.update(groupV4,
		multicast.Contribution{Mode: multicast.Exclude, Sources: []tcpip.Address{src5}},
		multicast.Contribution{Mode: multicast.Include, Sources: []tcpip.Address{src5, src6}},
	)
	checkFilter(t, e, groupV4, multicast.Exclude, nil)
}

func TestAnySourceOverrides(t *testing.T) {
	e := newEnv(t)
	e.update(groupV4,
		multicast.Contribution{Mode: multicast.Include, Sources: []tcpip.Address{src5}},
		multicast.Contribution{AnySource: true},
	)
	checkFilter(t, e, groupV4, multicast.Exclude, nil)
}

func TestOrderIndependence(t *testing.T) {
	terminal := []multicast.Contribution{
		{Mode: multicast.Include, Sources: []tcpip.Address{src5, src7}},
		{Mode: multicast.Exclude, Sources: []tcpip.Address{src6, src7}},
	}

	// Reach the same terminal contribution set along two histories.
	a := newEnv(t)
	a.update(groupV4, terminal[0])
	a.update(groupV4, terminal[0], multicast.Contribution{AnySource: true})
	a.update(groupV4, terminal...)

	b := newEnv(t)
	b.update(groupV4, multicast.Contribution{Mode: multicast.Exclude, Sources: []tcpip.Address{src5}})
	b.update(groupV4, terminal...)

	aMode, aSources := a.state.SourceFilter(a.ifc, groupV4)
	bMode, bSources := b.state.SourceFilter(b.ifc, groupV4)
	if aMode != bMode {
		t.Errorf("modes diverge: %s vs %s", aMode, bMode)
	}
	if diff := cmp.Diff(aSources, bSources, unordered, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("sources diverge (-a +b):\n%s", diff)
	}
}

func TestAccept(t *testing.T) {
	e := newEnv(t)
	e.update(groupV4, multicast.Contribution{Mode: multicast.Include, Sources: []tcpip.Address{src5}})

	if err := e.state.Accept(e.ifc, groupV4, src5); err != nil {
		t.Errorf("Accept(included source) = %s, want nil", err)
	}
	if err := e.state.Accept(e.ifc, groupV4, src6); err != tcpip.ErrBadAddress {
		t.Errorf("Accept(excluded source) = %s, want %s", err, tcpip.ErrBadAddress)
	}
	if err := e.state.Accept(e.ifc, tcpip.Address("\xe0\x00\x00\x09"), src5); err != tcpip.ErrBadAddress {
		t.Errorf("Accept(unjoined group) = %s, want %s", err, tcpip.ErrBadAddress)
	}

	e.update(groupV4, multicast.Contribution{Mode: multicast.Exclude, Sources: []tcpip.Address{src5}})
	if err := e.state.Accept(e.ifc, groupV4, src5); err != tcpip.ErrBadAddress {
		t.Errorf("Accept(blocked source) = %s, want %s", err, tcpip.ErrBadAddress)
	}
	if err := e.state.Accept(e.ifc, groupV4, src6); err != nil {
		t.Errorf("Accept(unblocked source) = %s, want nil", err)
	}
}

func TestMACFilterCoherence(t *testing.T) {
	e := newEnv(t)

	// Reception state present: filter configured.
	e.update(groupV4, multicast.Contribution{AnySource: true})
	if diff := cmp.Diff([]tcpip.LinkAddress{groupV4MAC}, e.ep.FilterAddresses()); diff != "" {
		t.Fatalf("hardware filter mismatch (-want +got):\n%s", diff)
	}

	// An INCLUDE state accepting nothing tears it down.
	e.update(groupV4)
	if got := e.ep.FilterAddresses(); len(got) != 0 {
		t.Errorf("hardware filter = %v, want empty", got)
	}
}

func TestIPv6Mapping(t *testing.T) {
	e := newEnv(t)
	e.update(groupV6, multicast.Contribution{AnySource: true})
	if diff := cmp.Diff([]tcpip.LinkAddress{groupV6MAC}, e.ep.FilterAddresses()); diff != "" {
		t.Errorf("hardware filter mismatch (-want +got):\n%s", diff)
	}
	if got := e.state.GroupCount(true); got != 1 {
		t.Errorf("v6 group count = %d, want 1", got)
	}
	if err := e.state.Accept(e.ifc, groupV6, tcpip.Address("\xfe\x80\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x01")); err != nil {
		t.Errorf("Accept = %s, want nil", err)
	}
}

func TestNotifierObservesTransitions(t *testing.T) {
	e := newEnv(t)
	e.update(groupV4, multicast.Contribution{Mode: multicast.Include, Sources: []tcpip.Address{src5}})
	e.update(groupV4)

	want := []notifyRecord{
		{group: groupV4, mode: multicast.Include, sources: []tcpip.Address{src5}},
		{group: groupV4, mode: multicast.Include, sources: nil},
	}
	if diff := cmp.Diff(want, e.hook.calls, cmp.AllowUnexported(notifyRecord{}), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
}

// An absent entry reads as EXCLUDE with no sources; this mirrors the
// long-standing getter behavior even though absence means "receive
// nothing".
func TestSourceFilterAbsentEntry(t *testing.T) {
	e := newEnv(t)
	mode, sources := e.state.SourceFilter(e.ifc, groupV4)
	if mode != multicast.Exclude || len(sources) != 0 {
		t.Errorf("SourceFilter(absent) = %s, %v; want %s, none", mode, sources, multicast.Exclude)
	}
}
