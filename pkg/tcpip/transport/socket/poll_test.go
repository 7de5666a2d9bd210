// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package socket_test

import (
	"testing"
	"time"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/buffer"
	"github.com/nomadarchitect/tinynet/pkg/tcpip/transport/socket"
	"github.com/nomadarchitect/tinynet/pkg/waiter"
)

func TestPollImmediateReadiness(t *testing.T) {
	e := newEnv(t)
	s := openSocket(t, e, socket.TypeDgram)

	// Datagram endpoints can always transmit.
	descs := []socket.PollDesc{{Socket: s, Mask: waiter.EventOut}}
	if err := socket.Poll(descs, nil, 0); err != nil {
		t.Fatalf("Poll = %s, want nil", err)
	}
	if descs[0].Ready&waiter.EventOut == 0 {
		t.Error("writable endpoint not reported ready")
	}
}

func TestPollTimeout(t *testing.T) {
	e := newEnv(t)
	s := openSocket(t, e, socket.TypeDgram)

	descs := []socket.PollDesc{{Socket: s, Mask: waiter.EventIn}}
	start := time.Now()
	if err := socket.Poll(descs, nil, 20*time.Millisecond); err != tcpip.ErrTimeout {
		t.Fatalf("Poll = %v, want %s", err, tcpip.ErrTimeout)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("poll returned before the timeout")
	}
	if descs[0].Ready != 0 {
		t.Errorf("Ready = %v, want 0", descs[0].Ready)
	}
}

func TestPollExternalCancel(t *testing.T) {
	e := newEnv(t)
	descs := []socket.PollDesc{
		{Socket: openSocket(t, e, socket.TypeDgram), Mask: waiter.EventIn},
		{Socket: openSocket(t, e, socket.TypeDgram), Mask: waiter.EventIn},
		{Socket: openSocket(t, e, socket.TypeDgram), Mask: waiter.EventIn},
	}

	cancel := waiter.NewEvent()
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel.Signal()
	}()

	start := time.Now()
	err := socket.Poll(descs, cancel, time.Second)
	if err != tcpip.ErrWaitCanceled {
		t.Fatalf("Poll = %v, want %s", err, tcpip.ErrWaitCanceled)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("cancellation did not interrupt the wait")
	}
	for i, d := range descs {
		if d.Ready != 0 {
			t.Errorf("descs[%d].Ready = %v, want 0", i, d.Ready)
		}
	}
}

func TestPollWakesOnDeliver(t *testing.T) {
	e := newEnv(t)
	s := openSocket(t, e, socket.TypeDgram)

	go func() {
		time.Sleep(5 * time.Millisecond)
		d := &socket.Datagram{Data: buffer.NewViewFromBytes([]byte("ping")).ToVectorisedView()}
		if err := e.table.Deliver(s, d); err != nil {
			t.Errorf("Deliver: %s", err)
		}
	}()

	descs := []socket.PollDesc{{Socket: s, Mask: waiter.EventIn}}
	if err := socket.Poll(descs, nil, time.Second); err != nil {
		t.Fatalf("Poll = %v, want nil", err)
	}
	if descs[0].Ready&waiter.EventIn == 0 {
		t.Error("readable endpoint not reported ready")
	}
}

// A condition raised between subscription and wait must not be lost:
// deliver while poll is re-deriving readiness and the wait still
// observes it.
func TestPollSubscriptionRace(t *testing.T) {
	e := newEnv(t)
	s := openSocket(t, e, socket.TypeDgram)

	// Queue the message before polling: the notification fired with no
	// subscriber listening, so only the re-derivation poll performs
	// after subscribing can observe it.
	d := &socket.Datagram{Data: buffer.NewViewFromBytes([]byte("early")).ToVectorisedView()}
	if err := e.table.Deliver(s, d); err != nil {
		t.Fatalf("Deliver: %s", err)
	}

	descs := []socket.PollDesc{{Socket: s, Mask: waiter.EventIn}}
	if err := socket.Poll(descs, nil, time.Second); err != nil {
		t.Fatalf("Poll = %v, want nil", err)
	}
	if descs[0].Ready&waiter.EventIn == 0 {
		t.Error("pre-subscription condition lost")
	}
}

func TestPollUnsubscribesOnReturn(t *testing.T) {
	e := newEnv(t)
	s := openSocket(t, e, socket.TypeDgram)

	descs := []socket.PollDesc{{Socket: s, Mask: waiter.EventIn}}
	if err := socket.Poll(descs, nil, 5*time.Millisecond); err != tcpip.ErrTimeout {
		t.Fatalf("Poll = %v, want %s", err, tcpip.ErrTimeout)
	}
	if !s.SubscribersEmpty() {
		t.Error("subscriber left registered after poll returned")
	}
}

func TestPollNilSocketSkipped(t *testing.T) {
	e := newEnv(t)
	s := openSocket(t, e, socket.TypeDgram)
	descs := []socket.PollDesc{
		{Socket: nil, Mask: waiter.EventIn},
		{Socket: s, Mask: waiter.EventOut},
	}
	if err := socket.Poll(descs, nil, 0); err != nil {
		t.Fatalf("Poll = %v, want nil", err)
	}
	if descs[1].Ready == 0 {
		t.Error("live descriptor after nil skipped not collected")
	}
}
