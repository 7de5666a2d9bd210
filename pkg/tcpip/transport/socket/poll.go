// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

package socket

import (
	"time"

	"github.com/nomadarchitect/tinynet/pkg/tcpip"
	"github.com/nomadarchitect/tinynet/pkg/waiter"
)

// PollDesc names one endpoint and the conditions the caller waits for.
// Ready is filled on return with the conditions observed.
type PollDesc struct {
	Socket *Socket
	Mask   waiter.EventMask
	Ready  waiter.EventMask
}

// Poll waits until any listed endpoint reports a requested condition,
// the external event fires, or timeout elapses. It returns nil when at
// least one descriptor is ready, ErrWaitCanceled when the external event
// interrupted the wait first, and ErrTimeout otherwise. Descriptors with
// a nil socket are skipped.
//
// Subscription precedes the readiness re-derivation, so a condition
// raised between the two is observed at the wait.
func Poll(descs []PollDesc, external *waiter.Event, timeout time.Duration) *tcpip.Error {
	if len(descs) == 0 && external == nil {
		return tcpip.ErrInvalidParameter
	}

	ev := external
	if ev == nil {
		ev = waiter.NewEvent()
	}

	var entries []*waiter.Entry
	for i := range descs {
		s := descs[i].Socket
		if s == nil {
			continue
		}
		descs[i].Ready = 0
		s.table.net.Lock()
		s.eventFlags = 0
		entries = append(entries, s.queue.Subscribe(ev, descs[i].Mask))
		s.updateEventsLocked()
		s.table.net.Unlock()
	}

	ready := collect(descs)
	woke := false
	if !ready {
		woke = ev.Wait(timeout)
		ready = collect(descs)
	}

	for i, j := 0, 0; i < len(descs); i++ {
		s := descs[i].Socket
		if s == nil {
			continue
		}
		s.queue.Unsubscribe(entries[j])
		j++
	}
	ev.Clear()

	switch {
	case ready:
		return nil
	case external != nil && woke:
		// The wait returned without any endpoint turning ready, so
		// the wake came from the caller's event.
		return tcpip.ErrWaitCanceled
	default:
		return tcpip.ErrTimeout
	}
}

// collect snapshots each descriptor's flags masked by its interest and
// reports whether any descriptor is ready.
func collect(descs []PollDesc) bool {
	ready := false
	for i := range descs {
		s := descs[i].Socket
		if s == nil {
			continue
		}
		s.table.net.Lock()
		descs[i].Ready = s.eventFlags & descs[i].Mask
		s.table.net.Unlock()
		if descs[i].Ready != 0 {
			ready = true
		}
	}
	return ready
}
