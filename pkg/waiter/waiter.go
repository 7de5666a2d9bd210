// Copyright 2026 The TinyNet Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license that can be
// found in the LICENSE file.

// Package waiter provides the signalable event and subscription queue
// used to wake blocked socket operations. Producers may run in interrupt
// context; an Event is the only primitive they touch, and it never
// blocks the signaler.
package waiter

import (
	"sync"
	"time"
)

// EventMask is a bitset of endpoint conditions.
type EventMask uint16

// Endpoint conditions.
const (
	// EventIn fires when data or an accepted connection is ready.
	EventIn EventMask = 1 << iota

	// EventOut fires when transmit space is available.
	EventOut

	// EventErr fires when an asynchronous error is pending.
	EventErr

	// EventHUp fires when the peer closed or the endpoint shut down.
	EventHUp

	// EventConnect fires when a connection attempt completes.
	EventConnect

	// EventLink fires when the underlying link changes state.
	EventLink
)

// EventAll matches every condition.
const EventAll = EventIn | EventOut | EventErr | EventHUp | EventConnect | EventLink

// Event is a one-reader, many-producers signal. Signal never blocks and
// may be called from interrupt context; repeated signals coalesce until
// the next Wait or Clear.
type Event struct {
	ch chan struct{}
}

// NewEvent returns an unsignaled Event.
func NewEvent() *Event {
	return &Event{ch: make(chan struct{}, 1)}
}

// Signal marks the event signaled.
func (e *Event) Signal() {
	select {
	case e.ch <- struct{}{}:
	default:
	}
}

// Clear resets the event to unsignaled.
func (e *Event) Clear() {
	select {
	case <-e.ch:
	default:
	}
}

// Wait blocks until the event is signaled or timeout elapses, returning
// false on timeout. A negative timeout blocks indefinitely; a zero
// timeout only consumes an already-pending signal.
func (e *Event) Wait(timeout time.Duration) bool {
	if timeout < 0 {
		<-e.ch
		return true
	}
	if timeout == 0 {
		select {
		case <-e.ch:
			return true
		default:
			return false
		}
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-e.ch:
		return true
	case <-t.C:
		return false
	}
}

// Entry is one subscription in a Queue. Entries have stable identity so
// interrupt-context producers always target live storage.
type Entry struct {
	event *Event
	mask  EventMask
}

// Queue is the set of subscribers interested in an endpoint's events.
type Queue struct {
	mu      sync.Mutex
	entries map[*Entry]struct{}
}

// Subscribe registers event for the conditions in mask and returns the
// subscription handle.
func (q *Queue) Subscribe(event *Event, mask EventMask) *Entry {
	e := &Entry{event: event, mask: mask}
	q.mu.Lock()
	if q.entries == nil {
		q.entries = make(map[*Entry]struct{})
	}
	q.entries[e] = struct{}{}
	q.mu.Unlock()
	return e
}

// Unsubscribe removes a subscription. Unsubscribing an entry twice is a
// no-op.
func (q *Queue) Unsubscribe(e *Entry) {
	q.mu.Lock()
	delete(q.entries, e)
	q.mu.Unlock()
}

// Notify signals every subscriber whose mask intersects mask.
func (q *Queue) Notify(mask EventMask) {
	q.mu.Lock()
	for e := range q.entries {
		if e.mask&mask != 0 {
			e.event.Signal()
		}
	}
	q.mu.Unlock()
}

// Empty reports whether the queue has no subscribers.
func (q *Queue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries) == 0
}
