/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package hub implements the NotificationHub: a thread-safe registry of
// subscriber callbacks that the playback engine emits (now_playing, volume)
// updates into without ever blocking on a slow or misbehaving subscriber.
package hub

import (
	"sync"

	"github.com/rs/zerolog"
)

// Notification carries an engine emission. Track and Volume are independently
// optional: a pure volume change carries Track == nil, and vice versa.
type Notification struct {
	Track  *string
	Volume *int
}

// Handle identifies a registered subscriber for later Unsubscribe calls.
type Handle uint64

type subscriber struct {
	handle Handle
	queue  chan Notification
	done   chan struct{}
}

// Hub is the NotificationHub. Each subscriber is served by its own goroutine
// reading off a small buffered queue, which gives FIFO-per-subscriber
// delivery and a causally consistent sequence (a crossfade-completion
// now_playing is enqueued strictly after that transition's volume) without
// ever blocking the emitting engine thread.
type Hub struct {
	mu       sync.Mutex
	subs     map[Handle]*subscriber
	next     Handle
	logger   zerolog.Logger
	queueLen int
}

// New returns an empty Hub. queueLen bounds the per-subscriber backlog; a
// subscriber that falls behind by more than queueLen notifications has the
// oldest pending notification dropped, never the newest.
func New(logger zerolog.Logger, queueLen int) *Hub {
	if queueLen <= 0 {
		queueLen = 32
	}
	return &Hub{
		subs:     make(map[Handle]*subscriber),
		logger:   logger,
		queueLen: queueLen,
	}
}

// Subscribe registers cb to receive future emissions and returns a handle
// for Unsubscribe. cb is invoked on a dedicated goroutine, never on the
// emitter's call stack.
func (h *Hub) Subscribe(cb func(Notification)) Handle {
	h.mu.Lock()
	h.next++
	handle := h.next
	sub := &subscriber{
		handle: handle,
		queue:  make(chan Notification, h.queueLen),
		done:   make(chan struct{}),
	}
	h.subs[handle] = sub
	h.mu.Unlock()

	go h.drain(sub, cb)
	return handle
}

// Unsubscribe removes the subscriber identified by handle. It is a no-op if
// the handle is unknown or already removed.
func (h *Hub) Unsubscribe(handle Handle) {
	h.mu.Lock()
	sub, ok := h.subs[handle]
	if ok {
		delete(h.subs, handle)
	}
	h.mu.Unlock()

	if ok {
		close(sub.done)
	}
}

// emit broadcasts a notification to every current subscriber. It takes a
// snapshot of the subscriber set under lock and then enqueues outside the
// lock, so a subscriber registering or unregistering mid-emit never blocks
// or races the engine.
func (h *Hub) emit(n Notification) {
	h.mu.Lock()
	snapshot := make([]*subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		snapshot = append(snapshot, sub)
	}
	h.mu.Unlock()

	for _, sub := range snapshot {
		select {
		case sub.queue <- n:
		case <-sub.done:
		default:
			// Queue full: drop the oldest pending notification to make
			// room, preserving FIFO order of what remains.
			select {
			case <-sub.queue:
			default:
			}
			select {
			case sub.queue <- n:
			default:
			}
		}
	}
}

// EmitTrack emits a now_playing change, optionally carrying the volume that
// applies as of this transition.
func (h *Hub) EmitTrack(track string, volume *int) {
	h.emit(Notification{Track: &track, Volume: volume})
}

// EmitVolume emits a standalone volume change.
func (h *Hub) EmitVolume(volume int) {
	h.emit(Notification{Volume: &volume})
}

// EmitIdle emits the idle sentinel used on loop exit: an empty track name
// with no volume.
func (h *Hub) EmitIdle() {
	empty := ""
	h.emit(Notification{Track: &empty})
}

func (h *Hub) drain(sub *subscriber, cb func(Notification)) {
	for {
		select {
		case n := <-sub.queue:
			if h.invoke(sub.handle, cb, n) {
				return
			}
		case <-sub.done:
			return
		}
	}
}

// invoke calls cb, recovering a panic by unsubscribing the offending
// subscriber per the hub's "subscribers that raise are silently removed"
// contract. It returns true if the subscriber was removed.
func (h *Hub) invoke(handle Handle, cb func(Notification), n Notification) (removed bool) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Warn().Interface("panic", r).Msg("notification subscriber raised, removing")
			h.Unsubscribe(handle)
			removed = true
		}
	}()
	cb(n)
	return false
}
