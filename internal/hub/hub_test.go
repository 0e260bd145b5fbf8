/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestHub() *Hub {
	return New(zerolog.Nop(), 0)
}

func TestSubscribeReceivesEmission(t *testing.T) {
	h := newTestHub()
	got := make(chan Notification, 1)
	h.Subscribe(func(n Notification) { got <- n })

	h.EmitTrack("track-a", nil)

	select {
	case n := <-got:
		if n.Track == nil || *n.Track != "track-a" {
			t.Fatalf("expected track-a, got %+v", n)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := newTestHub()
	var mu sync.Mutex
	count := 0
	handle := h.Subscribe(func(Notification) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	h.EmitTrack("one", nil)
	time.Sleep(20 * time.Millisecond)

	h.Unsubscribe(handle)
	h.EmitTrack("two", nil)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("expected 1 delivery after unsubscribe, got %d", count)
	}
}

func TestFIFOPerSubscriber(t *testing.T) {
	h := newTestHub()
	var mu sync.Mutex
	var order []string
	done := make(chan struct{})
	h.Subscribe(func(n Notification) {
		mu.Lock()
		if n.Track != nil {
			order = append(order, *n.Track)
		}
		if len(order) == 3 {
			close(done)
		}
		mu.Unlock()
	})

	h.EmitTrack("a", nil)
	h.EmitTrack("b", nil)
	h.EmitTrack("c", nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for all emissions")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"a", "b", "c"}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("order mismatch: want %v, got %v", want, order)
		}
	}
}

func TestCausalOrderingVolumeBeforeTrack(t *testing.T) {
	h := newTestHub()
	var mu sync.Mutex
	var seenVolumeFirst bool
	var gotTrack bool
	done := make(chan struct{})
	h.Subscribe(func(n Notification) {
		mu.Lock()
		defer mu.Unlock()
		if n.Volume != nil && !gotTrack {
			seenVolumeFirst = true
		}
		if n.Track != nil {
			gotTrack = true
			close(done)
		}
	})

	volume := 55
	h.EmitVolume(volume)
	h.EmitTrack("crossfade-target", nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for track emission")
	}

	mu.Lock()
	defer mu.Unlock()
	if !seenVolumeFirst {
		t.Fatal("expected volume emission to be observed before the track emission")
	}
}

func TestPanicSubscriberIsRemoved(t *testing.T) {
	h := newTestHub()
	survivorGot := make(chan struct{}, 1)

	h.Subscribe(func(Notification) { panic("boom") })
	h.Subscribe(func(Notification) {
		select {
		case survivorGot <- struct{}{}:
		default:
		}
	})

	h.EmitTrack("x", nil)

	select {
	case <-survivorGot:
	case <-time.After(time.Second):
		t.Fatal("surviving subscriber never received emission")
	}

	h.mu.Lock()
	remaining := len(h.subs)
	h.mu.Unlock()
	if remaining != 1 {
		t.Fatalf("expected panicking subscriber to be removed, got %d subscribers left", remaining)
	}
}

func TestEmitIdleCarriesEmptyTrack(t *testing.T) {
	h := newTestHub()
	got := make(chan Notification, 1)
	h.Subscribe(func(n Notification) { got <- n })

	h.EmitIdle()

	select {
	case n := <-got:
		if n.Track == nil || *n.Track != "" {
			t.Fatalf("expected empty track sentinel, got %+v", n)
		}
		if n.Volume != nil {
			t.Fatalf("expected no volume on idle emission, got %v", *n.Volume)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for idle notification")
	}
}
