/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playback

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/meadowcast/internal/hub"
	"github.com/friendsincode/meadowcast/internal/mediaplayer"
)

func writeTrack(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("writeTrack: %v", err)
	}
	return path
}

func newTestEngine(t *testing.T, opener *mediaplayer.FakeOpener, opts ...Option) (*Engine, *hub.Hub) {
	t.Helper()
	h := hub.New(zerolog.Nop(), 0)
	defaultOpts := []Option{
		WithTick(10 * time.Millisecond),
		WithCrossfadeSeconds(0.2),
		WithSameStartGuard(100 * time.Millisecond),
		WithPromotionGuardWindow(50 * time.Millisecond),
	}
	e := New(opener, h, zerolog.Nop(), append(defaultOpts, opts...)...)
	t.Cleanup(e.Shutdown)
	return e, h
}

// TestHandoffOnShortTracks is scenario S1: with a queue of two short tracks
// and a short crossfade window, now_playing must progress a -> b and never
// regress from b back to a.
func TestHandoffOnShortTracks(t *testing.T) {
	dir := t.TempDir()
	a := writeTrack(t, dir, "a.mp3")
	b := writeTrack(t, dir, "b.mp3")

	opener := mediaplayer.NewFakeOpener()
	opener.DefaultDuration = 1500 * time.Millisecond
	opener.Durations = map[string]time.Duration{a: 1500 * time.Millisecond, b: 1500 * time.Millisecond}

	e, h := newTestEngine(t, opener, WithCrossfadeSeconds(0.2), WithPromotionGuardWindow(150*time.Millisecond))

	var seen []string
	h.Subscribe(func(n hub.Notification) {
		if n.Track != nil && *n.Track != "" {
			seen = append(seen, *n.Track)
		}
	})

	volume := 70
	e.PlayScene(dir, &volume)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(seen) >= 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if len(seen) < 2 {
		t.Fatalf("expected at least 2 now_playing transitions within 3s, got %v", seen)
	}

	lastB := -1
	for i, track := range seen {
		if track == b {
			lastB = i
		}
	}
	for i, track := range seen {
		if track == a && lastB != -1 && i > lastB {
			t.Fatalf("now_playing regressed to a after b: %v", seen)
		}
	}
}

// TestSoftStopPreventsSuccessor is scenario S2: arming a soft stop while the
// first track plays must prevent any crossfade into the second track.
func TestSoftStopPreventsSuccessor(t *testing.T) {
	dir := t.TempDir()
	a := writeTrack(t, dir, "a.mp3")
	b := writeTrack(t, dir, "b.mp3")

	opener := mediaplayer.NewFakeOpener()
	opener.Durations = map[string]time.Duration{a: 1500 * time.Millisecond, b: 1500 * time.Millisecond}

	e, _ := newTestEngine(t, opener, WithCrossfadeSeconds(0.1))

	volume := 60
	e.PlayScene(dir, &volume)
	time.Sleep(300 * time.Millisecond)

	e.StopAfterCurrentOrTimeout(5)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if np := e.GetNowPlaying(); np != nil && *np == b {
			t.Fatalf("now_playing should never become b after a soft stop")
		}
		if !e.IsPlaying() {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if e.IsPlaying() {
		t.Fatal("expected engine to become idle within 3s of a soft stop")
	}
}

// TestVolumeClampAndBroadcast is scenario S6.
func TestVolumeClampAndBroadcast(t *testing.T) {
	opener := mediaplayer.NewFakeOpener()
	e, h := newTestEngine(t, opener)

	volumeEvents := make(chan int, 8)
	h.Subscribe(func(n hub.Notification) {
		if n.Volume != nil {
			volumeEvents <- *n.Volume
		}
	})

	e.SetVolume(150)
	if got := e.GetVolume(); got != 100 {
		t.Fatalf("expected clamp to 100, got %d", got)
	}

	select {
	case v := <-volumeEvents:
		if v != 100 {
			t.Fatalf("expected broadcast volume 100, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for volume broadcast")
	}
}

// TestStopForceReachesIdle is invariant 4: after stop(force=true) returns,
// get_phase() == IDLE.
func TestStopForceReachesIdle(t *testing.T) {
	dir := t.TempDir()
	a := writeTrack(t, dir, "a.mp3")
	opener := mediaplayer.NewFakeOpener()
	opener.Durations = map[string]time.Duration{a: 5 * time.Second}

	e, _ := newTestEngine(t, opener)

	volume := 50
	e.PlayScene(dir, &volume)
	time.Sleep(150 * time.Millisecond)

	e.Stop(true)

	if phase := e.GetPhase(); phase != Idle {
		t.Fatalf("expected IDLE after stop(force=true), got %v", phase)
	}
	if e.GetNowPlaying() != nil {
		t.Fatal("expected no now_playing after stop(force=true)")
	}
}

// TestSetVolumeThenGetVolumeRoundTrips is invariant 6.
func TestSetVolumeThenGetVolumeRoundTrips(t *testing.T) {
	opener := mediaplayer.NewFakeOpener()
	e, _ := newTestEngine(t, opener)

	e.SetVolume(42)
	if got := e.GetVolume(); got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}

	e.SetVolume(-10)
	if got := e.GetVolume(); got != 0 {
		t.Fatalf("expected clamp to 0, got %d", got)
	}
}

// TestGetPhaseIdleWithNoScene confirms the zero-value engine reports IDLE.
func TestGetPhaseIdleWithNoScene(t *testing.T) {
	opener := mediaplayer.NewFakeOpener()
	e, _ := newTestEngine(t, opener)

	if phase := e.GetPhase(); phase != Idle {
		t.Fatalf("expected IDLE with no scene loaded, got %v", phase)
	}
}
