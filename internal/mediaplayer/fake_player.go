/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package mediaplayer

import (
	"sync"
	"time"
)

// FakePlayer is a deterministic, in-memory Player used by playback engine
// tests. It "plays" by advancing position with real wall-clock time from
// the moment Play is called, and becomes Ended once DurationMS has elapsed,
// so tests can drive realistic crossfade/promotion timing without decoding
// actual audio.
type FakePlayer struct {
	path       string
	durationMS int64

	mu        sync.Mutex
	state     State
	volume    int
	muted     bool
	playedAt  time.Time
	released  bool
}

// FakeOpener constructs FakePlayer instances with a configurable duration,
// optionally overridden per path.
type FakeOpener struct {
	mu              sync.Mutex
	DefaultDuration time.Duration
	Durations       map[string]time.Duration
	OpenedPaths     []string
}

// NewFakeOpener returns a FakeOpener with a 180s default duration, matching
// the engine's real fallback.
func NewFakeOpener() *FakeOpener {
	return &FakeOpener{DefaultDuration: DefaultDuration, Durations: make(map[string]time.Duration)}
}

// Open implements Opener.
func (o *FakeOpener) Open(path string) (Player, error) {
	o.mu.Lock()
	o.OpenedPaths = append(o.OpenedPaths, path)
	dur, ok := o.Durations[path]
	if !ok {
		dur = o.DefaultDuration
	}
	o.mu.Unlock()

	return &FakePlayer{
		path:       path,
		durationMS: dur.Milliseconds(),
		state:      Opening,
	}, nil
}

// Play implements Player.
func (p *FakePlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playedAt.IsZero() {
		p.playedAt = time.Now()
	}
	p.state = Playing
	return nil
}

// Stop implements Player.
func (p *FakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.IsTerminal() {
		return
	}
	p.state = Stopped
}

// SetVolume implements Player.
func (p *FakePlayer) SetVolume(v int) {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()
}

// SetMuted implements Player.
func (p *FakePlayer) SetMuted(muted bool) {
	p.mu.Lock()
	p.muted = muted
	p.mu.Unlock()
}

// State implements Player. A Playing fake whose duration has elapsed since
// Play was called reports Ended.
func (p *FakePlayer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Playing && !p.playedAt.IsZero() {
		if time.Since(p.playedAt).Milliseconds() >= p.durationMS {
			p.state = Ended
		}
	}
	return p.state
}

// PositionMS implements Player.
func (p *FakePlayer) PositionMS() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playedAt.IsZero() {
		return -1
	}
	return time.Since(p.playedAt).Milliseconds()
}

// DurationMS implements Player.
func (p *FakePlayer) DurationMS() int64 {
	return p.durationMS
}

// Release implements Player.
func (p *FakePlayer) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.released = true
}

// Volume returns the last value passed to SetVolume, for test assertions.
func (p *FakePlayer) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Muted returns the last value passed to SetMuted, for test assertions.
func (p *FakePlayer) Muted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.muted
}

// Released reports whether Release has been called.
func (p *FakePlayer) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

var _ Player = (*FakePlayer)(nil)
var _ Opener = (*FakeOpener)(nil)
