/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package mediaplayer defines the MediaPlayer capability the playback engine
// consumes — one decoded audio stream with independent volume, play/stop,
// queryable state and position, and a parseable duration — plus a concrete
// adapter backed by gopxl/beep.
package mediaplayer

import "time"

// State is one of the MediaPlayer lifecycle states. Ended, Stopped, and
// Error are terminal: no further play() is valid on the same instance.
type State int

const (
	Opening State = iota
	Playing
	Paused
	Ended
	Stopped
	Error
)

func (s State) String() string {
	switch s {
	case Opening:
		return "opening"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Ended:
		return "ended"
	case Stopped:
		return "stopped"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether s is one of Ended, Stopped, Error.
func (s State) IsTerminal() bool {
	return s == Ended || s == Stopped || s == Error
}

// DefaultDuration is substituted when a stream's duration cannot be parsed.
const DefaultDuration = 180 * time.Second

// ReadinessWaitMain is the max time the engine waits for a newly opened main
// stream to report Playing or a positive position before proceeding anyway.
const ReadinessWaitMain = 1500 * time.Millisecond

// ReadinessWaitNext is the readiness-wait budget for a crossfade candidate.
const ReadinessWaitNext = 2000 * time.Millisecond

// Player is one decoded audio stream. Implementations must be safe for the
// set of concurrent calls the engine makes: set_volume/get_state/
// get_position_ms may be invoked from the engine loop while play() is still
// settling.
type Player interface {
	// Play begins decoding from the current position. Not assumed to be
	// synchronous; callers should readiness-wait afterward.
	Play() error
	// Stop moves the stream to a terminal state. A later Play on the same
	// instance is not supported; callers open a new Player instead.
	Stop()
	// SetVolume sets linear gain in 0..100. Idempotent.
	SetVolume(v int)
	// SetMuted mutes or unmutes independent of the configured volume.
	SetMuted(muted bool)
	// State returns the current lifecycle state.
	State() State
	// PositionMS returns the monotonic play position in milliseconds, or -1
	// if unknown.
	PositionMS() int64
	// DurationMS returns the parsed duration in milliseconds. It may return
	// 0 for up to ~500ms after Open while the decoder is still parsing.
	DurationMS() int64
	// Release frees underlying resources. Safe to call more than once.
	Release()
}

// Opener constructs a new, initially-stopped Player bound to path. Opening
// does not start playback; the caller must still call Play.
type Opener interface {
	Open(path string) (Player, error)
}
