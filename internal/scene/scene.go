/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scene scans a scene directory for playable tracks and maintains
// the engine's shuffled per-scene queue.
package scene

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
)

// recognizedExtensions are the case-insensitive audio extensions a scene
// directory may contain.
var recognizedExtensions = map[string]bool{
	".mp3": true,
	".wav": true,
	".ogg": true,
}

// Load enumerates the direct children of dir, keeps recognized non-hidden
// audio files, canonicalizes each to a realpath, and drops duplicates. A
// missing directory is treated as an empty scene, matching spec.md §7's
// "missing scene directory" policy. The returned order is not yet shuffled.
func Load(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	seen := make(map[string]bool)
	var tracks []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if !recognizedExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}

		full := filepath.Join(dir, name)
		real, err := filepath.EvalSymlinks(full)
		if err != nil {
			// Broken symlink or permission error: skip, don't fail the
			// whole scene load over one bad entry.
			continue
		}
		if seen[real] {
			continue
		}
		seen[real] = true
		tracks = append(tracks, real)
	}
	return tracks, nil
}

// Shuffle returns a uniformly random permutation of tracks.
func Shuffle(tracks []string) []string {
	shuffled := make([]string, len(tracks))
	copy(shuffled, tracks)
	rand.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled
}

// Queue is the engine-internal per-scene play order.
type Queue struct {
	SceneFolder string
	Tracks      []string
	Pos         int
}

// NewQueue loads and shuffles dir into a fresh queue positioned at 0.
func NewQueue(dir string) (*Queue, error) {
	tracks, err := Load(dir)
	if err != nil {
		return nil, err
	}
	return &Queue{SceneFolder: dir, Tracks: Shuffle(tracks), Pos: 0}, nil
}

// Current returns the track at Pos, or "" if the queue is empty.
func (q *Queue) Current() string {
	if len(q.Tracks) == 0 {
		return ""
	}
	return q.Tracks[q.Pos]
}

// Advance moves Pos to the next slot, reshuffling in place when Pos wraps
// back to 0 and there is more than one track.
func (q *Queue) Advance() {
	if len(q.Tracks) == 0 {
		return
	}
	q.Pos = (q.Pos + 1) % len(q.Tracks)
	if q.Pos == 0 && len(q.Tracks) > 1 {
		q.Tracks = Shuffle(q.Tracks)
	}
}

// PromoteTo sets Pos directly, used when a crossfade or terminal-state
// promotion has already selected the next index.
func (q *Queue) PromoteTo(idx int) {
	if len(q.Tracks) == 0 {
		return
	}
	q.Pos = idx % len(q.Tracks)
}

// PickNextDistinct scans pos+1, pos+2, … modulo len(tracks) and returns the
// first index whose track is not the same realpath as tracks[pos]. It
// returns (0, false) if there are ≤1 tracks or all others are identical.
func (q *Queue) PickNextDistinct() (int, bool) {
	n := len(q.Tracks)
	if n <= 1 {
		return 0, false
	}
	current := q.Tracks[q.Pos]
	for step := 1; step < n; step++ {
		idx := (q.Pos + step) % n
		if q.Tracks[idx] != current {
			return idx, true
		}
	}
	return 0, false
}

// TrackAt returns the track at idx, or "" if idx is out of range.
func (q *Queue) TrackAt(idx int) string {
	if idx < 0 || idx >= len(q.Tracks) {
		return ""
	}
	return q.Tracks[idx]
}
