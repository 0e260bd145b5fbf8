/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scene

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("writeFile(%s): %v", path, err)
	}
}

func TestLoadSkipsHiddenAndUnrecognized(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.mp3"))
	writeFile(t, filepath.Join(dir, ".hidden.mp3"))
	writeFile(t, filepath.Join(dir, "notes.txt"))
	writeFile(t, filepath.Join(dir, "b.WAV"))

	tracks, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d: %v", len(tracks), tracks)
	}
}

func TestLoadMissingDirectoryIsEmptyScene(t *testing.T) {
	tracks, err := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	if err != nil {
		t.Fatalf("Load on missing dir should not error, got %v", err)
	}
	if len(tracks) != 0 {
		t.Fatalf("expected empty scene, got %v", tracks)
	}
}

// TestLoadCollapsesSymlinkDuplicates is scenario S5: x.mp3 and a symlink
// y.mp3 -> x.mp3 collapse to a queue of length 1.
func TestLoadCollapsesSymlinkDuplicates(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "x.mp3")
	writeFile(t, target)
	link := filepath.Join(dir, "y.mp3")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unsupported in this environment: %v", err)
	}

	tracks, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(tracks) != 1 {
		t.Fatalf("expected duplicate collapse to 1 track, got %d: %v", len(tracks), tracks)
	}
}

func TestQueueAdvanceWrapsAndReshuffles(t *testing.T) {
	q := &Queue{Tracks: []string{"a", "b", "c"}, Pos: 2}
	q.Advance()
	if q.Pos != 0 {
		t.Fatalf("expected wrap to pos 0, got %d", q.Pos)
	}
	if len(q.Tracks) != 3 {
		t.Fatalf("reshuffle must preserve track count, got %d", len(q.Tracks))
	}
}

func TestQueueAdvanceSingleTrackNeverReshuffles(t *testing.T) {
	q := &Queue{Tracks: []string{"only"}, Pos: 0}
	q.Advance()
	if q.Pos != 0 {
		t.Fatalf("single-track queue should stay at pos 0, got %d", q.Pos)
	}
}

func TestPickNextDistinctSkipsSameTrack(t *testing.T) {
	q := &Queue{Tracks: []string{"a", "a", "b", "a"}, Pos: 0}
	idx, ok := q.PickNextDistinct()
	if !ok {
		t.Fatal("expected a distinct candidate")
	}
	if q.Tracks[idx] != "b" {
		t.Fatalf("expected to land on b, got %s at idx %d", q.Tracks[idx], idx)
	}
}

func TestPickNextDistinctNoneWhenAllIdentical(t *testing.T) {
	q := &Queue{Tracks: []string{"a", "a", "a"}, Pos: 0}
	_, ok := q.PickNextDistinct()
	if ok {
		t.Fatal("expected no distinct candidate when all tracks are identical")
	}
}

func TestPickNextDistinctNoneWithSingleTrack(t *testing.T) {
	q := &Queue{Tracks: []string{"solo"}, Pos: 0}
	_, ok := q.PickNextDistinct()
	if ok {
		t.Fatal("expected no distinct candidate with a single-track queue")
	}
}
