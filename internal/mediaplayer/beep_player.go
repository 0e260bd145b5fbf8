/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package mediaplayer

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

// beepVolumeBase is the Base of effects.Volume, which scales samples by
// Base^Volume. SetVolume sets Volume to log_Base(v/100), so the resulting
// amplitude is linear in v (v=100 is full gain, v=0 is silence).
const beepVolumeBase = 2.0

// speakerSampleRate is the rate the shared speaker device is initialized at.
// Streams opened at a different native rate are resampled to this rate.
const speakerSampleRate = beep.SampleRate(44100)

// speakerBufferSize is the device buffer, chosen as ~1/10s at 44.1kHz to
// keep crossfade ramp latency low without underrunning.
const speakerBufferSize = 4410

var speakerOnce sync.Once
var speakerInitErr error

func ensureSpeaker() error {
	speakerOnce.Do(func() {
		speakerInitErr = speaker.Init(speakerSampleRate, speakerBufferSize)
	})
	return speakerInitErr
}

// BeepOpener opens local audio files via gopxl/beep, dispatching to the
// mp3/wav/vorbis decoder by extension.
type BeepOpener struct{}

// NewBeepOpener returns an Opener backed by beep's decoders and the shared
// speaker device.
func NewBeepOpener() *BeepOpener {
	return &BeepOpener{}
}

// Open implements Opener.
func (o *BeepOpener) Open(path string) (Player, error) {
	if err := ensureSpeaker(); err != nil {
		return nil, fmt.Errorf("mediaplayer: speaker init: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mediaplayer: open %s: %w", path, err)
	}

	var streamer beep.StreamSeekCloser
	var format beep.Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	default:
		f.Close()
		return nil, fmt.Errorf("mediaplayer: unrecognized extension for %s", path)
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mediaplayer: decode %s: %w", path, err)
	}

	durationMS := int64(0)
	if format.SampleRate > 0 {
		if length := streamer.Len(); length > 0 {
			durationMS = format.SampleRate.D(length).Milliseconds()
		}
	}

	tracked := &positionTrackingStreamer{Streamer: streamer, sampleRate: format.SampleRate}

	var resampled beep.Streamer = tracked
	if format.SampleRate != speakerSampleRate {
		resampled = beep.Resample(4, format.SampleRate, speakerSampleRate, tracked)
	}

	volume := &effects.Volume{
		Streamer: resampled,
		Base:     beepVolumeBase,
		Volume:   0,
		Silent:   true,
	}
	ctrl := &beep.Ctrl{Streamer: volume, Paused: true}

	p := &BeepPlayer{
		path:       path,
		closer:     streamer,
		tracked:    tracked,
		ctrl:       ctrl,
		volume:     volume,
		durationMS: durationMS,
	}
	p.state.Store(int32(Opening))
	return p, nil
}

// positionTrackingStreamer counts samples drained by the speaker mixer so
// the engine can query a monotonic play position without a polling ticker
// racing the mixer goroutine.
type positionTrackingStreamer struct {
	beep.Streamer
	sampleRate beep.SampleRate
	samples    int64
}

func (s *positionTrackingStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	n, ok = s.Streamer.Stream(samples)
	atomic.AddInt64(&s.samples, int64(n))
	return n, ok
}

func (s *positionTrackingStreamer) positionMS() int64 {
	n := atomic.LoadInt64(&s.samples)
	if s.sampleRate <= 0 {
		return -1
	}
	return s.sampleRate.D(int(n)).Milliseconds()
}

// BeepPlayer is the Player implementation backed by one beep stream mixed
// into the shared speaker device. Multiple BeepPlayer instances can be
// audible simultaneously — this is what makes overlapping main/next streams
// during a crossfade possible.
type BeepPlayer struct {
	path       string
	closer     beep.StreamSeekCloser
	tracked    *positionTrackingStreamer
	ctrl       *beep.Ctrl
	volume     *effects.Volume
	durationMS int64

	mu      sync.Mutex
	state   atomic.Int32
	started bool
	ended   bool
}

// Play implements Player.
func (p *BeepPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	p.started = true
	p.state.Store(int32(Playing))

	seq := beep.Seq(p.ctrl, beep.Callback(func() {
		p.mu.Lock()
		p.ended = true
		p.mu.Unlock()
		p.state.Store(int32(Ended))
	}))

	speaker.Lock()
	p.ctrl.Paused = false
	speaker.Unlock()

	speaker.Play(seq)
	return nil
}

// Stop implements Player.
func (p *BeepPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ended {
		return
	}
	speaker.Lock()
	p.ctrl.Paused = true
	speaker.Unlock()
	p.state.Store(int32(Stopped))
}

// SetVolume implements Player.
func (p *BeepPlayer) SetVolume(v int) {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	gain := math.Inf(-1)
	if v > 0 {
		gain = math.Log(float64(v)/100.0) / math.Log(beepVolumeBase)
	}

	speaker.Lock()
	p.volume.Volume = gain
	speaker.Unlock()
}

// SetMuted implements Player.
func (p *BeepPlayer) SetMuted(muted bool) {
	speaker.Lock()
	p.volume.Silent = muted
	speaker.Unlock()
}

// State implements Player.
func (p *BeepPlayer) State() State {
	return State(p.state.Load())
}

// PositionMS implements Player.
func (p *BeepPlayer) PositionMS() int64 {
	return p.tracked.positionMS()
}

// DurationMS implements Player.
func (p *BeepPlayer) DurationMS() int64 {
	return p.durationMS
}

// Release implements Player.
func (p *BeepPlayer) Release() {
	p.Stop()
	p.closer.Close()
}

var _ Player = (*BeepPlayer)(nil)

// waitReady blocks until state == Playing or position_ms > 0, or deadline
// elapses. It never returns an error: the engine proceeds best-effort
// either way, per spec.
func waitReady(p Player, deadline time.Duration) {
	start := time.Now()
	for time.Since(start) < deadline {
		if p.State() == Playing || p.PositionMS() > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// WaitMainReady readiness-waits a newly opened main stream.
func WaitMainReady(p Player) { waitReady(p, ReadinessWaitMain) }

// WaitNextReady readiness-waits a crossfade candidate.
func WaitNextReady(p Player) { waitReady(p, ReadinessWaitNext) }
