/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package playback implements the PlaybackEngine: a single-writer play-loop
// that owns the per-scene shuffled queue, the main and (during crossfade)
// next MediaPlayer, and all crossfade/handoff timing and guard state. All
// external verbs arrive through a thread-safe, non-blocking command surface;
// the loop itself is the sole writer of engine state.
package playback

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/meadowcast/internal/hub"
	"github.com/friendsincode/meadowcast/internal/mediaplayer"
	"github.com/friendsincode/meadowcast/internal/scene"
	"github.com/friendsincode/meadowcast/internal/telemetry"
)

// Phase is the coarse engine state exposed to callers.
type Phase int

const (
	Idle Phase = iota
	Playing
	Crossfade
)

func (p Phase) String() string {
	switch p {
	case Playing:
		return "playing"
	case Crossfade:
		return "crossfade"
	default:
		return "idle"
	}
}

const (
	tickInterval = 50 * time.Millisecond

	fadeInDuration  = 1 * time.Second
	fadeInSteps     = 20
	fadeOutDuration = 200 * time.Millisecond
	fadeOutSteps    = 10

	defaultSameStartGuard       = 1500 * time.Millisecond
	defaultPromotionGuardWindow = 350 * time.Millisecond
	defaultCrossfadeSeconds     = 6.0

	emptySceneIdleTimeout = 10 * time.Second
)

// sceneRequest is the single-slot pending scene change the loop consumes at
// its next safe point (play_scene) or between songs (switch_scene).
type sceneRequest struct {
	folder      string
	volume      int
	hasVolume   bool
	forceReopen bool // true for play_scene: abandon the in-flight song now
}

// softStop captures stop_after_current_or_timeout state.
type softStop struct {
	armed    bool
	deadline time.Time
}

// Engine is the PlaybackEngine. One Engine owns exactly one play-loop
// goroutine for its entire lifetime; Shutdown stops it permanently.
type Engine struct {
	opener  mediaplayer.Opener
	notify  *hub.Hub
	logger  zerolog.Logger
	metrics *telemetry.Metrics

	crossfadeSeconds     float64
	sameStartGuard       time.Duration
	promotionGuardWindow time.Duration
	tick                 time.Duration

	mu                    sync.Mutex
	queue                 *scene.Queue
	playerMain            mediaplayer.Player
	playerNext            mediaplayer.Player
	mainID                uint64
	nextID                uint64
	idSeq                 uint64
	crossfadeActive       bool
	nextIndexPending      int
	nextIndexPendingValid bool
	startedAsNext         map[string]bool
	lastStartedPath       string
	lastStartedAt         time.Time
	nextVolumeOverride    int
	nextVolumeOverrideSet bool

	nowPlaying    string
	hasNowPlaying bool

	handoffInProgress   bool
	lastHandoffMainID   uint64
	promotionGuardUntil time.Time

	sceneReq *sceneRequest
	stop     softStop

	emptySceneSince time.Time

	playEpoch atomic.Int64
	volume    atomic.Int32

	forceStopCh chan struct{}

	shutdownCh chan struct{}
	loopDone   chan struct{}
	startOnce  sync.Once
}

// Option configures non-default engine tunables, primarily for tests that
// need shorter guards/ticks than production defaults.
type Option func(*Engine)

// WithCrossfadeSeconds overrides the crossfade ramp duration.
func WithCrossfadeSeconds(s float64) Option { return func(e *Engine) { e.crossfadeSeconds = s } }

// WithSameStartGuard overrides the same-start guard window.
func WithSameStartGuard(d time.Duration) Option { return func(e *Engine) { e.sameStartGuard = d } }

// WithPromotionGuardWindow overrides the promotion guard window.
func WithPromotionGuardWindow(d time.Duration) Option {
	return func(e *Engine) { e.promotionGuardWindow = d }
}

// WithTick overrides the play-loop's polling interval.
func WithTick(d time.Duration) Option { return func(e *Engine) { e.tick = d } }

// WithMetrics attaches Prometheus collectors the engine updates on phase
// transitions, volume changes, and completed crossfades.
func WithMetrics(m *telemetry.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// New constructs an Engine and starts its play-loop goroutine.
func New(opener mediaplayer.Opener, notify *hub.Hub, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		opener:               opener,
		notify:               notify,
		logger:               logger,
		crossfadeSeconds:     defaultCrossfadeSeconds,
		sameStartGuard:       defaultSameStartGuard,
		promotionGuardWindow: defaultPromotionGuardWindow,
		tick:                 tickInterval,
		startedAsNext:        make(map[string]bool),
		forceStopCh:          make(chan struct{}, 1),
		shutdownCh:           make(chan struct{}),
		loopDone:             make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.volume.Store(70)
	e.startOnce.Do(func() { go e.run() })
	return e
}

func (e *Engine) nextPlayerID() uint64 {
	e.idSeq++
	return e.idSeq
}

// ---- Command surface ----

// PlayScene force-stops any current loop, loads+shuffles folder, and starts
// the play-loop. A nil volume leaves current_volume unchanged.
func (e *Engine) PlayScene(folder string, volume *int) {
	req := &sceneRequest{folder: folder, forceReopen: true}
	if volume != nil {
		req.hasVolume = true
		req.volume = clampVolume(*volume)
	}
	e.mu.Lock()
	e.sceneReq = req
	e.mu.Unlock()
	e.playEpoch.Add(1)
}

// SwitchScene requests a scene change at the next safe point. Two
// back-to-back SwitchScene calls collapse to "switch to the latest".
func (e *Engine) SwitchScene(folder string, volume *int) {
	req := &sceneRequest{folder: folder, forceReopen: false}
	if volume != nil {
		req.hasVolume = true
		req.volume = clampVolume(*volume)
	}

	e.mu.Lock()
	e.sceneReq = req
	if e.crossfadeActive && e.playerNext != nil {
		next := e.playerNext
		e.playerNext = nil
		e.crossfadeActive = false
		e.nextIndexPendingValid = false
		e.mu.Unlock()
		next.Stop()
		next.Release()
	} else {
		e.mu.Unlock()
	}
}

// SetVolume clamps v to 0..100, updates current_volume, and applies it to
// any non-terminal main/next stream immediately. While a crossfade is in
// progress the streams are left to the ramp, which ramps toward the new
// current_volume from its next tick on.
func (e *Engine) SetVolume(v int) {
	clamped := clampVolume(v)
	e.volume.Store(int32(clamped))

	e.mu.Lock()
	main, next := e.playerMain, e.playerNext
	crossfading := e.crossfadeActive
	e.mu.Unlock()

	if main != nil && !main.State().IsTerminal() && !crossfading {
		main.SetVolume(clamped)
	}
	if next != nil && !next.State().IsTerminal() && !crossfading {
		next.SetVolume(clamped)
	}
	e.notify.EmitVolume(clamped)
	if e.metrics != nil {
		e.metrics.CurrentVolume.Set(float64(clamped))
	}
}

// GetVolume returns current_volume.
func (e *Engine) GetVolume() int { return int(e.volume.Load()) }

// GetNowPlaying returns the current main track, or nil if idle.
func (e *Engine) GetNowPlaying() *string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hasNowPlaying {
		return nil
	}
	track := e.nowPlaying
	return &track
}

// IsPlaying reports whether a main stream is currently set.
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasNowPlaying
}

// GetPhase returns Crossfade iff crossfade_active, else Playing iff
// now_playing is set, else Idle.
func (e *Engine) GetPhase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.crossfadeActive {
		return Crossfade
	}
	if e.hasNowPlaying {
		return Playing
	}
	return Idle
}

// Stop is a hard stop: it signals the loop to abandon the in-flight song and
// clears all soft-stop state. If force, it blocks until the loop has
// returned to idle, waiting at most 2s.
func (e *Engine) Stop(force bool) {
	e.mu.Lock()
	e.stop = softStop{}
	e.queue = nil
	e.sceneReq = nil
	e.mu.Unlock()

	e.playEpoch.Add(1)
	select {
	case e.forceStopCh <- struct{}{}:
	default:
	}

	if force {
		e.waitUntilIdle(2 * time.Second)
	}
}

func (e *Engine) waitUntilIdle(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e.GetPhase() == Idle {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// StopAfterCurrentOrTimeout arms a soft stop: the loop finishes the current
// song (no crossfade into a successor) and exits, or exits once the timeout
// elapses, whichever comes first.
func (e *Engine) StopAfterCurrentOrTimeout(timeoutSec int) {
	if timeoutSec < 0 {
		timeoutSec = 0
	}
	e.mu.Lock()
	e.stop = softStop{armed: true, deadline: time.Now().Add(time.Duration(timeoutSec) * time.Second)}
	e.mu.Unlock()
}

// Shutdown performs Stop(force=true), releases all media resources, and
// terminates the play-loop goroutine permanently.
func (e *Engine) Shutdown() {
	e.Stop(true)
	close(e.shutdownCh)
	<-e.loopDone
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ---- Play-loop ----

func (e *Engine) run() {
	defer close(e.loopDone)

	for {
		select {
		case <-e.shutdownCh:
			e.cleanupAll()
			return
		default:
		}

		select {
		case <-e.forceStopCh:
			e.cleanupAll()
		default:
		}

		e.maybeApplySceneRequest(false)

		e.mu.Lock()
		q := e.queue
		e.mu.Unlock()

		if q == nil {
			e.sleepOrShutdown(e.tick)
			continue
		}

		song := q.Current()
		if song == "" {
			e.handleEmptyScene()
			continue
		}
		e.emptySceneSince = time.Time{}

		if e.restartGuardBlocks(song) {
			e.sleepOrShutdown(e.tick)
			continue
		}

		epoch := e.playEpoch.Add(1)
		e.mu.Lock()
		e.startedAsNext = make(map[string]bool)
		e.mu.Unlock()

		_, hasCandidate := q.PickNextDistinct()
		e.playSong(epoch, song, hasCandidate)
		e.clearSoftStopAfterSong()

		select {
		case <-e.shutdownCh:
			e.cleanupAll()
			return
		default:
		}
	}
}

// clearSoftStopAfterSong implements §4.2's soft-stop contract: once
// playSong returns with a soft stop armed, the loop must not start a
// successor — it exits to idle instead. playSong itself already refuses to
// crossfade into a successor while a soft stop is armed (§4.2.5's "do not
// start a next stream"); this closes the remaining gap where the current
// song simply ends (or is promoted into) with no crossfade ever attempted,
// which playSong has no reason to treat as a stop condition on its own.
func (e *Engine) clearSoftStopAfterSong() {
	e.mu.Lock()
	armed := e.stop.armed
	if armed {
		e.queue = nil
		e.stop = softStop{}
	}
	e.mu.Unlock()
}

func (e *Engine) sleepOrShutdown(d time.Duration) {
	select {
	case <-e.shutdownCh:
	case <-time.After(d):
	}
}

func (e *Engine) handleEmptyScene() {
	if e.emptySceneSince.IsZero() {
		e.emptySceneSince = time.Now()
	}
	if time.Since(e.emptySceneSince) >= emptySceneIdleTimeout {
		e.mu.Lock()
		e.queue = nil
		e.mu.Unlock()
		e.emptySceneSince = time.Time{}
		return
	}
	e.sleepOrShutdown(e.tick)
}

// restartGuardBlocks implements §4.2.7: the defensive restart guard. It
// blocks only for the brief promotion_guard_window after a handoff, not for
// as long as playerMain happens to share the queue-selected track — once
// that window elapses the outer loop must be free to notice the promoted
// stream has gone terminal and advance normally.
func (e *Engine) restartGuardBlocks(song string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.playerMain == nil || e.playerMain.State().IsTerminal() {
		return false
	}
	if e.nowPlaying != song {
		return false
	}
	return e.mainID == e.lastHandoffMainID && time.Now().Before(e.promotionGuardUntil)
}

// maybeApplySceneRequest consumes a pending scene request if one is queued.
// When onlyForce is true, only force-reopen (play_scene) requests are
// consumed; switch_scene requests wait for a safe point between songs.
func (e *Engine) maybeApplySceneRequest(onlyForce bool) bool {
	e.mu.Lock()
	req := e.sceneReq
	if req == nil {
		e.mu.Unlock()
		return false
	}
	if onlyForce && !req.forceReopen {
		e.mu.Unlock()
		return false
	}
	e.sceneReq = nil
	e.mu.Unlock()

	e.applySceneRequest(req)
	return true
}

func (e *Engine) applySceneRequest(req *sceneRequest) {
	if req.hasVolume {
		e.volume.Store(int32(req.volume))
	}

	q, err := scene.NewQueue(req.folder)
	if err != nil {
		e.logger.Warn().Err(err).Str("folder", req.folder).Msg("failed to load scene directory")
		q = &scene.Queue{SceneFolder: req.folder}
	}

	e.mu.Lock()
	oldMain, oldNext := e.playerMain, e.playerNext
	e.playerMain, e.playerNext = nil, nil
	e.crossfadeActive = false
	e.nextIndexPendingValid = false
	e.hasNowPlaying = false
	e.nowPlaying = ""
	e.stop = softStop{}
	e.queue = q
	e.mu.Unlock()

	if oldMain != nil {
		oldMain.Stop()
		oldMain.Release()
	}
	if oldNext != nil {
		oldNext.Stop()
		oldNext.Release()
	}
}

// songDuration returns p's parsed duration, substituting the default when
// it cannot yet be determined (spec.md §4.1).
func songDuration(p mediaplayer.Player) time.Duration {
	ms := p.DurationMS()
	if ms <= 0 {
		ms = mediaplayer.DefaultDuration.Milliseconds()
	}
	return time.Duration(ms) * time.Millisecond
}

// crossfadeFadeStart computes fade_start per §4.2's song lifecycle step 3.
func (e *Engine) crossfadeFadeStart(duration time.Duration, hasCandidateNext bool) time.Duration {
	if !hasCandidateNext {
		return duration
	}
	fadeStart := duration - time.Duration(e.crossfadeSeconds*float64(time.Second))
	if fadeStart < time.Second {
		fadeStart = time.Second
	}
	return fadeStart
}

// playSong runs a song's lifecycle: open, fade-in, then the per-song tick
// loop (crossfade gate/start/ramp, terminal promotion, stop handling). Per
// §4.2.6, a successful handoff — terminal-state promotion or a completed
// crossfade ramp — does not return to the outer play-loop: it rebinds main
// to the promoted stream, re-fetches its duration, resets the timing
// window, and continues this same tick loop. playSong only returns once a
// song concludes with no promotable successor, or the song is cancelled
// (epoch change, hard stop, soft-stop deadline, shutdown, forced scene
// reopen).
func (e *Engine) playSong(epoch int64, song string, hasCandidateNext bool) {
	main, err := e.opener.Open(song)
	if err != nil {
		e.logger.Warn().Err(err).Str("track", song).Msg("failed to open main stream")
		e.advanceQueueAfterFailure()
		return
	}
	mainID := e.nextPlayerID()

	main.SetMuted(false)
	main.SetVolume(0)
	if err := main.Play(); err != nil {
		e.logger.Warn().Err(err).Str("track", song).Msg("failed to play main stream")
		main.Release()
		e.advanceQueueAfterFailure()
		return
	}
	// songStart is taken at the moment decoding actually begins, not after
	// the readiness wait and fade-in ramp settle — otherwise elapsed lags
	// true playback position by up to ~1.5s and the near-end soft-stop
	// check below would never observe elapsed close to duration.
	songStart := time.Now()
	mediaplayer.WaitMainReady(main)

	e.mu.Lock()
	e.playerMain = main
	e.mainID = mainID
	e.nowPlaying = song
	e.hasNowPlaying = true
	e.lastStartedPath = song
	e.lastStartedAt = time.Now()
	e.mu.Unlock()

	target := e.GetVolume()
	if !e.fadeIn(epoch, main, target) {
		e.fadeOutAndRelease(main, nil)
		e.clearMainState()
		return
	}

	e.notify.EmitTrack(song, intPtr(target))
	e.setPhaseMetric(Playing)

	duration := songDuration(main)
	fadeStart := e.crossfadeFadeStart(duration, hasCandidateNext)

	crossfadeStarted := false
	var fadeStartTime time.Time

	for {
		if e.epochStale(epoch) {
			e.fadeOutAndRelease(main, e.currentNext())
			e.clearMainState()
			return
		}

		mainState := main.State()
		if mainState.IsTerminal() {
			if promoted, newMain, newSong, newHasCandidate := e.promoteIfNextReady(epoch); promoted {
				main, song, hasCandidateNext = newMain, newSong, newHasCandidate
				target = e.GetVolume()
				songStart = time.Now()
				duration = songDuration(main)
				fadeStart = e.crossfadeFadeStart(duration, hasCandidateNext)
				crossfadeStarted = false
				fadeStartTime = time.Time{}
				continue
			}
			e.clearMainState()
			e.advanceQueueNatural()
			return
		}

		e.mu.Lock()
		stopState := e.stop
		e.mu.Unlock()

		if stopState.armed && !stopState.deadline.IsZero() && time.Now().After(stopState.deadline) {
			e.fadeOutAndRelease(main, e.currentNext())
			e.clearMainState()
			return
		}

		elapsed := time.Since(songStart)

		if stopState.armed && !crossfadeStarted && elapsed >= duration-250*time.Millisecond {
			e.fadeOutAndRelease(main, nil)
			e.clearMainState()
			return
		}

		if !crossfadeStarted && elapsed >= fadeStart && hasCandidateNext && !stopState.armed {
			if e.crossfadeGateAndStart(epoch, song) {
				crossfadeStarted = true
				fadeStartTime = time.Now()
				e.setPhaseMetric(Crossfade)
			}
		}

		if crossfadeStarted {
			e.mu.Lock()
			active := e.crossfadeActive
			next := e.playerNext
			e.mu.Unlock()
			if active && next != nil {
				if promoted, newMain, newSong, newHasCandidate := e.advanceCrossfadeRamp(fadeStartTime, e.GetVolume()); promoted {
					main, song, hasCandidateNext = newMain, newSong, newHasCandidate
					target = e.GetVolume()
					songStart = time.Now()
					duration = songDuration(main)
					fadeStart = e.crossfadeFadeStart(duration, hasCandidateNext)
					crossfadeStarted = false
					fadeStartTime = time.Time{}
					continue
				}
			} else {
				crossfadeStarted = false
			}
		}

		select {
		case <-e.shutdownCh:
			e.fadeOutAndRelease(main, e.currentNext())
			e.clearMainState()
			return
		case <-time.After(e.tick):
		}

		if req := e.peekForceSceneRequest(); req {
			e.maybeApplySceneRequest(true)
			return
		}
	}
}

func (e *Engine) peekForceSceneRequest() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sceneReq != nil && e.sceneReq.forceReopen
}

func (e *Engine) currentNext() mediaplayer.Player {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playerNext
}

func (e *Engine) epochStale(epoch int64) bool {
	return e.playEpoch.Load() != epoch
}

// fadeIn ramps volume linearly from 0 to target over ~1s in 20 steps,
// aborting early (returning false) on stop or epoch change.
func (e *Engine) fadeIn(epoch int64, p mediaplayer.Player, target int) bool {
	step := fadeInDuration / fadeInSteps
	for i := 1; i <= fadeInSteps; i++ {
		if e.epochStale(epoch) {
			return false
		}
		v := int(math.Round(float64(target) * float64(i) / float64(fadeInSteps)))
		p.SetVolume(v)
		time.Sleep(step)
	}
	return true
}

// fadeOutAndRelease ramps main (and next, if present) to 0 over 200ms, then
// stops and releases both.
func (e *Engine) fadeOutAndRelease(main, next mediaplayer.Player) {
	step := fadeOutDuration / fadeOutSteps
	mainStart := 0
	nextStart := 0
	if main != nil {
		mainStart = e.GetVolume()
	}
	if next != nil {
		nextStart = e.GetVolume()
	}
	for i := 1; i <= fadeOutSteps; i++ {
		ratio := 1 - float64(i)/float64(fadeOutSteps)
		if main != nil {
			main.SetVolume(int(math.Round(float64(mainStart) * ratio)))
		}
		if next != nil {
			next.SetVolume(int(math.Round(float64(nextStart) * ratio)))
		}
		time.Sleep(step)
	}
	if main != nil {
		main.Stop()
		main.Release()
	}
	if next != nil {
		next.Stop()
		next.Release()
	}
	e.mu.Lock()
	e.playerNext = nil
	e.crossfadeActive = false
	e.nextIndexPendingValid = false
	e.mu.Unlock()
}

func (e *Engine) clearMainState() {
	e.mu.Lock()
	e.playerMain = nil
	e.hasNowPlaying = false
	e.nowPlaying = ""
	e.mu.Unlock()
	e.notify.EmitIdle()
	e.setPhaseMetric(Idle)
}

// setPhaseMetric records phase in the engine's metrics collector, if one is
// attached.
func (e *Engine) setPhaseMetric(phase Phase) {
	if e.metrics != nil {
		e.metrics.SetPhase(phase.String())
	}
}

func (e *Engine) advanceQueueNatural() {
	e.mu.Lock()
	if e.queue != nil {
		e.queue.Advance()
	}
	e.mu.Unlock()
}

func (e *Engine) advanceQueueAfterFailure() {
	e.advanceQueueNatural()
}

// crossfadeGateAndStart implements §4.2.5's gate and start steps. It returns
// true if a next stream was successfully claimed and started.
func (e *Engine) crossfadeGateAndStart(epoch int64, currentSong string) bool {
	e.mu.Lock()
	if e.sceneReq != nil && !e.sceneReq.forceReopen {
		e.nextIndexPendingValid = false
		e.mu.Unlock()
		return false
	}
	q := e.queue
	if q == nil {
		e.mu.Unlock()
		return false
	}
	idx, ok := q.PickNextDistinct()
	if ok {
		candidate := q.TrackAt(idx)
		if candidate == e.lastStartedPath && time.Since(e.lastStartedAt) < e.sameStartGuard {
			ok = false
		}
		if ok && e.startedAsNext[candidate] {
			ok = false
		}
		if ok && candidate == currentSong {
			ok = false
		}
	}
	if !ok {
		e.mu.Unlock()
		return false
	}
	e.nextIndexPending = idx
	e.nextIndexPendingValid = true
	candidate := q.TrackAt(idx)
	e.mu.Unlock()

	if e.stopArmed() {
		e.mu.Lock()
		e.nextIndexPendingValid = false
		e.mu.Unlock()
		return false
	}

	next, err := e.opener.Open(candidate)
	if err != nil {
		e.logger.Warn().Err(err).Str("track", candidate).Msg("failed to open crossfade candidate")
		e.mu.Lock()
		e.nextIndexPendingValid = false
		e.mu.Unlock()
		return false
	}
	next.SetVolume(0)

	e.mu.Lock()
	if e.playerNext != nil || e.crossfadeActive || e.epochMismatchLocked(epoch) {
		e.mu.Unlock()
		next.Release()
		return false
	}
	e.playerNext = next
	e.nextID = e.nextPlayerID()
	e.crossfadeActive = true
	e.mu.Unlock()

	if err := next.Play(); err != nil {
		e.logger.Warn().Err(err).Str("track", candidate).Msg("failed to play crossfade candidate")
	}
	mediaplayer.WaitNextReady(next)
	next.SetMuted(false)
	next.SetVolume(0)

	e.mu.Lock()
	e.startedAsNext[candidate] = true
	e.lastStartedPath = candidate
	e.lastStartedAt = time.Now()
	e.mu.Unlock()

	return true
}

func (e *Engine) epochMismatchLocked(epoch int64) bool {
	return e.playEpoch.Load() != epoch
}

func (e *Engine) stopArmed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stop.armed
}

// advanceCrossfadeRamp advances the linear volume ramp one tick and, once
// ratio reaches 1, performs the atomic promotion described in §4.2.5: next
// becomes main, pos advances, and a (new_track, target_volume) notification
// is emitted only after player_main actually references the new stream.
// On promotion it returns the promoted player, its track, and whether the
// queue holds a further distinct successor — playSong re-opens its timing
// window around these and continues the same per-song loop rather than
// returning to the outer play-loop (§4.2.6).
func (e *Engine) advanceCrossfadeRamp(fadeStartTime time.Time, currentVolume int) (promoted bool, newMain mediaplayer.Player, newSong string, hasCandidateNext bool) {
	ratio := float64(time.Since(fadeStartTime)) / (e.crossfadeSeconds * float64(time.Second))
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	e.mu.Lock()
	main, next := e.playerMain, e.playerNext
	targetVolume := currentVolume
	if e.nextVolumeOverrideSet {
		targetVolume = e.nextVolumeOverride
	}
	e.mu.Unlock()

	if main == nil || next == nil {
		return false, nil, "", false
	}

	main.SetVolume(int(math.Round(float64(currentVolume) * (1 - ratio))))
	next.SetVolume(int(math.Round(float64(targetVolume) * ratio)))

	if ratio < 1 {
		return false, nil, "", false
	}

	main.Stop()
	main.Release()

	e.mu.Lock()
	e.playerMain = next
	e.mainID = e.nextID
	e.playerNext = nil
	e.crossfadeActive = false
	if e.nextIndexPendingValid && e.queue != nil {
		e.queue.PromoteTo(e.nextIndexPending)
	}
	e.nextIndexPendingValid = false
	track := e.queue.Current()
	e.nowPlaying = track
	e.hasNowPlaying = true
	e.handoffInProgress = true
	e.lastHandoffMainID = e.mainID
	e.promotionGuardUntil = time.Now().Add(e.promotionGuardWindow)
	e.nextVolumeOverrideSet = false
	var hasNext bool
	if e.queue != nil {
		_, hasNext = e.queue.PickNextDistinct()
	}
	e.mu.Unlock()

	next.SetVolume(targetVolume)
	e.notify.EmitTrack(track, intPtr(targetVolume))
	e.setPhaseMetric(Playing)
	if e.metrics != nil {
		e.metrics.CrossfadesTotal.Inc()
	}
	return true, next, track, hasNext
}

// promoteIfNextReady implements §4.2.6: terminal-state promotion when main
// ends while a non-terminal next stream is already playing. On promotion it
// returns the promoted player, its track, and whether the queue holds a
// further distinct successor, so playSong can re-open the promoted stream's
// timing window (re-fetch duration, reset start_time) and continue the same
// per-song loop instead of returning to the outer play-loop — this is what
// prevents a gap when tracks are shorter than the scheduled fade window.
func (e *Engine) promoteIfNextReady(epoch int64) (promoted bool, newMain mediaplayer.Player, newSong string, hasCandidateNext bool) {
	e.mu.Lock()
	next := e.playerNext
	main := e.playerMain
	if next == nil || next.State().IsTerminal() {
		e.mu.Unlock()
		return false, nil, "", false
	}
	e.mu.Unlock()

	if main != nil {
		main.Release()
	}

	volume := e.GetVolume()
	e.mu.Lock()
	e.playerMain = next
	e.mainID = e.nextID
	e.playerNext = nil
	e.crossfadeActive = false
	if e.nextIndexPendingValid && e.queue != nil {
		e.queue.PromoteTo(e.nextIndexPending)
	}
	e.nextIndexPendingValid = false
	track := ""
	if e.queue != nil {
		track = e.queue.Current()
	}
	e.nowPlaying = track
	e.hasNowPlaying = true
	e.handoffInProgress = true
	e.lastHandoffMainID = e.mainID
	e.promotionGuardUntil = time.Now().Add(e.promotionGuardWindow)
	var hasNext bool
	if e.queue != nil {
		_, hasNext = e.queue.PickNextDistinct()
	}
	e.mu.Unlock()

	next.SetVolume(volume)
	e.notify.EmitTrack(track, intPtr(volume))
	e.setPhaseMetric(Playing)
	return true, next, track, hasNext
}

func (e *Engine) cleanupAll() {
	e.mu.Lock()
	main, next := e.playerMain, e.playerNext
	e.playerMain, e.playerNext = nil, nil
	e.crossfadeActive = false
	e.nextIndexPendingValid = false
	e.hasNowPlaying = false
	e.nowPlaying = ""
	e.startedAsNext = make(map[string]bool)
	e.handoffInProgress = false
	e.mu.Unlock()

	if main != nil {
		main.Stop()
		main.Release()
	}
	if next != nil {
		next.Stop()
		next.Release()
	}
	e.notify.EmitIdle()
	e.setPhaseMetric(Idle)
}

func intPtr(v int) *int { return &v }
