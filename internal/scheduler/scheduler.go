/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler polls persisted routines on a fixed cadence, computes
// the current match against wall-clock time, and drives the playback engine
// with three verbs: play, switch, and soft-stop.
package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/meadowcast/internal/events"
	"github.com/friendsincode/meadowcast/internal/models"
	"github.com/friendsincode/meadowcast/internal/playback"
	"github.com/friendsincode/meadowcast/internal/telemetry"
)

// TopicVerb is the events.Bus topic the scheduler publishes audit events to
// whenever it issues play/switch/soft_stop to the engine.
const TopicVerb events.Topic = "scheduler.verb"

// clock abstracts time.Now for deterministic tests.
type clock func() time.Time

// Scheduler owns a single background worker that polls routines and issues
// verbs to the engine. Overlapping routines are resolved by enumeration
// order, stabilized here via ORDER BY id ASC (spec's Open Question 3).
type Scheduler struct {
	db     *gorm.DB
	engine *playback.Engine
	logger zerolog.Logger

	interval        time.Duration
	softStopTimeout time.Duration
	now             clock
	metrics         *telemetry.Metrics
	bus             *events.Bus

	mu            sync.Mutex
	lastRoutineID string
	lastSceneID   string
	running       bool
	stopCh        chan struct{}
	doneCh        chan struct{}
}

// Option configures scheduler tunables.
type Option func(*Scheduler)

// WithInterval overrides the poll cadence (default 10s).
func WithInterval(d time.Duration) Option { return func(s *Scheduler) { s.interval = d } }

// WithSoftStopTimeout overrides the soft-stop deadline armed when no
// routine matches (default 300s).
func WithSoftStopTimeout(d time.Duration) Option { return func(s *Scheduler) { s.softStopTimeout = d } }

// withClock overrides time.Now, for tests.
func withClock(c clock) Option { return func(s *Scheduler) { s.now = c } }

// WithMetrics attaches Prometheus collectors the scheduler updates on each
// tick and each verb it issues.
func WithMetrics(m *telemetry.Metrics) Option { return func(s *Scheduler) { s.metrics = m } }

// WithEventBus attaches an events.Bus the scheduler publishes TopicVerb
// audit events to, independent of the Prometheus counters. Intended for
// log-tailing/audit consumers rather than anything playback-decision-facing.
func WithEventBus(b *events.Bus) Option { return func(s *Scheduler) { s.bus = b } }

// New constructs a Scheduler bound to db and engine.
func New(db *gorm.DB, engine *playback.Engine, logger zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		db:              db,
		engine:          engine,
		logger:          logger,
		interval:        10 * time.Second,
		softStopTimeout: 300 * time.Second,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start is idempotent: calling it while already running is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.loop()
}

// Stop signals the worker and joins it with a small timeout.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.running = false
	s.mu.Unlock()

	close(stopCh)
	select {
	case <-doneCh:
	case <-time.After(2 * time.Second):
	}
}

func (s *Scheduler) loop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick implements one poll cycle of §4.3.
func (s *Scheduler) tick() {
	if s.metrics != nil {
		s.metrics.SchedulerTicks.Inc()
	}

	routine, sc, matched := s.findMatch()

	s.mu.Lock()
	lastRoutineID := s.lastRoutineID
	lastSceneID := s.lastSceneID
	s.mu.Unlock()

	if !matched {
		if lastRoutineID != "" {
			s.engine.StopAfterCurrentOrTimeout(int(s.softStopTimeout.Seconds()))
			s.verb("soft_stop", lastRoutineID, lastSceneID)
			s.mu.Lock()
			s.lastRoutineID = ""
			s.lastSceneID = ""
			s.mu.Unlock()
		}
		return
	}

	s.applyMatch(routine, sc, lastRoutineID, lastSceneID)
}

func (s *Scheduler) applyMatch(routine models.Routine, sc models.Scene, lastRoutineID, lastSceneID string) {
	if routine.ID == lastRoutineID && !s.engine.IsPlaying() {
		// User/soft-stop silenced this routine intentionally; don't restart.
		return
	}

	volume := routine.Volume
	switch {
	case !s.engine.IsPlaying():
		s.engine.PlayScene(sc.Path, &volume)
		s.verb("play", routine.ID, sc.ID)
	case routine.ID != lastRoutineID:
		s.engine.SwitchScene(sc.Path, &volume)
		s.verb("switch", routine.ID, sc.ID)
	case sc.ID != lastSceneID:
		s.engine.SwitchScene(sc.Path, nil)
		s.verb("switch", routine.ID, sc.ID)
	default:
		return // idempotent: same routine, same scene, already playing
	}

	s.mu.Lock()
	s.lastRoutineID = routine.ID
	s.lastSceneID = sc.ID
	s.mu.Unlock()
}

func (s *Scheduler) verb(kind, routineID, sceneID string) {
	if s.metrics != nil {
		s.metrics.SchedulerVerbs.WithLabelValues(kind).Inc()
	}
	if s.bus != nil {
		s.bus.Publish(TopicVerb, events.Payload{
			"kind":       kind,
			"routine_id": routineID,
			"scene_id":   sceneID,
		})
	}
}

// findMatch loads routines in stable enumeration order and returns the
// first whose window/weekday/month set covers now, plus its scene.
func (s *Scheduler) findMatch() (models.Routine, models.Scene, bool) {
	var routines []models.Routine
	if err := s.db.Preload("Scene").Order("id ASC").Find(&routines).Error; err != nil {
		s.logger.Warn().Err(err).Msg("failed to load routines")
		return models.Routine{}, models.Scene{}, false
	}

	now := s.now()
	for _, routine := range routines {
		if !routine.Matches(now) {
			continue
		}
		if routine.Scene == nil {
			s.logger.Warn().Str("routine_id", routine.ID).Msg("matching routine has no scene")
			continue
		}
		return routine, *routine.Scene, true
	}
	return models.Routine{}, models.Scene{}, false
}

// ResumeIfShouldPlay is the out-of-band manual verb: it forcibly runs the
// match-and-apply step as if the last known state were idle.
func (s *Scheduler) ResumeIfShouldPlay() {
	routine, sc, matched := s.findMatch()
	if !matched {
		return
	}
	s.applyMatch(routine, sc, "", "")
}
