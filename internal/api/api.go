/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the thin HTTP/WebSocket surface over the playback
// engine's command surface, the scheduler, and persisted scenes/routines.
// The CRUD endpoints, live WebSocket feed, and engine control endpoints are
// all external collaborators per spec — the core engine/scheduler/hub logic
// never depends on this package.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/meadowcast/internal/hub"
	"github.com/friendsincode/meadowcast/internal/playback"
	"github.com/friendsincode/meadowcast/internal/scheduler"
	"github.com/friendsincode/meadowcast/internal/telemetry"
)

// API wires persisted scenes/routines, the playback engine, the scheduler,
// and the notification hub into chi-routed HTTP handlers.
type API struct {
	db        *gorm.DB
	engine    *playback.Engine
	scheduler *scheduler.Scheduler
	notify    *hub.Hub
	logger    zerolog.Logger
	metrics   *telemetry.Metrics
}

// New constructs the API handler wrapper.
func New(db *gorm.DB, engine *playback.Engine, sched *scheduler.Scheduler, notify *hub.Hub, logger zerolog.Logger, metrics *telemetry.Metrics) *API {
	return &API{db: db, engine: engine, scheduler: sched, notify: notify, logger: logger, metrics: metrics}
}

// Router assembles the chi router, including the standard middleware stack.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealth)
	r.Handle("/metrics", telemetry.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/scenes", func(r chi.Router) {
			r.Get("/", a.handleScenesList)
			r.Post("/", a.handleScenesCreate)
			r.Get("/{sceneID}", a.handleSceneGet)
			r.Delete("/{sceneID}", a.handleSceneDelete)
		})

		r.Route("/routines", func(r chi.Router) {
			r.Get("/", a.handleRoutinesList)
			r.Post("/", a.handleRoutinesCreate)
			r.Put("/{routineID}", a.handleRoutinesUpdate)
			r.Delete("/{routineID}", a.handleRoutinesDelete)
		})

		r.Route("/engine", func(r chi.Router) {
			r.Get("/now-playing", a.handleNowPlaying)
			r.Post("/volume", a.handleSetVolume)
			r.Post("/stop", a.handleStop)
			r.Post("/resume", a.handleResume)
		})

		r.Get("/live", a.handleLiveWebSocket)
	})

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func newID() string { return uuid.NewString() }
