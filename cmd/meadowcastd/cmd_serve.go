/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/friendsincode/meadowcast/internal/api"
	"github.com/friendsincode/meadowcast/internal/config"
	"github.com/friendsincode/meadowcast/internal/db"
	"github.com/friendsincode/meadowcast/internal/events"
	"github.com/friendsincode/meadowcast/internal/history"
	"github.com/friendsincode/meadowcast/internal/hub"
	"github.com/friendsincode/meadowcast/internal/logging"
	"github.com/friendsincode/meadowcast/internal/mediaplayer"
	"github.com/friendsincode/meadowcast/internal/playback"
	"github.com/friendsincode/meadowcast/internal/scheduler"
	"github.com/friendsincode/meadowcast/internal/telemetry"
)

var recordHistory bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the playback engine, scheduler, and HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&recordHistory, "record-history", false, "Append a play_history row on every track change")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := logging.Setup(cfg.Environment)
	logger.Info().Str("environment", cfg.Environment).Msg("meadowcastd starting")

	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := db.Close(database); err != nil {
			logger.Error().Err(err).Msg("failed to close database")
		}
	}()

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	metrics := telemetry.New()
	notify := hub.New(logger, 32)
	opener := mediaplayer.NewBeepOpener()

	engine := playback.New(opener, notify, logger,
		playback.WithCrossfadeSeconds(cfg.CrossfadeSeconds),
		playback.WithSameStartGuard(time.Duration(cfg.SameStartGuardSeconds*float64(time.Second))),
		playback.WithPromotionGuardWindow(cfg.PromotionGuardWindow),
		playback.WithMetrics(metrics),
	)

	auditBus := events.NewBus()
	sched := scheduler.New(database, engine, logger,
		scheduler.WithInterval(cfg.SchedulerInterval),
		scheduler.WithSoftStopTimeout(cfg.SoftStopTimeout),
		scheduler.WithMetrics(metrics),
		scheduler.WithEventBus(auditBus),
	)
	go logVerbEvents(auditBus, logger)

	if recordHistory {
		recorder := history.NewRecorder(database, logger)
		notify.Subscribe(recorder.Handle)
	}

	sched.Start()
	sched.ResumeIfShouldPlay()

	a := api.New(database, engine, sched, notify, logger, metrics)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler: a.Router(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown error")
	}

	sched.Stop()
	engine.Shutdown()

	logger.Info().Msg("meadowcastd stopped")
	return nil
}

// logVerbEvents audits every scheduler verb to the structured log. It runs
// for the lifetime of the process; the subscriber channel is never closed
// since auditBus is scoped to this single run.
func logVerbEvents(bus *events.Bus, logger zerolog.Logger) {
	sub := bus.Subscribe(scheduler.TopicVerb)
	for payload := range sub {
		logger.Info().
			Interface("kind", payload["kind"]).
			Interface("routine_id", payload["routine_id"]).
			Interface("scene_id", payload["scene_id"]).
			Msg("scheduler verb")
	}
}
