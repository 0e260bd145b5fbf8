/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package history is an optional downstream subscriber of the notification
// hub: it appends a PlayHistory row for every non-idle track change. It
// never gates or is read by any playback decision.
package history

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/meadowcast/internal/hub"
	"github.com/friendsincode/meadowcast/internal/models"
)

// Recorder persists track-change notifications to the play_history table.
type Recorder struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewRecorder constructs a Recorder bound to db.
func NewRecorder(db *gorm.DB, logger zerolog.Logger) *Recorder {
	return &Recorder{db: db, logger: logger.With().Str("component", "history").Logger()}
}

// Handle is a hub.Notification callback suitable for hub.Hub.Subscribe. It
// ignores volume-only and idle notifications.
func (rec *Recorder) Handle(n hub.Notification) {
	if n.Track == nil || *n.Track == "" {
		return
	}

	row := models.PlayHistory{
		ID:        uuid.NewString(),
		TrackPath: *n.Track,
		StartedAt: time.Now(),
	}
	if err := rec.db.Create(&row).Error; err != nil {
		rec.logger.Warn().Err(err).Msg("failed to record play history")
	}
}
