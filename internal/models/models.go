/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models holds the gorm-persisted records the scheduler reads:
// scenes and the routines that bind them to a recurring wall-clock window.
package models

import "time"

// Scene is a named directory of audio files treated as an interchangeable
// shuffle pool.
type Scene struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string `gorm:"uniqueIndex;not null" json:"name"`
	Path      string `gorm:"not null" json:"path"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Scene) TableName() string {
	return "scenes"
}

// Routine binds a scene to a recurring time-of-day window, optionally
// restricted to a set of weekdays and/or months, at a target volume.
type Routine struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	SceneID   string `gorm:"type:uuid;index;not null" json:"scene_id"`
	Scene     *Scene `gorm:"foreignKey:SceneID" json:"scene,omitempty"`

	StartTime string `gorm:"type:varchar(5);not null" json:"start_time"` // HH:MM
	EndTime   string `gorm:"type:varchar(5);not null" json:"end_time"`   // HH:MM

	// CSV of three-letter lowercase tokens; empty/null means "any".
	Weekdays string `gorm:"type:varchar(64)" json:"weekdays,omitempty"`
	Months   string `gorm:"type:varchar(64)" json:"months,omitempty"`

	Volume int `gorm:"not null;default:70" json:"volume"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Routine) TableName() string {
	return "routines"
}

// PlayHistory is an append-only observer record of tracks the engine
// started. It is populated from NotificationHub emissions; it never gates or
// is read by any playback decision.
type PlayHistory struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	SceneID   string    `gorm:"type:uuid;index" json:"scene_id,omitempty"`
	TrackPath string    `gorm:"not null" json:"track_path"`
	StartedAt time.Time `gorm:"index" json:"started_at"`
}

// TableName returns the table name for GORM.
func (PlayHistory) TableName() string {
	return "play_history"
}
