/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"github.com/friendsincode/meadowcast/internal/models"
	"gorm.io/gorm"
)

// Migrate brings the schema up to date via gorm AutoMigrate.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(
		&models.Scene{},
		&models.Routine{},
		&models.PlayHistory{},
	); err != nil {
		return fmt.Errorf("db: migrate: %w", err)
	}
	return nil
}
