/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/friendsincode/meadowcast/internal/config"
	"github.com/friendsincode/meadowcast/internal/db"
	"github.com/friendsincode/meadowcast/internal/models"
)

var scanRoot string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Register every immediate subdirectory of --root as a scene",
	Long: `scan walks one level of --root and inserts a Scene row (by directory
name) for each subdirectory not yet registered, so routines can reference it immediately.
It does not touch subdirectories it has already registered.

Examples:
  meadowcastd scan --root ./scenes
  meadowcastd scan --root /srv/meadowcast/scenes`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVar(&scanRoot, "root", "", "Parent directory of scene subdirectories (required)")
	scanCmd.MarkFlagRequired("root")
}

func runScan(cmd *cobra.Command, args []string) error {
	entries, err := os.ReadDir(scanRoot)
	if err != nil {
		return fmt.Errorf("read scan root: %w", err)
	}

	cfg := config.Load()
	database, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close(database)

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	var created, skipped int
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name()[0] == '.' {
			continue
		}

		name := entry.Name()
		path := filepath.Join(scanRoot, name)

		exists, err := sceneExists(database, name)
		if err != nil {
			return fmt.Errorf("check existing scene %q: %w", name, err)
		}
		if exists {
			skipped++
			continue
		}

		scene := models.Scene{ID: uuid.NewString(), Name: name, Path: path}
		if err := database.Create(&scene).Error; err != nil {
			return fmt.Errorf("create scene %q: %w", name, err)
		}
		created++
		fmt.Printf("  registered %s -> %s\n", name, path)
	}

	fmt.Printf("\nScan complete: %d created, %d already registered\n", created, skipped)
	return nil
}

func sceneExists(database *gorm.DB, name string) (bool, error) {
	var count int64
	if err := database.Model(&models.Scene{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
