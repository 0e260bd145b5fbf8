/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseBackend selects the gorm dialector used for persisted scenes/routines.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process-level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int

	DBBackend DatabaseBackend
	DBDSN     string

	// SceneRoot is the parent directory under which scene subdirectories live.
	SceneRoot string

	SchedulerInterval    time.Duration
	SoftStopTimeout      time.Duration
	CrossfadeSeconds      float64
	SameStartGuardSeconds float64
	PromotionGuardWindow  time.Duration

	MetricsBind string
}

// Load reads environment variables, applies defaults, and returns the config.
func Load() *Config {
	return &Config{
		Environment: getEnvAny([]string{"MEADOWCAST_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"MEADOWCAST_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"MEADOWCAST_HTTP_PORT"}, 8080),

		DBBackend: DatabaseBackend(getEnvAny([]string{"MEADOWCAST_DB_BACKEND"}, string(DatabaseSQLite))),
		DBDSN:     getEnvAny([]string{"MEADOWCAST_DB_DSN"}, "./meadowcast.db"),

		SceneRoot: getEnvAny([]string{"MEADOWCAST_SCENE_ROOT"}, "./scenes"),

		SchedulerInterval:     time.Duration(getEnvIntAny([]string{"MEADOWCAST_SCHEDULER_INTERVAL_SECONDS"}, 10)) * time.Second,
		SoftStopTimeout:       time.Duration(getEnvIntAny([]string{"MEADOWCAST_SOFT_STOP_TIMEOUT_SECONDS"}, 300)) * time.Second,
		CrossfadeSeconds:      getEnvFloatAny([]string{"MEADOWCAST_CROSSFADE_SECONDS"}, 6.0),
		SameStartGuardSeconds: getEnvFloatAny([]string{"MEADOWCAST_SAME_START_GUARD_SECONDS"}, 1.5),
		PromotionGuardWindow:  time.Duration(getEnvIntAny([]string{"MEADOWCAST_PROMOTION_GUARD_MS"}, 350)) * time.Millisecond,

		MetricsBind: getEnvAny([]string{"MEADOWCAST_METRICS_BIND"}, "127.0.0.1:9000"),
	}
}

func getEnvAny(names []string, fallback string) string {
	for _, name := range names {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return v
		}
	}
	return fallback
}

func getEnvIntAny(names []string, fallback int) int {
	raw := getEnvAny(names, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvFloatAny(names []string, fallback float64) float64 {
	raw := getEnvAny(names, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fallback
	}
	return v
}
