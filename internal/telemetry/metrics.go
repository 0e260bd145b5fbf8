/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics for the engine phase,
// scheduler activity, and crossfade counts.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors the engine and scheduler update.
type Metrics struct {
	EnginePhase     *prometheus.GaugeVec
	SchedulerTicks  prometheus.Counter
	SchedulerVerbs  *prometheus.CounterVec
	CrossfadesTotal prometheus.Counter
	CurrentVolume   prometheus.Gauge
	LiveConnections prometheus.Gauge
}

// New registers and returns the process's metric collectors.
func New() *Metrics {
	return &Metrics{
		EnginePhase: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "meadowcast_engine_phase",
			Help: "1 for the currently active phase (idle/playing/crossfade), 0 otherwise.",
		}, []string{"phase"}),
		SchedulerTicks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meadowcast_scheduler_ticks_total",
			Help: "Total number of scheduler poll ticks.",
		}),
		SchedulerVerbs: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "meadowcast_scheduler_verbs_total",
			Help: "Total verbs issued by the scheduler to the engine, by kind.",
		}, []string{"verb"}),
		CrossfadesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "meadowcast_crossfades_total",
			Help: "Total number of crossfades completed by the playback engine.",
		}),
		CurrentVolume: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meadowcast_current_volume",
			Help: "Current engine output volume, 0-100.",
		}),
		LiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "meadowcast_live_ws_connections",
			Help: "Number of connected /api/v1/live WebSocket clients.",
		}),
	}
}

// SetPhase records the currently active phase, zeroing the others.
func (m *Metrics) SetPhase(phase string) {
	for _, p := range []string{"idle", "playing", "crossfade"} {
		if p == phase {
			m.EnginePhase.WithLabelValues(p).Set(1)
		} else {
			m.EnginePhase.WithLabelValues(p).Set(0)
		}
	}
}

// Handler exposes the process's metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
