// Package metrics holds the Prometheus collectors for the simulation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ticks
	TicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "senro_ticks_total",
		Help: "Total number of simulation ticks applied to a train",
	}, []string{"train"})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "senro_tick_duration_seconds",
		Help:    "Time taken to apply one tick to a train",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10), // 1µs to ~262ms
	})

	// Navigation
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "senro_transitions_total",
		Help: "Total number of segment transitions, by deciding rule",
	}, []string{"train", "rule"})

	SignalWaitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "senro_signal_waits_total",
		Help: "Total number of times a train started waiting at a red signal",
	}, []string{"train", "signal"})

	EndOfLineTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "senro_end_of_line_total",
		Help: "Total number of times a train ran out of track",
	}, []string{"train"})

	DiagnosticsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "senro_diagnostics_total",
		Help: "Total number of layout inconsistencies found while moving trains",
	}, []string{"type"})

	// Interlocking
	SwitchTogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "senro_switch_toggles_total",
		Help: "Total number of switch toggles",
	}, []string{"switch"})

	SignalTogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "senro_signal_toggles_total",
		Help: "Total number of signal aspect changes",
	}, []string{"signal"})

	// Runs
	RunningTrains = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "senro_running_trains",
		Help: "Current number of trains with a running simulation loop",
	})
)
