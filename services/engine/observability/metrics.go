// Copyright (C) 2025 Evolvelab (oss@evolvelab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides metrics and instrumentation for the engine.
//
// # Description
//
// This package implements Prometheus metrics for monitoring evolutionary
// runs. Metrics include:
//   - Run counters (created, by task)
//   - Generation step counters (by outcome)
//   - Genomes sent to the fitness evaluator
//   - Fitness request counters and latency histograms
//   - Active watch-subscriber gauge
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "genesys"

// Subsystem for engine metrics
const engineSubsystem = "engine"

// EngineMetrics holds all Prometheus metrics for the engine service.
//
// # Description
//
// Provides counters, histograms, and gauges for monitoring run progress
// and evaluator traffic. Initialize once at startup via InitMetrics().
//
// # Thread Safety
//
// All operations are thread-safe.
type EngineMetrics struct {
	// RunsCreatedTotal counts runs created, by task.
	// Labels: task
	RunsCreatedTotal *prometheus.CounterVec

	// GenerationStepsTotal counts generation steps, by outcome.
	// Labels: status (success, fitness_unavailable)
	GenerationStepsTotal *prometheus.CounterVec

	// GenomesEvaluatedTotal counts genomes sent to the fitness evaluator.
	GenomesEvaluatedTotal prometheus.Counter

	// FitnessRequestsTotal counts evaluator calls, by outcome.
	// Labels: status (success, transport_error, bad_status, bad_response)
	FitnessRequestsTotal *prometheus.CounterVec

	// FitnessLatencySeconds measures evaluator round-trip latency.
	FitnessLatencySeconds prometheus.Histogram

	// ActiveWatchers tracks currently connected run-watch subscribers.
	ActiveWatchers prometheus.Gauge
}

// DefaultMetrics is the singleton instance of EngineMetrics.
// Initialized by InitMetrics(); nil until then, and every call site checks.
var DefaultMetrics *EngineMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once at
// application startup.
//
// # Outputs
//
//   - *EngineMetrics: The initialized metrics instance.
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
//
// # Assumptions
//
//   - Prometheus default registry is available.
func InitMetrics() *EngineMetrics {
	DefaultMetrics = &EngineMetrics{
		RunsCreatedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "runs_created_total",
				Help:      "Total number of runs created, by task",
			},
			[]string{"task"},
		),

		GenerationStepsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "generation_steps_total",
				Help:      "Total generation steps attempted, by outcome",
			},
			[]string{"status"},
		),

		GenomesEvaluatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "genomes_evaluated_total",
				Help:      "Total genomes sent to the fitness evaluator",
			},
		),

		FitnessRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "fitness_requests_total",
				Help:      "Total fitness evaluator requests, by outcome",
			},
			[]string{"status"},
		),

		FitnessLatencySeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "fitness_latency_seconds",
				Help:      "Fitness evaluator round-trip latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
		),

		ActiveWatchers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: engineSubsystem,
				Name:      "active_watchers",
				Help:      "Number of currently connected run-watch subscribers",
			},
		),
	}

	return DefaultMetrics
}

// =============================================================================
// Label Values
// =============================================================================

// StepStatus labels GenerationStepsTotal.
type StepStatus string

const (
	// StepStatusSuccess marks a committed generation step.
	StepStatusSuccess StepStatus = "success"

	// StepStatusFitnessUnavailable marks a step aborted by an evaluator
	// outage. The run is left untouched.
	StepStatusFitnessUnavailable StepStatus = "fitness_unavailable"
)

// FitnessStatus labels FitnessRequestsTotal.
type FitnessStatus string

const (
	// FitnessStatusSuccess marks a well-formed evaluator response.
	FitnessStatusSuccess FitnessStatus = "success"

	// FitnessStatusTransportError marks a failed HTTP exchange.
	FitnessStatusTransportError FitnessStatus = "transport_error"

	// FitnessStatusBadStatus marks a non-2xx evaluator response.
	FitnessStatusBadStatus FitnessStatus = "bad_status"

	// FitnessStatusBadResponse marks an undecodable, length-mismatched,
	// or non-finite evaluator response.
	FitnessStatusBadResponse FitnessStatus = "bad_response"
)
