// Copyright (C) 2025 Evolvelab (oss@evolvelab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"fmt"

	"github.com/evolvelab/genesys/pkg/validation"
)

// =============================================================================
// Run configuration
// =============================================================================

// RunConfig is the request body for POST /runs. Immutable after creation.
type RunConfig struct {
	// Seed seeds the run's deterministic random stream. Two runs with the
	// same config (seed included) produce bit-identical trajectories.
	Seed uint64 `json:"seed"`

	// Population is the constant population size. Must be >= 2.
	Population uint32 `json:"population"`

	// Generations is the generation target; the run completes once its
	// generation counter reaches it. Must be >= 1.
	Generations uint32 `json:"generations"`

	// MutationRate is the per-genome mutation probability in [0, 1].
	MutationRate float64 `json:"mutation_rate"`

	// Task names the fitness task the evaluator scores against.
	Task string `json:"task"`
}

// Bounds mirror the create-run validation. Population and advance-steps
// caps exist to keep a single request's work bounded.
const (
	MaxPopulation  = 5000
	MaxGenerations = 1_000_000
	MaxAdvance     = 10_000
)

// Validate checks the config per the create-run contract. A config that
// fails validation is never stored.
func (c RunConfig) Validate() error {
	if c.Population < 2 || c.Population > MaxPopulation {
		return fmt.Errorf("population must be in [2, %d], got %d", MaxPopulation, c.Population)
	}
	if c.Generations < 1 || c.Generations > MaxGenerations {
		return fmt.Errorf("generations must be in [1, %d], got %d", MaxGenerations, c.Generations)
	}
	if c.MutationRate < 0 || c.MutationRate > 1 {
		return fmt.Errorf("mutation_rate must be in [0, 1], got %v", c.MutationRate)
	}
	if err := validation.ValidateTask(c.Task); err != nil {
		return err
	}
	return nil
}

// =============================================================================
// Run status
// =============================================================================

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	// StatusRunning means the run has not reached its generation target.
	StatusRunning RunStatus = "running"

	// StatusCompleted means generation >= generations target. Step and
	// advance become no-ops.
	StatusCompleted RunStatus = "completed"
)

// =============================================================================
// API responses
// =============================================================================

// RunCreatedResponse is the body of a successful POST /runs.
type RunCreatedResponse struct {
	RunID string `json:"run_id"`
}

// RunState is the public snapshot of a run.
type RunState struct {
	RunID        string    `json:"run_id"`
	Generation   uint32    `json:"generation"`
	BestFitness  float64   `json:"best_fitness"`
	BestGenome   Genome    `json:"best_genome"`
	Seed         uint64    `json:"seed"`
	Population   uint32    `json:"population"`
	Generations  uint32    `json:"generations"`
	MutationRate float64   `json:"mutation_rate"`
	Task         string    `json:"task"`
	Status       RunStatus `json:"status"`
}

// HistoryPoint records the best fitness observed at one generation.
type HistoryPoint struct {
	Generation  uint32  `json:"generation"`
	BestFitness float64 `json:"best_fitness"`
}

// RunHistoryResponse is the body of GET /runs/{id}/history. Points are in
// strictly increasing generation order, one per completed generation plus
// the initial point at generation 0.
type RunHistoryResponse struct {
	RunID  string         `json:"run_id"`
	Task   string         `json:"task"`
	Points []HistoryPoint `json:"points"`
}

// RunAdvanceRequest is the body of POST /runs/{id}/advance.
type RunAdvanceRequest struct {
	Steps uint32 `json:"steps"`
}

// Validate rejects zero and unreasonably large step counts.
func (r RunAdvanceRequest) Validate() error {
	if r.Steps < 1 || r.Steps > MaxAdvance {
		return fmt.Errorf("steps must be in [1, %d], got %d", MaxAdvance, r.Steps)
	}
	return nil
}

// GenomeEvalRequest is the body of POST /genomes/eval: run one genome
// through the engine's local VM for diagnostics.
type GenomeEvalRequest struct {
	Genome Genome  `json:"genome"`
	X      float64 `json:"x"`
}

// GenomeEvalResponse reports the VM outcome. Exactly one of Output and
// Invalid is meaningful: Invalid is the empty string on success.
type GenomeEvalResponse struct {
	Output  float64 `json:"output"`
	Invalid string  `json:"invalid,omitempty"`
}
