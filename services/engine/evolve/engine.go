// Copyright (C) 2025 Evolvelab (oss@evolvelab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package evolve

import (
	"context"
	"log/slog"

	"github.com/evolvelab/genesys/services/engine/datatypes"
	"github.com/evolvelab/genesys/services/engine/observability"
)

// tournamentSize is the number of distinct candidates sampled per
// selection slot. Capped at the population size for tiny populations.
const tournamentSize = 3

// Scorer scores a batch of genomes against a task. Implemented by
// fitness.Client; tests substitute local scorers.
type Scorer interface {
	Score(ctx context.Context, task string, genomes []datatypes.Genome) ([]float64, error)
}

// =============================================================================
// Run
// =============================================================================

// Run is one evolutionary trajectory: an immutable config, a deterministic
// random stream, the current population with its scores, the best-ever
// genome, and the per-generation history.
//
// # Thread Safety
//
// A Run is not self-synchronizing. The Manager serializes all access
// through a per-run mutex; nothing else may touch a Run.
type Run struct {
	ID     string
	Config datatypes.RunConfig

	rng        *Rand
	generation uint32
	population []datatypes.Genome
	fitness    []float64

	bestGenome  datatypes.Genome
	bestFitness float64

	history []datatypes.HistoryPoint
	status  datatypes.RunStatus
}

// NewRun allocates a run with its seeded stream. The population is built
// by Engine.Initialize, not here, so a failed initialization leaves
// nothing half-made behind.
func NewRun(id string, cfg datatypes.RunConfig) *Run {
	return &Run{
		ID:     id,
		Config: cfg,
		rng:    NewRand(cfg.Seed),
		status: datatypes.StatusRunning,
	}
}

// State returns the public snapshot of the run.
func (r *Run) State() datatypes.RunState {
	return datatypes.RunState{
		RunID:        r.ID,
		Generation:   r.generation,
		BestFitness:  r.bestFitness,
		BestGenome:   r.bestGenome.Clone(),
		Seed:         r.Config.Seed,
		Population:   r.Config.Population,
		Generations:  r.Config.Generations,
		MutationRate: r.Config.MutationRate,
		Task:         r.Config.Task,
		Status:       r.status,
	}
}

// History returns a copy of the recorded history points.
func (r *Run) History() []datatypes.HistoryPoint {
	out := make([]datatypes.HistoryPoint, len(r.history))
	copy(out, r.history)
	return out
}

// Status returns the run's lifecycle state.
func (r *Run) Status() datatypes.RunStatus {
	return r.status
}

// Population returns the live population slice. Exposed for tests that
// check population-level invariants; callers must not modify it.
func (r *Run) Population() []datatypes.Genome {
	return r.population
}

// RandState exposes the stream state for determinism tests.
func (r *Run) RandState() uint64 {
	return r.rng.State()
}

// =============================================================================
// Engine
// =============================================================================

// Engine runs the evolutionary loop for runs it is handed. It holds no
// per-run state of its own — just the scorer shared by every run.
type Engine struct {
	scorer Scorer
}

// NewEngine creates an engine backed by the given scorer.
func NewEngine(scorer Scorer) *Engine {
	return &Engine{scorer: scorer}
}

// Initialize builds and scores generation 0.
//
// Draw order: population genomes are drawn in slot order. The best genome
// is the argmax of the scores, ties to the lowest index, and history gets
// its first point at generation 0. On a scoring error the run is left
// exactly as NewRun made it.
func (e *Engine) Initialize(ctx context.Context, run *Run) error {
	snapshot := run.rng.State()
	size := int(run.Config.Population)
	population := make([]datatypes.Genome, size)
	for i := range population {
		population[i] = RandomGenome(run.rng)
	}

	scores, err := e.scorer.Score(ctx, run.Config.Task, population)
	if err != nil {
		run.rng.Restore(snapshot)
		return err
	}

	run.population = population
	run.fitness = scores
	best := argmax(scores)
	run.bestFitness = scores[best]
	run.bestGenome = population[best].Clone()
	run.history = append(run.history, datatypes.HistoryPoint{
		Generation:  0,
		BestFitness: run.bestFitness,
	})
	slog.Info("Run initialized",
		"run_id", run.ID,
		"task", run.Config.Task,
		"population", size,
		"best_fitness", run.bestFitness,
	)
	return nil
}

// Step advances the run by one generation. No-op when the run is already
// completed.
//
// The stream is consumed in a fixed order: the full selection sweep first
// (population-1 tournaments), then the per-offspring mutation draws in
// slot order. On a scoring error nothing is committed and the stream is
// rolled back, so a retried step replays identically.
func (e *Engine) Step(ctx context.Context, run *Run) error {
	if run.status == datatypes.StatusCompleted {
		return nil
	}

	snapshot := run.rng.State()
	size := int(run.Config.Population)

	parents := make([]int, size-1)
	for i := range parents {
		parents[i] = e.tournamentSelect(run)
	}

	offspring := make([]datatypes.Genome, 0, size)
	// Elitism: the best-ever genome survives unmutated as the first slot.
	offspring = append(offspring, run.bestGenome.Clone())
	for _, parent := range parents {
		offspring = append(offspring, Mutate(run.population[parent], run.Config.MutationRate, run.rng))
	}

	scores, err := e.scorer.Score(ctx, run.Config.Task, offspring)
	if err != nil {
		run.rng.Restore(snapshot)
		if m := observability.DefaultMetrics; m != nil {
			m.GenerationStepsTotal.WithLabelValues(string(observability.StepStatusFitnessUnavailable)).Inc()
		}
		return err
	}

	run.population = offspring
	run.fitness = scores
	run.generation++

	best := argmax(scores)
	if scores[best] > run.bestFitness {
		run.bestFitness = scores[best]
		run.bestGenome = offspring[best].Clone()
	}

	run.history = append(run.history, datatypes.HistoryPoint{
		Generation:  run.generation,
		BestFitness: run.bestFitness,
	})
	if run.generation >= run.Config.Generations {
		run.status = datatypes.StatusCompleted
	}

	if m := observability.DefaultMetrics; m != nil {
		m.GenerationStepsTotal.WithLabelValues(string(observability.StepStatusSuccess)).Inc()
	}
	slog.Info("Generation stepped",
		"run_id", run.ID,
		"generation", run.generation,
		"best_fitness", run.bestFitness,
		"status", run.status,
	)
	return nil
}

// Advance steps the run up to n times, stopping early on completion.
func (e *Engine) Advance(ctx context.Context, run *Run, n int) error {
	for i := 0; i < n && run.status == datatypes.StatusRunning; i++ {
		if err := e.Step(ctx, run); err != nil {
			return err
		}
	}
	return nil
}

// tournamentSelect samples distinct population indices and returns the one
// with the highest current fitness, ties to the lowest index.
//
// Duplicate index draws are redrawn (each redraw consumes a draw), so the
// candidates are always distinct. The tournament shrinks to the population
// size when the population is smaller than tournamentSize.
func (e *Engine) tournamentSelect(run *Run) int {
	size := len(run.population)
	k := tournamentSize
	if k > size {
		k = size
	}

	seen := make(map[int]bool, k)
	bestIdx := -1
	for len(seen) < k {
		idx := run.rng.Index(size)
		if seen[idx] {
			continue
		}
		seen[idx] = true
		if bestIdx < 0 ||
			run.fitness[idx] > run.fitness[bestIdx] ||
			(run.fitness[idx] == run.fitness[bestIdx] && idx < bestIdx) {
			bestIdx = idx
		}
	}
	return bestIdx
}

// argmax returns the index of the maximum value, ties to the lowest index.
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}
