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
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/evolvelab/genesys/services/engine/datatypes"
	"github.com/evolvelab/genesys/services/engine/observability"
)

var (
	// ErrUnknownRun is returned for operations on a run id not in the
	// registry. Handlers map it to 404.
	ErrUnknownRun = errors.New("unknown run")

	// ErrInvalidConfig wraps config validation failures. Handlers map it
	// to 400. No run is stored when it is returned.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrBadArgument wraps bad operation arguments (e.g. steps < 1).
	// Handlers map it to 400.
	ErrBadArgument = errors.New("bad argument")
)

// =============================================================================
// Registry entry
// =============================================================================

// entry pairs a run with the mutex that serializes every operation on it.
// The mutex is held for the full duration of an operation — a step is
// atomic with respect to observers, so a get sees only pre- or post-step
// states.
type entry struct {
	mu       sync.Mutex
	run      *Run
	watchers map[int]chan datatypes.RunState
	nextID   int
}

func (en *entry) broadcast(state datatypes.RunState) {
	for _, ch := range en.watchers {
		// Non-blocking: a slow watcher misses states rather than
		// stalling the step that produced them.
		select {
		case ch <- state:
		default:
		}
	}
}

// =============================================================================
// Manager
// =============================================================================

// Manager is the process-wide registry of runs, keyed by run id.
//
// # Description
//
// Manager owns run creation, stepping, and inspection. Operations on
// different runs proceed in parallel; operations on the same run are
// serialized by that run's mutex. Entries are never removed — runs live
// until the process exits.
//
// # Thread Safety
//
// Safe for concurrent use. The registry map is guarded by an RWMutex
// (concurrent lookups, exclusive inserts); each entry carries its own
// operation mutex.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*entry
	engine  *Engine
}

// NewManager creates a manager whose runs are scored by the given scorer.
func NewManager(scorer Scorer) *Manager {
	return &Manager{
		entries: make(map[string]*entry),
		engine:  NewEngine(scorer),
	}
}

// Create validates the config, builds a run, scores generation 0, and
// registers the run under a fresh id.
//
// # Outputs
//
//   - datatypes.RunState: the post-initialization snapshot
//   - error: ErrInvalidConfig (wrapped) on validation failure, or the
//     scorer's error (e.g. fitness.ErrUnavailable); nothing is stored then
func (m *Manager) Create(ctx context.Context, cfg datatypes.RunConfig) (datatypes.RunState, error) {
	if err := cfg.Validate(); err != nil {
		return datatypes.RunState{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	run := NewRun(uuid.NewString(), cfg)
	if err := m.engine.Initialize(ctx, run); err != nil {
		return datatypes.RunState{}, err
	}

	en := &entry{run: run, watchers: make(map[int]chan datatypes.RunState)}
	m.mu.Lock()
	m.entries[run.ID] = en
	m.mu.Unlock()

	if mt := observability.DefaultMetrics; mt != nil {
		mt.RunsCreatedTotal.WithLabelValues(cfg.Task).Inc()
	}
	return run.State(), nil
}

// Get returns a snapshot of the run's public state.
func (m *Manager) Get(id string) (datatypes.RunState, error) {
	en, err := m.lookup(id)
	if err != nil {
		return datatypes.RunState{}, err
	}
	en.mu.Lock()
	defer en.mu.Unlock()
	return en.run.State(), nil
}

// Step performs one generation step. A completed run is a no-op returning
// its current state. On a scoring error the run is left exactly as it was.
func (m *Manager) Step(ctx context.Context, id string) (datatypes.RunState, error) {
	return m.advance(ctx, id, 1)
}

// Advance performs up to steps generation steps, stopping early on
// completion. steps must be >= 1.
func (m *Manager) Advance(ctx context.Context, id string, steps int) (datatypes.RunState, error) {
	if steps < 1 || steps > datatypes.MaxAdvance {
		return datatypes.RunState{}, fmt.Errorf("%w: steps must be in [1, %d]", ErrBadArgument, datatypes.MaxAdvance)
	}
	return m.advance(ctx, id, steps)
}

// History returns the run's full ordered history.
func (m *Manager) History(id string) (datatypes.RunHistoryResponse, error) {
	en, err := m.lookup(id)
	if err != nil {
		return datatypes.RunHistoryResponse{}, err
	}
	en.mu.Lock()
	defer en.mu.Unlock()
	return datatypes.RunHistoryResponse{
		RunID:  en.run.ID,
		Task:   en.run.Config.Task,
		Points: en.run.History(),
	}, nil
}

// Watch subscribes to the run's state feed. The returned channel receives
// a snapshot after every committed step (best-effort: slow consumers miss
// states, they are never blocked on). Cancel unsubscribes and closes the
// channel.
func (m *Manager) Watch(id string) (<-chan datatypes.RunState, func(), error) {
	en, err := m.lookup(id)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan datatypes.RunState, 8)
	en.mu.Lock()
	watchID := en.nextID
	en.nextID++
	en.watchers[watchID] = ch
	en.mu.Unlock()

	if mt := observability.DefaultMetrics; mt != nil {
		mt.ActiveWatchers.Inc()
	}

	cancel := func() {
		en.mu.Lock()
		_, ok := en.watchers[watchID]
		if ok {
			delete(en.watchers, watchID)
			close(ch)
		}
		en.mu.Unlock()
		if mt := observability.DefaultMetrics; ok && mt != nil {
			mt.ActiveWatchers.Dec()
		}
	}
	return ch, cancel, nil
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	en, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownRun
	}
	return en, nil
}

func (m *Manager) advance(ctx context.Context, id string, steps int) (datatypes.RunState, error) {
	en, err := m.lookup(id)
	if err != nil {
		return datatypes.RunState{}, err
	}

	en.mu.Lock()
	defer en.mu.Unlock()

	for i := 0; i < steps && en.run.Status() == datatypes.StatusRunning; i++ {
		if err := m.engine.Step(ctx, en.run); err != nil {
			return datatypes.RunState{}, err
		}
		en.broadcast(en.run.State())
	}
	return en.run.State(), nil
}
