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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolvelab/genesys/services/engine/datatypes"
)

// =============================================================================
// Create
// =============================================================================

func TestManager_CreateAndGet(t *testing.T) {
	mgr := NewManager(&localScorer{})

	state, err := mgr.Create(context.Background(), testConfig())
	require.NoError(t, err)
	require.NotEmpty(t, state.RunID)
	assert.Equal(t, uint32(0), state.Generation)
	assert.Equal(t, datatypes.StatusRunning, state.Status)

	got, err := mgr.Get(state.RunID)
	require.NoError(t, err)
	assert.Equal(t, state, got)
}

func TestManager_CreateRejectsInvalidConfig(t *testing.T) {
	mgr := NewManager(&localScorer{})

	cases := []struct {
		name string
		mod  func(*datatypes.RunConfig)
	}{
		{"population too small", func(c *datatypes.RunConfig) { c.Population = 1 }},
		{"zero generations", func(c *datatypes.RunConfig) { c.Generations = 0 }},
		{"negative mutation rate", func(c *datatypes.RunConfig) { c.MutationRate = -0.1 }},
		{"mutation rate above one", func(c *datatypes.RunConfig) { c.MutationRate = 1.5 }},
		{"empty task", func(c *datatypes.RunConfig) { c.Task = "" }},
		{"malformed task", func(c *datatypes.RunConfig) { c.Task = "Poly 2!" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mod(&cfg)
			_, err := mgr.Create(context.Background(), cfg)
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestManager_CreateStoresNothingOnScorerFailure(t *testing.T) {
	scorer := &failingScorer{failAfter: 0}
	mgr := NewManager(scorer)

	_, err := mgr.Create(context.Background(), testConfig())
	require.ErrorIs(t, err, errScorerDown)

	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	assert.Empty(t, mgr.entries)
}

// =============================================================================
// Unknown runs and bad arguments
// =============================================================================

func TestManager_UnknownRun(t *testing.T) {
	mgr := NewManager(&localScorer{})

	_, err := mgr.Get("does-not-exist")
	assert.ErrorIs(t, err, ErrUnknownRun)

	_, err = mgr.Step(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrUnknownRun)

	_, err = mgr.History("does-not-exist")
	assert.ErrorIs(t, err, ErrUnknownRun)

	_, _, err = mgr.Watch("does-not-exist")
	assert.ErrorIs(t, err, ErrUnknownRun)
}

func TestManager_AdvanceRejectsBadSteps(t *testing.T) {
	mgr := NewManager(&localScorer{})
	state, err := mgr.Create(context.Background(), testConfig())
	require.NoError(t, err)

	_, err = mgr.Advance(context.Background(), state.RunID, 0)
	assert.ErrorIs(t, err, ErrBadArgument)

	_, err = mgr.Advance(context.Background(), state.RunID, -5)
	assert.ErrorIs(t, err, ErrBadArgument)

	_, err = mgr.Advance(context.Background(), state.RunID, datatypes.MaxAdvance+1)
	assert.ErrorIs(t, err, ErrBadArgument)
}

// =============================================================================
// Stepping through the manager
// =============================================================================

func TestManager_StepAndHistory(t *testing.T) {
	mgr := NewManager(&localScorer{})
	created, err := mgr.Create(context.Background(), testConfig())
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		state, err := mgr.Step(context.Background(), created.RunID)
		require.NoError(t, err)
		assert.Equal(t, uint32(i), state.Generation)
	}

	history, err := mgr.History(created.RunID)
	require.NoError(t, err)
	assert.Equal(t, created.RunID, history.RunID)
	assert.Equal(t, "poly2", history.Task)
	require.Len(t, history.Points, 6)
	for i, point := range history.Points {
		assert.Equal(t, uint32(i), point.Generation)
	}
}

func TestManager_AdvanceMatchesRepeatedStep(t *testing.T) {
	cfg := testConfig()

	mgrA := NewManager(&localScorer{})
	a, err := mgrA.Create(context.Background(), cfg)
	require.NoError(t, err)
	var lastA datatypes.RunState
	for i := 0; i < 10; i++ {
		lastA, err = mgrA.Step(context.Background(), a.RunID)
		require.NoError(t, err)
	}

	mgrB := NewManager(&localScorer{})
	b, err := mgrB.Create(context.Background(), cfg)
	require.NoError(t, err)
	lastB, err := mgrB.Advance(context.Background(), b.RunID, 10)
	require.NoError(t, err)

	// Run ids are random; everything else must match exactly.
	lastA.RunID = ""
	lastB.RunID = ""
	assert.Equal(t, lastA, lastB)
}

func TestManager_StepOnCompletedRunIsNoOp(t *testing.T) {
	cfg := testConfig()
	cfg.Generations = 2
	mgr := NewManager(&localScorer{})
	created, err := mgr.Create(context.Background(), cfg)
	require.NoError(t, err)

	final, err := mgr.Advance(context.Background(), created.RunID, 10)
	require.NoError(t, err)
	require.Equal(t, datatypes.StatusCompleted, final.Status)

	again, err := mgr.Step(context.Background(), created.RunID)
	require.NoError(t, err)
	assert.Equal(t, final, again)
}

// =============================================================================
// Concurrency
// =============================================================================

func TestManager_ConcurrentRunsProgressIndependently(t *testing.T) {
	mgr := NewManager(&localScorer{})

	ids := make([]string, 8)
	for i := range ids {
		cfg := testConfig()
		cfg.Seed = uint64(i + 1)
		state, err := mgr.Create(context.Background(), cfg)
		require.NoError(t, err)
		ids[i] = state.RunID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(runID string) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				if _, err := mgr.Step(context.Background(), runID); err != nil {
					t.Errorf("step %s: %v", runID, err)
					return
				}
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		state, err := mgr.Get(id)
		require.NoError(t, err)
		assert.Equal(t, uint32(10), state.Generation)
	}
}

func TestManager_GetNeverObservesPartialStep(t *testing.T) {
	mgr := NewManager(&localScorer{})
	created, err := mgr.Create(context.Background(), testConfig())
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			_, _ = mgr.Step(context.Background(), created.RunID)
		}
	}()

	for i := 0; i < 200; i++ {
		state, err := mgr.Get(created.RunID)
		require.NoError(t, err)
		history, err := mgr.History(created.RunID)
		require.NoError(t, err)
		// The stepper may commit between the two snapshots, but each
		// snapshot on its own is consistent: history holds one point per
		// committed generation, in order, and never lags the state read
		// taken before it.
		require.GreaterOrEqual(t, len(history.Points), int(state.Generation)+1)
		for j, point := range history.Points {
			require.Equal(t, uint32(j), point.Generation)
		}
	}
	<-done
}

// =============================================================================
// Watch
// =============================================================================

func TestManager_WatchReceivesPostStepStates(t *testing.T) {
	mgr := NewManager(&localScorer{})
	created, err := mgr.Create(context.Background(), testConfig())
	require.NoError(t, err)

	updates, cancel, err := mgr.Watch(created.RunID)
	require.NoError(t, err)
	defer cancel()

	_, err = mgr.Advance(context.Background(), created.RunID, 3)
	require.NoError(t, err)

	for want := uint32(1); want <= 3; want++ {
		state := <-updates
		assert.Equal(t, want, state.Generation)
	}
}

func TestManager_WatchCancelCloses(t *testing.T) {
	mgr := NewManager(&localScorer{})
	created, err := mgr.Create(context.Background(), testConfig())
	require.NoError(t, err)

	updates, cancel, err := mgr.Watch(created.RunID)
	require.NoError(t, err)
	cancel()

	_, ok := <-updates
	assert.False(t, ok, "channel must be closed after cancel")

	// Cancel is idempotent.
	cancel()
}
