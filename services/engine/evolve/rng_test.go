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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// SplitMix64 Reference Vectors
// =============================================================================

// TestRand_ReferenceVectors pins the raw output stream against the
// published SplitMix64 sequences. If these break, every recorded run in
// the wild becomes irreproducible.
func TestRand_ReferenceVectors(t *testing.T) {
	t.Run("seed 0", func(t *testing.T) {
		rng := NewRand(0)
		want := []uint64{
			0xE220A8397B1DCDAF,
			0x6E789E6AA1B965F4,
			0x06C45D188009454F,
		}
		for i, w := range want {
			if got := rng.Uint64(); got != w {
				t.Errorf("output %d = %#016x, want %#016x", i, got, w)
			}
		}
	})

	t.Run("seed 1", func(t *testing.T) {
		rng := NewRand(1)
		want := []uint64{
			0x910A2DEC89025CC1,
			0xBEEB8DA1658EEC67,
			0xF893A2EEFB32555E,
		}
		for i, w := range want {
			if got := rng.Uint64(); got != w {
				t.Errorf("output %d = %#016x, want %#016x", i, got, w)
			}
		}
	})
}

// =============================================================================
// Derived Draws
// =============================================================================

func TestRand_Float64Range(t *testing.T) {
	rng := NewRand(7)
	for i := 0; i < 10_000; i++ {
		f := rng.Float64()
		if f < 0 || f >= 1 {
			t.Fatalf("Float64() = %v outside [0, 1)", f)
		}
	}
}

func TestRand_Float64KnownValue(t *testing.T) {
	// First draw for seed 42, computed from the reference sequence.
	rng := NewRand(42)
	assert.InDelta(t, 0.7415648787718233, rng.Float64(), 1e-15)
}

func TestRand_IntNBounds(t *testing.T) {
	rng := NewRand(99)
	for _, n := range []int{1, 2, 3, 12, 64, 5000} {
		for i := 0; i < 2000; i++ {
			v := rng.IntN(n)
			if v < 0 || v >= n {
				t.Fatalf("IntN(%d) = %d out of range", n, v)
			}
		}
	}
}

func TestRand_IntNPanicsOnNonPositive(t *testing.T) {
	rng := NewRand(1)
	assert.Panics(t, func() { rng.IntN(0) })
	assert.Panics(t, func() { rng.IntN(-3) })
}

func TestRand_RangeBounds(t *testing.T) {
	rng := NewRand(5)
	for i := 0; i < 2000; i++ {
		v := rng.Range(2, 17)
		if v < 2 || v >= 17 {
			t.Fatalf("Range(2, 17) = %d out of range", v)
		}
	}
}

func TestRand_FloatRangeBounds(t *testing.T) {
	rng := NewRand(5)
	for i := 0; i < 2000; i++ {
		v := rng.FloatRange(-10, 10)
		if v < -10 || v >= 10 {
			t.Fatalf("FloatRange(-10, 10) = %v out of range", v)
		}
	}
}

func TestRand_BoolEdges(t *testing.T) {
	rng := NewRand(3)
	for i := 0; i < 100; i++ {
		if rng.Bool(0) {
			t.Fatal("Bool(0) returned true")
		}
	}
	for i := 0; i < 100; i++ {
		if !rng.Bool(1) {
			t.Fatal("Bool(1) returned false")
		}
	}
}

// TestRand_NormalDrawCount verifies Normal consumes exactly two raw draws,
// which the draw-accounting contract depends on.
func TestRand_NormalDrawCount(t *testing.T) {
	a := NewRand(11)
	b := NewRand(11)

	a.Normal(0, 1)
	b.Uint64()
	b.Uint64()

	require.Equal(t, b.State(), a.State(), "Normal must consume exactly 2 draws")
}

func TestRand_NormalDistribution(t *testing.T) {
	rng := NewRand(2024)
	const n = 50_000
	var sum, sumSq float64
	for i := 0; i < n; i++ {
		v := rng.Normal(3, 2)
		sum += v
		sumSq += v * v
	}
	mean := sum / n
	variance := sumSq/n - mean*mean

	assert.InDelta(t, 3.0, mean, 0.05)
	assert.InDelta(t, 4.0, variance, 0.15)
}

// =============================================================================
// Determinism
// =============================================================================

func TestRand_Determinism(t *testing.T) {
	a := NewRand(123456789)
	b := NewRand(123456789)
	for i := 0; i < 1000; i++ {
		if av, bv := a.Uint64(), b.Uint64(); av != bv {
			t.Fatalf("streams diverged at draw %d: %d vs %d", i, av, bv)
		}
	}
}

func TestRand_SnapshotRestore(t *testing.T) {
	rng := NewRand(55)
	rng.Uint64()
	rng.Normal(0, 1)

	snapshot := rng.State()
	first := []uint64{rng.Uint64(), rng.Uint64(), rng.Uint64()}

	rng.Restore(snapshot)
	second := []uint64{rng.Uint64(), rng.Uint64(), rng.Uint64()}

	require.Equal(t, first, second, "restored stream must replay identically")
}
