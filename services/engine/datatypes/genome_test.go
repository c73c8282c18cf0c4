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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Instruction Tests
// =============================================================================

func TestInstruction_Validate(t *testing.T) {
	t.Run("push requires arg", func(t *testing.T) {
		assert.NoError(t, InstrArg(OpPush, 1.5).Validate())
		assert.Error(t, Instruction{Op: OpPush}.Validate())
	})

	t.Run("load and store require register index", func(t *testing.T) {
		assert.NoError(t, InstrArg(OpLoad, 0).Validate())
		assert.NoError(t, InstrArg(OpStore, 3).Validate())
		assert.Error(t, InstrArg(OpLoad, 4).Validate())
		assert.Error(t, InstrArg(OpStore, -1).Validate())
		assert.Error(t, InstrArg(OpLoad, 1.5).Validate())
		assert.Error(t, Instruction{Op: OpLoad}.Validate())
	})

	t.Run("argless ops reject args", func(t *testing.T) {
		for _, op := range []Opcode{OpAdd, OpSub, OpMul, OpDiv, OpDup, OpSwap, OpPop, OpHalt, OpNop} {
			assert.NoError(t, Instr(op).Validate(), "op %s", op)
			assert.Error(t, InstrArg(op, 1).Validate(), "op %s with arg", op)
		}
	})

	t.Run("unknown opcode", func(t *testing.T) {
		assert.Error(t, Instruction{Op: "JMP"}.Validate())
	})
}

func TestInstruction_JSONShape(t *testing.T) {
	out, err := json.Marshal([]Instruction{
		InstrArg(OpPush, 2.5),
		InstrArg(OpLoad, 1),
		Instr(OpAdd),
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`[{"op":"PUSH","arg":2.5},{"op":"LOAD","arg":1},{"op":"ADD","arg":null}]`,
		string(out))
}

func TestInstruction_JSONRoundTrip(t *testing.T) {
	original := Genome{Instructions: []Instruction{
		InstrArg(OpPush, -3.25),
		InstrArg(OpStore, 2),
		Instr(OpHalt),
	}}

	raw, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded Genome
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, original.Equal(decoded))
}

func TestRegisterIndex(t *testing.T) {
	for want := 0; want < RegisterCount; want++ {
		arg := float64(want)
		got, ok := RegisterIndex(&arg)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	for _, bad := range []float64{-1, 4, 0.5, 2.0001} {
		arg := bad
		_, ok := RegisterIndex(&arg)
		assert.False(t, ok, "arg %v", bad)
	}

	_, ok := RegisterIndex(nil)
	assert.False(t, ok)
}

// =============================================================================
// Genome Tests
// =============================================================================

func TestGenome_CloneIsIndependent(t *testing.T) {
	g := Genome{Instructions: []Instruction{
		InstrArg(OpPush, 1),
		Instr(OpHalt),
	}}
	clone := g.Clone()
	require.True(t, g.Equal(clone))

	*clone.Instructions[0].Arg = 99
	clone.Instructions[1].Op = OpNop

	assert.Equal(t, 1.0, *g.Instructions[0].Arg, "clone shares arg storage")
	assert.Equal(t, OpHalt, g.Instructions[1].Op)
}

func TestGenome_Equal(t *testing.T) {
	a := Genome{Instructions: []Instruction{InstrArg(OpPush, 1), Instr(OpHalt)}}
	b := Genome{Instructions: []Instruction{InstrArg(OpPush, 1), Instr(OpHalt)}}
	c := Genome{Instructions: []Instruction{InstrArg(OpPush, 2), Instr(OpHalt)}}
	d := Genome{Instructions: []Instruction{InstrArg(OpPush, 1)}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
}

func TestGenome_ValidateLengthBounds(t *testing.T) {
	tooShort := Genome{Instructions: []Instruction{Instr(OpNop)}}
	assert.Error(t, tooShort.Validate())

	ok := Genome{Instructions: []Instruction{Instr(OpNop), Instr(OpNop)}}
	assert.NoError(t, ok.Validate())

	long := Genome{Instructions: make([]Instruction, MaxGenomeLen+1)}
	for i := range long.Instructions {
		long.Instructions[i] = Instr(OpNop)
	}
	assert.Error(t, long.Validate())
}

// =============================================================================
// RunConfig Tests
// =============================================================================

func TestRunConfig_Validate(t *testing.T) {
	valid := RunConfig{
		Seed: 1, Population: 50, Generations: 200, MutationRate: 0.25, Task: "poly2",
	}
	require.NoError(t, valid.Validate())

	t.Run("population bounds", func(t *testing.T) {
		cfg := valid
		cfg.Population = 1
		assert.Error(t, cfg.Validate())
		cfg.Population = MaxPopulation + 1
		assert.Error(t, cfg.Validate())
	})

	t.Run("generations bounds", func(t *testing.T) {
		cfg := valid
		cfg.Generations = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("mutation rate bounds", func(t *testing.T) {
		cfg := valid
		cfg.MutationRate = -0.01
		assert.Error(t, cfg.Validate())
		cfg.MutationRate = 1.01
		assert.Error(t, cfg.Validate())
		cfg.MutationRate = 0
		assert.NoError(t, cfg.Validate())
		cfg.MutationRate = 1
		assert.NoError(t, cfg.Validate())
	})

	t.Run("task name", func(t *testing.T) {
		cfg := valid
		cfg.Task = ""
		assert.Error(t, cfg.Validate())
		cfg.Task = "Not A Task"
		assert.Error(t, cfg.Validate())
		cfg.Task = "sine_wave-2"
		assert.NoError(t, cfg.Validate())
	})
}

func TestRunAdvanceRequest_Validate(t *testing.T) {
	assert.Error(t, RunAdvanceRequest{Steps: 0}.Validate())
	assert.NoError(t, RunAdvanceRequest{Steps: 1}.Validate())
	assert.NoError(t, RunAdvanceRequest{Steps: MaxAdvance}.Validate())
	assert.Error(t, RunAdvanceRequest{Steps: MaxAdvance + 1}.Validate())
}
