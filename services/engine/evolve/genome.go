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
	"github.com/evolvelab/genesys/services/engine/datatypes"
)

// =============================================================================
// Random construction
// =============================================================================

// RandomInstruction draws one instruction.
//
// Draw order: one Index over the opcode table, then per opcode — PUSH draws
// Normal(0, 2) for its constant, LOAD/STORE draw a register index, the rest
// draw nothing further.
func RandomInstruction(rng *Rand) datatypes.Instruction {
	op := datatypes.Opcodes[rng.Index(len(datatypes.Opcodes))]
	switch op {
	case datatypes.OpPush:
		return datatypes.InstrArg(op, rng.Normal(0, 2.0))
	case datatypes.OpLoad, datatypes.OpStore:
		return datatypes.InstrArg(op, float64(rng.IntN(datatypes.RegisterCount)))
	default:
		return datatypes.Instr(op)
	}
}

// RandomGenome draws a genome of uniform length in
// [MinGenomeLen, InitMaxLen], filling slots front to back.
func RandomGenome(rng *Rand) datatypes.Genome {
	n := rng.Range(datatypes.MinGenomeLen, datatypes.InitMaxLen+1)
	g := datatypes.Genome{Instructions: make([]datatypes.Instruction, n)}
	for i := range g.Instructions {
		g.Instructions[i] = RandomInstruction(rng)
	}
	return g
}

// =============================================================================
// Mutation
// =============================================================================

// mutationOpCount is the number of mutation operators chosen between.
const mutationOpCount = 4

// Mutate returns the offspring of g under per-genome mutation rate p.
//
// One Bool(p) gate draw decides whether g mutates at all; when it does,
// one Index(4) draw picks the operator. Operators that turn out to be
// no-ops (insert at the length cap, delete at the length floor) still
// consume their internal draws, keeping the stream position a pure
// function of the call sequence. g itself is never modified.
func Mutate(g datatypes.Genome, p float64, rng *Rand) datatypes.Genome {
	if !rng.Bool(p) {
		return g.Clone()
	}
	switch rng.Index(mutationOpCount) {
	case 0:
		return pointMutate(g, rng)
	case 1:
		return tweakConstant(g, rng)
	case 2:
		return insertInstruction(g, rng)
	default:
		return deleteInstruction(g, rng)
	}
}

// pointMutate replaces a random position with a fresh random instruction.
func pointMutate(g datatypes.Genome, rng *Rand) datatypes.Genome {
	out := g.Clone()
	idx := rng.Index(out.Len())
	out.Instructions[idx] = RandomInstruction(rng)
	return out
}

// tweakConstant adds Normal(0, 0.5) to the argument of a random PUSH.
// Falls back to pointMutate when the genome holds no PUSH.
func tweakConstant(g datatypes.Genome, rng *Rand) datatypes.Genome {
	var pushPositions []int
	for i, in := range g.Instructions {
		if in.Op == datatypes.OpPush {
			pushPositions = append(pushPositions, i)
		}
	}
	if len(pushPositions) == 0 {
		return pointMutate(g, rng)
	}
	out := g.Clone()
	idx := pushPositions[rng.Index(len(pushPositions))]
	*out.Instructions[idx].Arg += rng.Normal(0, 0.5)
	return out
}

// insertInstruction inserts a fresh random instruction at a random
// position (the end included). No-op when the genome is already at
// MaxGenomeLen; the position and instruction draws are consumed anyway.
func insertInstruction(g datatypes.Genome, rng *Rand) datatypes.Genome {
	idx := rng.Index(g.Len() + 1)
	in := RandomInstruction(rng)
	if g.Len() >= datatypes.MaxGenomeLen {
		return g.Clone()
	}
	out := g.Clone()
	out.Instructions = append(out.Instructions, datatypes.Instruction{})
	copy(out.Instructions[idx+1:], out.Instructions[idx:])
	out.Instructions[idx] = in
	return out
}

// deleteInstruction removes a random position. No-op when the genome is
// already at MinGenomeLen; the position draw is consumed anyway.
func deleteInstruction(g datatypes.Genome, rng *Rand) datatypes.Genome {
	idx := rng.Index(g.Len())
	if g.Len() <= datatypes.MinGenomeLen {
		return g.Clone()
	}
	out := g.Clone()
	out.Instructions = append(out.Instructions[:idx], out.Instructions[idx+1:]...)
	return out
}
