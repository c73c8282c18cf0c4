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
	"fmt"
	"math"

	"github.com/evolvelab/genesys/services/engine/datatypes"
)

// =============================================================================
// Virtual machine
// =============================================================================

// VM execution limits. The fitness evaluator implements the same machine
// with the same limits; both sides must agree for scores to be meaningful.
const (
	// MaxSteps is the per-execution instruction budget.
	MaxSteps = 1024

	// MaxStack is the stack depth cap; pushing past it is invalid.
	MaxStack = 64

	// epsDivisor is the near-zero threshold below which DIV is invalid.
	epsDivisor = 1e-9
)

// VMConfig overrides the default execution limits. The zero value means
// defaults; tests use small step budgets to exercise the limit without
// thousand-instruction genomes.
type VMConfig struct {
	MaxSteps int
	MaxStack int
}

// Outcome is the result of running a genome: a finite output, or an
// invalid signal with a reason. Invalid genomes are not engine errors —
// the evaluator absorbs them into a worst-case fitness.
type Outcome struct {
	Output  float64
	Valid   bool
	Invalid string
}

func invalid(format string, args ...any) Outcome {
	return Outcome{Invalid: fmt.Sprintf(format, args...)}
}

// RunGenome executes the genome against scalar input x with default limits.
func RunGenome(g datatypes.Genome, x float64) Outcome {
	return RunGenomeConfig(g, x, VMConfig{})
}

// RunGenomeConfig executes the genome against scalar input x.
//
// Initial state: empty stack, r0 = x, r1..r3 = 0, pc 0, step 0. Each
// instruction costs one step. Execution ends at HALT or when pc passes the
// end of the program; the output is the top of the stack if non-empty,
// else r0. Underflow, overflow past the stack cap, a bad register index, a
// near-zero divisor, an exhausted step budget, a PUSH with no argument, or
// a non-finite output all make the execution invalid.
func RunGenomeConfig(g datatypes.Genome, x float64, cfg VMConfig) Outcome {
	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = MaxSteps
	}
	maxStack := cfg.MaxStack
	if maxStack <= 0 {
		maxStack = MaxStack
	}

	var registers [datatypes.RegisterCount]float64
	registers[0] = x
	stack := make([]float64, 0, 16)
	instructions := g.Instructions
	pc := 0
	steps := 0

	popTwo := func() (a, b float64, ok bool) {
		if len(stack) < 2 {
			return 0, 0, false
		}
		b = stack[len(stack)-1]
		a = stack[len(stack)-2]
		stack = stack[:len(stack)-2]
		return a, b, true
	}

	for pc < len(instructions) {
		if steps >= maxSteps {
			return invalid("step budget exceeded")
		}
		in := instructions[pc]
		steps++

		switch in.Op {
		case datatypes.OpPush:
			if in.Arg == nil {
				return invalid("PUSH missing argument")
			}
			if len(stack) >= maxStack {
				return invalid("stack overflow")
			}
			stack = append(stack, *in.Arg)

		case datatypes.OpLoad:
			idx, ok := datatypes.RegisterIndex(in.Arg)
			if !ok {
				return invalid("invalid register index")
			}
			if len(stack) >= maxStack {
				return invalid("stack overflow")
			}
			stack = append(stack, registers[idx])

		case datatypes.OpStore:
			idx, ok := datatypes.RegisterIndex(in.Arg)
			if !ok {
				return invalid("invalid register index")
			}
			if len(stack) == 0 {
				return invalid("stack underflow")
			}
			registers[idx] = stack[len(stack)-1]
			stack = stack[:len(stack)-1]

		case datatypes.OpAdd:
			a, b, ok := popTwo()
			if !ok {
				return invalid("stack underflow")
			}
			stack = append(stack, a+b)

		case datatypes.OpSub:
			a, b, ok := popTwo()
			if !ok {
				return invalid("stack underflow")
			}
			stack = append(stack, a-b)

		case datatypes.OpMul:
			a, b, ok := popTwo()
			if !ok {
				return invalid("stack underflow")
			}
			stack = append(stack, a*b)

		case datatypes.OpDiv:
			a, b, ok := popTwo()
			if !ok {
				return invalid("stack underflow")
			}
			if math.Abs(b) < epsDivisor {
				return invalid("division by near-zero")
			}
			stack = append(stack, a/b)

		case datatypes.OpDup:
			if len(stack) == 0 {
				return invalid("stack underflow")
			}
			if len(stack) >= maxStack {
				return invalid("stack overflow")
			}
			stack = append(stack, stack[len(stack)-1])

		case datatypes.OpSwap:
			if len(stack) < 2 {
				return invalid("stack underflow")
			}
			stack[len(stack)-1], stack[len(stack)-2] = stack[len(stack)-2], stack[len(stack)-1]

		case datatypes.OpPop:
			if len(stack) == 0 {
				return invalid("stack underflow")
			}
			stack = stack[:len(stack)-1]

		case datatypes.OpHalt:
			pc = len(instructions)
			continue

		case datatypes.OpNop:
			// no effect

		default:
			return invalid("unknown opcode %q", in.Op)
		}

		pc++
	}

	output := registers[0]
	if len(stack) > 0 {
		output = stack[len(stack)-1]
	}
	if math.IsNaN(output) || math.IsInf(output, 0) {
		return invalid("non-finite output")
	}
	return Outcome{Output: output, Valid: true}
}
