// Copyright (C) 2025 Evolvelab (oss@evolvelab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"github.com/evolvelab/genesys/services/engine/datatypes"
	"github.com/evolvelab/genesys/services/engine/evolve"
	"github.com/evolvelab/genesys/services/engine/fitness"
)

var runsTracer = otel.Tracer("genesys.engine.handlers")

// writeManagerError maps run-manager errors onto HTTP status codes.
func writeManagerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, evolve.ErrUnknownRun):
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run"})
	case errors.Is(err, evolve.ErrInvalidConfig), errors.Is(err, evolve.ErrBadArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, fitness.ErrUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		slog.Error("Run operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// CreateRun handles POST /runs: validate the config, initialize generation
// 0 (scored through the evaluator), and return the new run id.
func CreateRun(mgr *evolve.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := runsTracer.Start(c.Request.Context(), "CreateRun")
		defer span.End()

		var cfg datatypes.RunConfig
		if err := c.ShouldBindJSON(&cfg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		state, err := mgr.Create(ctx, cfg)
		if err != nil {
			span.RecordError(err)
			writeManagerError(c, err)
			return
		}

		slog.Info("Run created",
			"run_id", state.RunID,
			"task", state.Task,
			"population", state.Population,
			"generations", state.Generations,
		)
		c.JSON(http.StatusOK, datatypes.RunCreatedResponse{RunID: state.RunID})
	}
}

// GetRun handles GET /runs/:runId.
func GetRun(mgr *evolve.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := mgr.Get(c.Param("runId"))
		if err != nil {
			writeManagerError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

// StepRun handles POST /runs/:runId/step. Stepping a completed run is a
// no-op that returns the current state.
func StepRun(mgr *evolve.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := runsTracer.Start(c.Request.Context(), "StepRun")
		defer span.End()

		state, err := mgr.Step(ctx, c.Param("runId"))
		if err != nil {
			span.RecordError(err)
			writeManagerError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

// AdvanceRun handles POST /runs/:runId/advance with body {"steps": N}.
// Performs up to N steps, stopping early when the run completes.
func AdvanceRun(mgr *evolve.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := runsTracer.Start(c.Request.Context(), "AdvanceRun")
		defer span.End()

		var req datatypes.RunAdvanceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		state, err := mgr.Advance(ctx, c.Param("runId"), int(req.Steps))
		if err != nil {
			span.RecordError(err)
			writeManagerError(c, err)
			return
		}

		slog.Info("Run advanced",
			"run_id", state.RunID,
			"steps", req.Steps,
			"generation", state.Generation,
			"best_fitness", state.BestFitness,
		)
		c.JSON(http.StatusOK, state)
	}
}

// GetRunHistory handles GET /runs/:runId/history.
func GetRunHistory(mgr *evolve.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		history, err := mgr.History(c.Param("runId"))
		if err != nil {
			writeManagerError(c, err)
			return
		}
		c.JSON(http.StatusOK, history)
	}
}

// EvalGenome handles POST /genomes/eval: run one genome through the
// engine's local VM for validation and diagnostics. Invalid executions
// are reported in the body, not as HTTP errors — they are data here.
func EvalGenome() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.GenomeEvalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.Genome.Len() == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "genome must hold at least one instruction"})
			return
		}

		outcome := evolve.RunGenome(req.Genome, req.X)
		if !outcome.Valid {
			c.JSON(http.StatusOK, datatypes.GenomeEvalResponse{Invalid: outcome.Invalid})
			return
		}
		c.JSON(http.StatusOK, datatypes.GenomeEvalResponse{Output: outcome.Output})
	}
}
