// Copyright (C) 2025 Evolvelab (oss@evolvelab.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evolvelab/genesys/services/engine/evolve"
	"github.com/evolvelab/genesys/services/engine/handlers"
)

// SetupRoutes registers every engine endpoint on the router.
func SetupRoutes(router *gin.Engine, mgr *evolve.Manager, enableMetrics bool) {
	router.GET("/health", handlers.HealthCheck)
	if enableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	runs := router.Group("/runs")
	{
		runs.POST("", handlers.CreateRun(mgr))
		runs.GET("/:runId", handlers.GetRun(mgr))
		runs.POST("/:runId/step", handlers.StepRun(mgr))
		runs.POST("/:runId/advance", handlers.AdvanceRun(mgr))
		runs.GET("/:runId/history", handlers.GetRunHistory(mgr))
		runs.GET("/:runId/watch", handlers.WatchRun(mgr))
	}

	router.POST("/genomes/eval", handlers.EvalGenome())
}
