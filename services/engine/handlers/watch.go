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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/evolvelab/genesys/services/engine/evolve"
)

var watchUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
}

// watchPingInterval keeps idle watch connections alive between steps.
const watchPingInterval = 30 * time.Second

// WatchRun handles GET /runs/:runId/watch: upgrades to a WebSocket and
// pushes a RunState snapshot after every committed generation step. The
// feed is best-effort — a slow client misses intermediate states rather
// than stalling the run. The first message is the current state.
func WatchRun(mgr *evolve.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		runID := c.Param("runId")

		// Reject unknown runs before upgrading so the client gets a
		// plain 404 instead of a dropped socket.
		state, err := mgr.Get(runID)
		if err != nil {
			writeManagerError(c, err)
			return
		}

		updates, cancel, err := mgr.Watch(runID)
		if err != nil {
			writeManagerError(c, err)
			return
		}
		defer cancel()

		ws, err := watchUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("Failed to upgrade watch websocket", "run_id", runID, "error", err)
			return
		}
		defer ws.Close()

		if err := ws.WriteJSON(state); err != nil {
			return
		}

		// Reader goroutine: surfaces client disconnects.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(watchPingInterval)
		defer ticker.Stop()

		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				if err := ws.WriteJSON(update); err != nil {
					slog.Warn("Failed to write watch update", "run_id", runID, "error", err)
					return
				}
			case <-ticker.C:
				if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}
}
