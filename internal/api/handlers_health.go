// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package api

import (
	"net/http"
	"time"

	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/logging"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/models"
)

// Overall status values of /status.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusStarting = "starting"
)

// Status reports the scheduler snapshot, table counts and store health.
// It always answers 200; probes should use /health/ready.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbConnected := h.store != nil && h.store.Ping(ctx) == nil

	var syncStatus models.SyncStatus
	if h.sync != nil {
		syncStatus = h.sync.Status()
	}

	health := models.HealthStatus{
		Status:            overallStatus(dbConnected, syncStatus),
		Version:           h.version,
		DatabaseConnected: dbConnected,
		SyncStatus:        syncStatus,
		Uptime:            time.Since(h.startTime).Seconds(),
	}

	if dbConnected {
		counts, err := h.counts.GetOrLoad(ctx, countsKey, h.store.Counts)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Table counts unavailable")
		} else {
			health.Counts = &counts
		}
	}

	respondJSON(w, http.StatusOK, &health)
}

func overallStatus(dbConnected bool, st models.SyncStatus) string {
	switch {
	case !dbConnected:
		return StatusDegraded
	case st.Cycles == 0:
		return StatusStarting
	case st.ConsecutiveFailures > 0:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

// HealthLive answers 200 while the process is alive, regardless of
// dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"alive":          true,
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady answers 200 when the store is reachable, 503 otherwise.
// Tracking server outages show up in /status, not here.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.store != nil && h.store.Ping(r.Context()) == nil

	code := http.StatusOK
	status := "ready"
	if !dbConnected {
		code = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondJSON(w, code, map[string]any{
		"status":             status,
		"database_connected": dbConnected,
	})
}
