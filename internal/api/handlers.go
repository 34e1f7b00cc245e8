// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package api

import (
	"context"
	"time"

	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/cache"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/logging"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/models"
)

// countsTTL bounds how stale /status table counts may be between cycles.
const countsTTL = 30 * time.Second

const countsKey = "counts"

// Store is the read side the handlers need. Implemented by *database.DB.
type Store interface {
	Ping(ctx context.Context) error
	Counts(ctx context.Context) (models.TableCounts, error)
}

// SyncController exposes the scheduler. Implemented by *sync.Scheduler.
type SyncController interface {
	Status() models.SyncStatus
	TriggerSync() bool
}

// Handler holds the dependencies of the HTTP handlers.
type Handler struct {
	store     Store
	sync      SyncController
	version   string
	startTime time.Time
	counts    *cache.Cache[models.TableCounts]
}

// NewHandler creates the handlers.
//
//	handler := api.NewHandler(db, scheduler, version)
//	scheduler.SetOnCycleCompleted(handler.OnCycleCompleted)
func NewHandler(store Store, sync SyncController, version string) *Handler {
	return &Handler{
		store:     store,
		sync:      sync,
		version:   version,
		startTime: time.Now(),
		counts:    cache.New[models.TableCounts](countsTTL),
	}
}

// OnCycleCompleted drops cached table counts so the next /status request
// reflects the rows the cycle wrote.
func (h *Handler) OnCycleCompleted(summary models.CycleSummary) {
	h.counts.Clear()
	logging.Debug().
		Str("correlation_id", summary.CorrelationID).
		Msg("Status cache cleared after cycle")
}
