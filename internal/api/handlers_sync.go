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

// TriggerSyncResponse is the payload of POST /sync.
type TriggerSyncResponse struct {
	// Queued is false when a manual cycle was already pending; the request
	// was coalesced into it.
	Queued bool   `json:"queued"`
	State  string `json:"state"`
}

// TriggerSync queues an immediate cycle and answers 202 Accepted.
func (h *Handler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if h.sync == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Sync scheduler not running", nil)
		return
	}

	queued := h.sync.TriggerSync()
	logging.Ctx(r.Context()).Info().Bool("queued", queued).Msg("Manual sync requested")

	respondJSON(w, http.StatusAccepted, &models.APIResponse{
		Status: "accepted",
		Data: TriggerSyncResponse{
			Queued: queued,
			State:  h.sync.Status().State,
		},
		Metadata: models.Metadata{
			Timestamp: time.Now(),
		},
	})
}
