// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

/*
Package models defines the row shapes mirrored from MLflow and the DTOs served
by the status API.

Row models:

  - Experiment: one row per MLflow experiment, keyed by experiment ID
  - Run: one row per run, keyed by run ID, with a nullable end time
  - Param: one row per (run, key), last write wins
  - Metric: one row per observed point, keyed by (run, key, timestamp, step, value)

Rows carry validate tags checked by the mapper after type coercion. They are
the only shapes the writer accepts; raw API payloads never reach the store.

Status models:

  - APIResponse, Metadata, APIError: standard response envelope
  - SyncStatus, CycleSummary, TableCounts, HealthStatus: scheduler state for operators
*/
package models
