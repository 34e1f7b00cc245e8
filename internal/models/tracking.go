// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package models

import "time"

// Experiment is a named grouping of runs.
type Experiment struct {
	ID             string `json:"experiment_id" validate:"required,mlflow_id"`
	Name           string `json:"name" validate:"required,max=500"`
	LifecycleStage string `json:"lifecycle_stage,omitempty" validate:"max=32"`
}

// Run is one execution of an experiment.
//
// EndTime is nil while the run is still in progress upstream. A later cycle
// overwrites it once the run finishes.
type Run struct {
	ID           string     `json:"run_id" validate:"required,mlflow_id"`
	ExperimentID string     `json:"experiment_id" validate:"required,mlflow_id"`
	Name         string     `json:"run_name,omitempty" validate:"max=500"`
	Status       string     `json:"status,omitempty" validate:"max=32"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
}

// Param is a single-valued named setting of a run.
type Param struct {
	RunID string `json:"run_id" validate:"required,mlflow_id"`
	Key   string `json:"key" validate:"required,max=250"`
	Value string `json:"value" validate:"max=8000"`
}

// Metric is one observation of a named numeric series of a run.
//
// Timestamp and Step default to the Unix epoch and 0 when the upstream omits
// them, so the natural key stays deterministic across cycles.
type Metric struct {
	RunID     string    `json:"run_id" validate:"required,mlflow_id"`
	Key       string    `json:"key" validate:"required,max=250"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
	Step      int64     `json:"step"`
}
