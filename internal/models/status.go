// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package models

import "time"

// CycleSummary describes the outcome of one poll cycle.
type CycleSummary struct {
	CorrelationID   string        `json:"correlation_id"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration_ns"`
	Experiments     int           `json:"experiments"`
	Runs            int           `json:"runs"`
	Params          int           `json:"params"`
	Metrics         int           `json:"metrics"`
	MappingErrors   int           `json:"mapping_errors"`
	ContainedErrors int           `json:"contained_errors"`
	Error           string        `json:"error,omitempty"`
}

// SyncStatus is a snapshot of the scheduler for operators.
type SyncStatus struct {
	State               string        `json:"state"`
	LastSuccess         *time.Time    `json:"last_success,omitempty"`
	LastError           string        `json:"last_error,omitempty"`
	LastErrorAt         *time.Time    `json:"last_error_at,omitempty"`
	NextFireTime        *time.Time    `json:"next_fire_time,omitempty"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	Cycles              int64         `json:"cycles"`
	LastCycle           *CycleSummary `json:"last_cycle,omitempty"`
}

// TableCounts holds row counts per mirrored table.
type TableCounts struct {
	Experiments int64 `json:"experiments"`
	Runs        int64 `json:"runs"`
	Params      int64 `json:"params"`
	Metrics     int64 `json:"metrics"`
}

// HealthStatus is served by /status and /health. The scheduler snapshot is
// inlined so the payload reads {status, state, last_success, ...}.
type HealthStatus struct {
	Status            string `json:"status"`
	Version           string `json:"version"`
	DatabaseConnected bool   `json:"database_connected"`
	SyncStatus
	Counts *TableCounts `json:"counts,omitempty"`
	Uptime float64      `json:"uptime_seconds"`
}
