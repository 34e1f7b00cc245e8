// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

// Package cache provides a small thread-safe TTL cache.
//
// The status API keeps the store's table counts here so that dashboards
// polling /status do not issue COUNT(*) over the metrics table on every
// request. The scheduler clears the cache after each cycle.
package cache
