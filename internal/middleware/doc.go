// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

/*
Package middleware provides HTTP middleware for the status API.

  - RequestID: X-Request-ID propagation and per-request correlation IDs, so
    that log lines of one request can be grouped.
  - PrometheusMetrics: request count, latency and in-flight gauge.

Both are plain http.HandlerFunc wrappers; the api package adapts them to
chi's func(http.Handler) http.Handler form.
*/
package middleware
