// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

/*
Package metrics provides Prometheus instrumentation for the MLflow sync service.

Two kinds of series are exported on /metrics:

Engine self-metrics describe the sync loop itself:
  - mlflow_sync_cycle_duration_seconds, mlflow_sync_cycles_total{result}
  - mlflow_sync_rows_written_total{entity}, mlflow_sync_mapping_errors_total{entity}
  - mlflow_sync_errors_total{error_type}, mlflow_sync_last_success_timestamp_seconds
  - mlflow_upstream_request_duration_seconds{endpoint}, mlflow_upstream_requests_total{endpoint,status}
  - store_query_duration_seconds{operation,table}
  - circuit_breaker_* for the tracking API breaker
  - api_requests_total and api_request_duration_seconds for the status API

Mirrored values reproduce the single gauge of the original Prometheus exporter
so existing Grafana panels keep working:

	mlflow_metric{experiment="churn",run_id="4f1c...",metric="val_loss"} 0.231

All collectors register on the default registry through promauto.
*/
package metrics
