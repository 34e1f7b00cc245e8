// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

/*
Package main is the entry point for the MLflow sync service.

The service mirrors experiments, runs, params and metric points from an
MLflow tracking server into a relational store (DuckDB, SQLite or
PostgreSQL) that Grafana queries directly. It polls on a fixed interval,
writes idempotently and exposes its own health on a small HTTP API.

# Application Architecture

	RootSupervisor ("mlflow-sync")
	├── DataSupervisor ("data-layer")
	│   └── Sync Scheduler (poll loop, one cycle at a time)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (/health, /status, /sync, /metrics)

Component initialization order:

 1. Configuration: Koanf v2 with config.yaml and environment variables
 2. Logging: zerolog with JSON/console output modes
 3. Tracing: OpenTelemetry provider (optional)
 4. Store: open the database and apply schema migrations
 5. Tracking client: HTTP client with retries, rate limit and circuit breaker
 6. Sync engine and scheduler
 7. Supervisor tree and HTTP server

# Configuration

Required:
  - MLFLOW_TRACKING_URI: tracking server base URL

Common options:
  - STORE_URL (or DATABASE_URL): duckdb://, sqlite:// or postgres:// store URL
  - MLFLOW_TRACKING_TOKEN: bearer token for the tracking server
  - REFRESH_INTERVAL: idle period between cycles in seconds (default 60)
  - SYNC_METRIC_HISTORY: record every metric point, not just the latest (default true)
  - EXPORT_METRIC_VALUES: publish synced values as mlflow_metric gauges
  - SERVICE_PORT (or EXPORTER_PORT): status API port (default 8000)

# Signal Handling

SIGINT and SIGTERM cancel the root context. An in-flight cycle stops at its
next cancellation point; writes already committed stay committed. The HTTP
server drains for up to the shutdown timeout, then the store is closed.

# Example Usage

	export MLFLOW_TRACKING_URI=http://mlflow:5000
	export STORE_URL=postgres://grafana:secret@db:5432/mlflow
	./mlflow-sync
*/
package main
