// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

/*
Package config provides centralized configuration management for the MLflow
sync service.

# Configuration Sources

Configuration is layered with koanf, later layers overriding earlier ones:
  - Built-in defaults (defaultConfig)
  - Optional YAML file (CONFIG_PATH, config.yaml, /etc/mlflow-sync/config.yaml)
  - Environment variables, mapped explicitly to config keys

Unknown environment variables are ignored so that unrelated variables in a
container never leak into the configuration.

# Environment Variables

Tracking API (TrackingConfig):
  - MLFLOW_TRACKING_URI: MLflow server root URL (required)
  - MLFLOW_TRACKING_TOKEN: Bearer credential sent on every request
  - MLFLOW_TIMEOUT: Per-request timeout (default: 30s)
  - MLFLOW_PAGE_SIZE: max_results per page (default: 100)
  - MLFLOW_REQUESTS_PER_SECOND: Client-side rate limit (default: 20)
  - MLFLOW_MAX_RETRIES: In-call retries for transient failures (default: 3)
  - MLFLOW_RETRY_DELAY: Base retry delay (default: 1s)
  - MLFLOW_CIRCUIT_BREAKER: Wrap the client in a circuit breaker (default: true)

Store (DatabaseConfig):
  - STORE_URL: Store DSN; DATABASE_URL is accepted as an alias.
    postgres://..., sqlite:file:..., duckdb://path or a plain DuckDB path
  - DB_MAX_OPEN_CONNS: Connection pool size (default: 8)

Sync (SyncConfig):
  - REFRESH_INTERVAL: Seconds between the end of one cycle and the start of the next (default: 60)
  - SYNC_CONCURRENCY: Experiments synced in parallel (default: 4)
  - SYNC_BACKOFF_ENABLED: Back off after consecutive failed cycles (default: true)
  - SYNC_MAX_BACKOFF: Backoff cap (default: 10m)
  - SYNC_METRIC_HISTORY: Fetch full metric history instead of latest values (default: true)

Server (ServerConfig):
  - SERVICE_PORT: Health/status/metrics port; EXPORTER_PORT is accepted as an alias (default: 8000)
  - SERVER_HOST: Bind address (default: 0.0.0.0)
  - SERVER_TIMEOUT: Read/write timeout (default: 30s)
  - CORS_ORIGINS: Comma-separated allowed origins (default: *)
  - RATE_LIMIT_PER_MINUTE: Per-IP request limit (default: 120)

Observability:
  - EXPORT_METRIC_VALUES: Publish mlflow_metric gauges (default: true)
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER
  - TRACING_ENABLED, TRACING_STDOUT
*/
package config
