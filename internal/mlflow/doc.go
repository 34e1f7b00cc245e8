// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

/*
Package mlflow is a thin client for the MLflow tracking server REST API (2.0).

It exposes the four listings the sync engine needs:

  - experiments: POST /api/2.0/mlflow/experiments/search
  - runs:        POST /api/2.0/mlflow/runs/search
  - params and latest metrics: GET /api/2.0/mlflow/runs/get
  - metric history: GET /api/2.0/mlflow/metrics/get-history

Every listing is cursor paginated. The Client interface works one page at a
time; Experiments, Runs, RunPages and ListMetrics follow next_page_token until
the server stops returning one and yield records lazily in server order:

	for exp, err := range mlflow.Experiments(ctx, client) {
	    if err != nil {
	        return err
	    }
	    ...
	}

Records are decoded loosely (Record is a map with numbers kept as json.Number)
so that type coercion and validation happen in one place, the sync mapper.

# Errors

Failures are classified at the boundary:

  - ErrUpstreamUnavailable: transport errors, timeouts, 5xx, 429 after
    retries, undecodable bodies, an open circuit breaker. Retryable.
  - ErrUpstreamRejected: 4xx responses. Not retried. 401 and 403 additionally
    match ErrUnauthorized.

Use errors.Is against the sentinels and errors.As with *APIError for the
status code and MLflow error_code.

# Resilience

HTTPClient retries retryable failures with exponential backoff (honoring
Retry-After), rate limits itself with golang.org/x/time/rate, and records
request latency in Prometheus. CircuitBreakerClient wraps any Client with a
sony/gobreaker breaker; only unavailability counts as a breaker failure.
*/
package mlflow
