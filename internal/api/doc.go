// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

/*
Package api serves the operator-facing HTTP surface of the sync service.

Routes:

	GET  /health/live   200 while the process runs
	GET  /health/ready  200 when the store answers a ping, 503 otherwise
	GET  /status        scheduler snapshot, table counts, store health
	GET  /health        alias of /status
	POST /sync          queue an immediate cycle, 202
	GET  /metrics       Prometheus exposition

The status payload is consumed by monitoring, not by the engine. Its status
field is "starting" until the first cycle finishes, "degraded" while the
latest cycle failed or the store is unreachable, and "healthy" otherwise.

Global middleware: request and correlation IDs, real IP, panic recovery,
CORS, OpenTelemetry server spans, per-IP rate limiting and request metrics.
*/
package api
