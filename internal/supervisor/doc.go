// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

/*
Package supervisor runs the long-lived services of the sync process under a
suture supervision tree.

	mlflow-sync (root)
	├── data-layer
	│   └── sync-scheduler   poll loop (services.SyncService)
	└── api-layer
	    └── http-server      status API (services.HTTPServerService)

A service that returns or panics is restarted with suture's failure
threshold, decay and backoff; a restart storm in one layer does not take
down the other. Supervisor events are logged through sutureslog into the
zerolog pipeline.

Cancelling the context passed to Serve stops every service. Each gets
ShutdownTimeout to return before it is reported by UnstoppedServiceReport.
*/
package supervisor
