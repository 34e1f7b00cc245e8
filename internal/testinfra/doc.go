// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

// Package testinfra provides container-backed fixtures for integration tests.
//
// Everything here is behind the "integration" build tag:
//
//	go test -tags integration ./...
//
// # MLflow Container
//
// MLflowContainer runs the official tracking server and exposes helpers to
// seed experiments, runs, params and metrics through the REST API:
//
//	mlf, err := testinfra.NewMLflowContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer testinfra.CleanupContainer(t, ctx, mlf.Container)
//
//	expID, _ := mlf.CreateExperiment(ctx, "churn")
//	runID, _ := mlf.CreateRun(ctx, expID, "baseline", time.Now())
//	_ = mlf.LogMetric(ctx, runID, "loss", 0.3, time.Now(), 1)
//
// # PostgreSQL
//
// StartPostgres returns a DSN for a throwaway PostgreSQL 16 server used to
// check that the store behaves the same as on DuckDB.
//
// # CI Considerations
//
// These tests require Docker. They skip themselves when the daemon is not
// reachable.
package testinfra
