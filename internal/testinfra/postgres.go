// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

//go:build integration

package testinfra

import (
	"context"
	"testing"

	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// DefaultPostgresImage is the PostgreSQL image used for store parity tests.
const DefaultPostgresImage = "postgres:16-alpine"

// StartPostgres starts a throwaway PostgreSQL container and returns its
// pgx DSN. The test is skipped when the container cannot be started, and
// the container is terminated when the test completes.
func StartPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()
	SkipIfNoDocker(t)

	pg, err := tcpostgres.Run(ctx, DefaultPostgresImage,
		tcpostgres.WithDatabase("mlflow"),
		tcpostgres.WithUsername("mlflow"),
		tcpostgres.WithPassword("mlflow"),
		tcpostgres.WithSQLDriver("pgx"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("skip: cannot start postgres: %v", err)
	}
	t.Cleanup(func() { CleanupContainer(t, context.Background(), pg) })

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}
	return dsn
}
