// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

//go:build integration

package database

import (
	"context"
	"testing"

	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/models"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/testinfra"
)

func TestWriter_PostgresParity(t *testing.T) {
	ctx := context.Background()
	dsn := testinfra.StartPostgres(t, ctx)

	db := openTestStore(t, dsn)
	if db.Dialect() != DialectPostgres {
		t.Fatalf("Dialect() = %s, want postgres", db.Dialect())
	}
	exerciseWriter(t, db)

	// Concurrent writers resolve conflicts at the storage layer.
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			_, err := db.UpsertExperiments(ctx, []models.Experiment{{ID: "1", Name: "churn"}})
			errs <- err
		}()
	}
	for i := 0; i < 4; i++ {
		if err := <-errs; err != nil {
			t.Errorf("concurrent upsert error = %v", err)
		}
	}
}
