// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package database

import (
	"context"
	"testing"

	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/models"
)

// exerciseWriter runs the same write scenario against any dialect: two
// identical passes, then a finished run, a changed param and a new point.
func exerciseWriter(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()

	exps := []models.Experiment{{ID: "1", Name: "churn"}, {ID: "2", Name: "fraud"}}
	runs := []models.Run{
		{ID: "r1", ExperimentID: "1", StartTime: ms(1_700_000_000_000)},
		{ID: "r2", ExperimentID: "2", StartTime: ms(1_700_000_100_000)},
	}
	params := []models.Param{{RunID: "r1", Key: "lr", Value: "0.1"}, {RunID: "r2", Key: "lr", Value: "0.2"}}
	points := []models.Metric{
		{RunID: "r1", Key: "loss", Value: 0.9, Timestamp: ms(1000), Step: 0},
		{RunID: "r1", Key: "loss", Value: 0.4, Timestamp: ms(2000), Step: 1},
	}

	pass := func() {
		t.Helper()
		if _, err := db.UpsertExperiments(ctx, exps); err != nil {
			t.Fatalf("UpsertExperiments() error = %v", err)
		}
		if _, err := db.UpsertRuns(ctx, runs); err != nil {
			t.Fatalf("UpsertRuns() error = %v", err)
		}
		if _, err := db.UpsertParams(ctx, params); err != nil {
			t.Fatalf("UpsertParams() error = %v", err)
		}
		if _, err := db.AppendMetrics(ctx, points); err != nil {
			t.Fatalf("AppendMetrics() error = %v", err)
		}
	}

	pass()
	first, err := db.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	pass()
	second, err := db.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts() error = %v", err)
	}
	if first != second {
		t.Errorf("second identical pass changed counts: %+v -> %+v", first, second)
	}
	want := models.TableCounts{Experiments: 2, Runs: 2, Params: 2, Metrics: 2}
	if second != want {
		t.Errorf("Counts() = %+v, want %+v", second, want)
	}

	end := ms(1_700_000_500_000)
	runs[0].EndTime = &end
	runs[0].Status = "FINISHED"
	params[0].Value = "0.01"
	points = append(points, models.Metric{RunID: "r1", Key: "loss", Value: 0.2, Timestamp: ms(3000), Step: 2})
	pass()

	var finished int
	if err := db.Conn().QueryRowContext(ctx,
		db.dialect.rebind("SELECT COUNT(*) FROM runs WHERE id = ? AND end_time IS NOT NULL"), "r1").Scan(&finished); err != nil {
		t.Fatal(err)
	}
	if finished != 1 {
		t.Errorf("r1 end_time not updated")
	}

	got, err := db.GetParams(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got["lr"] != "0.01" {
		t.Errorf("lr = %q, want 0.01", got["lr"])
	}

	final, err := db.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want.Metrics = 3
	if final != want {
		t.Errorf("Counts() = %+v, want %+v", final, want)
	}
}

func TestWriter_DuckDB(t *testing.T) {
	exerciseWriter(t, setupTestDB(t))
}

func TestWriter_SQLiteParity(t *testing.T) {
	t.Parallel()

	db := openTestStore(t, "sqlite::memory:")
	if db.Dialect() != DialectSQLite {
		t.Fatalf("Dialect() = %s, want sqlite", db.Dialect())
	}
	exerciseWriter(t, db)

	if err := db.InitSchema(context.Background()); err != nil {
		t.Errorf("second InitSchema() error = %v", err)
	}
}
