// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/metrics"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/models"
)

// ErrNotFound is returned by single-row reads when the row does not exist.
var ErrNotFound = errors.New("not found")

// Counts returns the row count of every mirror table.
func (db *DB) Counts(ctx context.Context) (models.TableCounts, error) {
	start := time.Now()
	var c models.TableCounts

	targets := []struct {
		table string
		dest  *int64
	}{
		{"experiments", &c.Experiments},
		{"runs", &c.Runs},
		{"params", &c.Params},
		{"metrics", &c.Metrics},
	}
	for _, t := range targets {
		// table names are constants above
		if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.table).Scan(t.dest); err != nil {
			metrics.RecordDBQuery("count", t.table, time.Since(start), err)
			return models.TableCounts{}, classify("count", fmt.Errorf("count %s: %w", t.table, err))
		}
	}
	metrics.RecordDBQuery("count", "all", time.Since(start), nil)
	return c, nil
}

// GetRun reads one run by ID.
func (db *DB) GetRun(ctx context.Context, id string) (models.Run, error) {
	var (
		r                  models.Run
		name, status       sql.NullString
		startTime, endTime sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx,
		db.dialect.rebind("SELECT id, experiment_id, name, status, start_time, end_time FROM runs WHERE id = ?"), id).
		Scan(&r.ID, &r.ExperimentID, &name, &status, &startTime, &endTime)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Run{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Run{}, classify("get run", err)
	}

	r.Name, r.Status = name.String, status.String
	if startTime.Valid {
		r.StartTime = startTime.Time.UTC()
	}
	if endTime.Valid {
		t := endTime.Time.UTC()
		r.EndTime = &t
	}
	return r, nil
}

// GetParams returns the params of a run keyed by name.
func (db *DB) GetParams(ctx context.Context, runID string) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		db.dialect.rebind("SELECT key, value FROM params WHERE run_id = ?"), runID)
	if err != nil {
		return nil, classify("get params", err)
	}
	defer rows.Close()

	params := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		params[k] = v
	}
	return params, rows.Err()
}

// CountMetrics returns the number of stored points of one metric key.
func (db *DB) CountMetrics(ctx context.Context, runID, key string) (int64, error) {
	var n int64
	err := db.conn.QueryRowContext(ctx,
		db.dialect.rebind("SELECT COUNT(*) FROM metrics WHERE run_id = ? AND key = ?"), runID, key).Scan(&n)
	if err != nil {
		return 0, classify("count metrics", err)
	}
	return n, nil
}
