// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

/*
writer.go - Idempotent Writes

Each batch method commits one transaction:

	UpsertExperiments  INSERT ... ON CONFLICT (id) DO UPDATE
	UpsertRuns         INSERT ... ON CONFLICT (id) DO UPDATE (experiment_id kept)
	UpsertParams       INSERT ... ON CONFLICT (run_id, key) DO UPDATE SET value
	AppendMetrics      INSERT ... ON CONFLICT DO NOTHING

Batches are de-duplicated in memory first because DuckDB rejects a second
conflicting write to the same key within one transaction. The returned count
is the number of rows sent to the store after de-duplication; for metrics it
is the number of points actually inserted.

DuckDB reports optimistic-concurrency conflicts between concurrent
transactions. Those are retried with 1ms, 2ms, 4ms backoff.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/logging"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/metrics"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/models"
)

const (
	upsertExperimentSQL = `INSERT INTO experiments (id, name, lifecycle_stage) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			lifecycle_stage = excluded.lifecycle_stage`

	upsertRunSQL = `INSERT INTO runs (id, experiment_id, name, status, start_time, end_time) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			status = excluded.status,
			start_time = excluded.start_time,
			end_time = excluded.end_time`

	upsertParamSQL = `INSERT INTO params (run_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT (run_id, key) DO UPDATE SET value = excluded.value`

	appendMetricSQL = `INSERT INTO metrics (run_id, key, value, timestamp, step) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`
)

// txFunc runs statements inside a transaction and returns the rows written.
type txFunc func(tx *sql.Tx) (int, error)

// withTx runs fn in a transaction, retrying DuckDB conflicts. The
// transaction is rolled back on any error, including cancellation.
func (db *DB) withTx(ctx context.Context, op, table string, fn txFunc) error {
	_, err := db.withTxCount(ctx, op, table, fn)
	return err
}

func (db *DB) withTxCount(ctx context.Context, op, table string, fn txFunc) (int, error) {
	start := time.Now()
	var lastErr error

	for attempt := 0; attempt < db.conflictRetries; attempt++ {
		n, err := db.runTx(ctx, fn)
		if err == nil {
			metrics.RecordDBQuery(op, table, time.Since(start), nil)
			return n, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			metrics.RecordDBQuery(op, table, time.Since(start), ctx.Err())
			return 0, ctx.Err()
		}

		if isTransactionConflict(err) && attempt < db.conflictRetries-1 {
			backoff := time.Millisecond * time.Duration(1<<uint(attempt)) // 1ms, 2ms, 4ms
			logging.Debug().
				Str("op", op).
				Int("attempt", attempt+1).
				Err(err).
				Msg("Retrying store transaction after conflict")
			select {
			case <-time.After(backoff):
				continue
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}
		break
	}

	metrics.RecordDBQuery(op, table, time.Since(start), lastErr)
	return 0, classify(op, fmt.Errorf("%s %s: %w", op, table, lastErr))
}

func (db *DB) runTx(ctx context.Context, fn txFunc) (n int, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if n, err = fn(tx); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// execBatch prepares query once and executes it for every argument row.
// It returns the summed RowsAffected.
func (db *DB) execBatch(ctx context.Context, tx *sql.Tx, query string, rows [][]any) (int, error) {
	stmt, err := tx.PrepareContext(ctx, db.dialect.rebind(query))
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer closeQuietly(stmt)

	total := 0
	for _, args := range rows {
		res, err := stmt.ExecContext(ctx, args...)
		if err != nil {
			return 0, err
		}
		if n, err := res.RowsAffected(); err == nil {
			total += int(n)
		}
	}
	return total, nil
}

// UpsertExperiments inserts or updates experiments in one transaction.
func (db *DB) UpsertExperiments(ctx context.Context, exps []models.Experiment) (int, error) {
	if len(exps) == 0 {
		return 0, nil
	}
	rows := dedupe(exps, func(e models.Experiment) string { return e.ID }, func(e models.Experiment) []any {
		return []any{e.ID, e.Name, nullString(e.LifecycleStage)}
	})
	return db.withTxCount(ctx, "upsert", "experiments", func(tx *sql.Tx) (int, error) {
		if _, err := db.execBatch(ctx, tx, upsertExperimentSQL, rows); err != nil {
			return 0, err
		}
		return len(rows), nil
	})
}

// UpsertRuns inserts or updates runs in one transaction. The experiments
// must already be stored.
func (db *DB) UpsertRuns(ctx context.Context, runs []models.Run) (int, error) {
	if len(runs) == 0 {
		return 0, nil
	}
	rows := dedupe(runs, func(r models.Run) string { return r.ID }, func(r models.Run) []any {
		return []any{r.ID, r.ExperimentID, nullString(r.Name), nullString(r.Status), nullTime(&r.StartTime), nullTime(r.EndTime)}
	})
	return db.withTxCount(ctx, "upsert", "runs", func(tx *sql.Tx) (int, error) {
		if _, err := db.execBatch(ctx, tx, upsertRunSQL, rows); err != nil {
			return 0, err
		}
		return len(rows), nil
	})
}

// UpsertParams inserts or overwrites params in one transaction. When a key
// repeats within the batch the last value wins.
func (db *DB) UpsertParams(ctx context.Context, params []models.Param) (int, error) {
	if len(params) == 0 {
		return 0, nil
	}
	rows := dedupe(params, func(p models.Param) string { return p.RunID + "\x00" + p.Key }, func(p models.Param) []any {
		return []any{p.RunID, p.Key, p.Value}
	})
	return db.withTxCount(ctx, "upsert", "params", func(tx *sql.Tx) (int, error) {
		if _, err := db.execBatch(ctx, tx, upsertParamSQL, rows); err != nil {
			return 0, err
		}
		return len(rows), nil
	})
}

// AppendMetrics inserts metric points in one transaction. Points already
// stored are skipped, so re-reading a full history adds nothing.
func (db *DB) AppendMetrics(ctx context.Context, points []models.Metric) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}
	rows := dedupe(points, metricKey, func(m models.Metric) []any {
		return []any{m.RunID, m.Key, m.Value, m.Timestamp.UTC(), m.Step}
	})
	return db.withTxCount(ctx, "append", "metrics", func(tx *sql.Tx) (int, error) {
		return db.execBatch(ctx, tx, appendMetricSQL, rows)
	})
}

// UpsertExperiment stores a single experiment.
func (db *DB) UpsertExperiment(ctx context.Context, e models.Experiment) error {
	_, err := db.UpsertExperiments(ctx, []models.Experiment{e})
	return err
}

// UpsertRun stores a single run.
func (db *DB) UpsertRun(ctx context.Context, r models.Run) error {
	_, err := db.UpsertRuns(ctx, []models.Run{r})
	return err
}

// UpsertParam stores a single param.
func (db *DB) UpsertParam(ctx context.Context, p models.Param) error {
	_, err := db.UpsertParams(ctx, []models.Param{p})
	return err
}

// AppendMetric stores a single metric point.
func (db *DB) AppendMetric(ctx context.Context, m models.Metric) error {
	_, err := db.AppendMetrics(ctx, []models.Metric{m})
	return err
}

// dedupe keeps the last row per key, in order of first appearance.
func dedupe[T any](items []T, key func(T) string, args func(T) []any) [][]any {
	index := make(map[string]int, len(items))
	rows := make([][]any, 0, len(items))
	for _, item := range items {
		k := key(item)
		if i, ok := index[k]; ok {
			rows[i] = args(item)
			continue
		}
		index[k] = len(rows)
		rows = append(rows, args(item))
	}
	return rows
}

// metricKey is the natural key of a point. NaN values compare equal here,
// matching DuckDB and PostgreSQL key semantics.
func metricKey(m models.Metric) string {
	v := "NaN"
	if !math.IsNaN(m.Value) {
		v = fmt.Sprint(math.Float64bits(m.Value))
	}
	return fmt.Sprintf("%s\x00%s\x00%d\x00%d\x00%s", m.RunID, m.Key, m.Timestamp.UnixNano(), m.Step, v)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC()
}
