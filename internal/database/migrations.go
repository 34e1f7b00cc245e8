// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

/*
migrations.go - Schema Creation

InitSchema creates the four mirror tables and records applied schema
versions in schema_migrations. Every statement is CREATE ... IF NOT EXISTS,
so running it on every start is safe.

Migrations are append-only. Never modify or remove an entry once a store
has recorded it; add a new version instead.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/logging"
)

// Migration represents a versioned schema change.
type Migration struct {
	Version     int    // Unique version number (monotonically increasing)
	Name        string // Human-readable migration name
	Description string
	Statements  []string // DDL templates, expanded per dialect
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version {int} PRIMARY KEY,
	name {text} NOT NULL,
	applied_at {ts} NOT NULL
)`

// migrations returns all schema versions in order.
func migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Name:        "mirror_tables",
			Description: "experiments, runs, params and metrics",
			Statements: []string{
				`CREATE TABLE IF NOT EXISTS experiments (
					id {text} PRIMARY KEY,
					name {text} NOT NULL,
					lifecycle_stage {text}
				)`,
				`CREATE TABLE IF NOT EXISTS runs (
					id {text} PRIMARY KEY,
					experiment_id {text} NOT NULL,
					name {text},
					status {text},
					start_time {ts},
					end_time {ts}
				)`,
				`CREATE TABLE IF NOT EXISTS params (
					run_id {text} NOT NULL,
					key {text} NOT NULL,
					value {text} NOT NULL,
					PRIMARY KEY (run_id, key)
				)`,
				`CREATE TABLE IF NOT EXISTS metrics (
					run_id {text} NOT NULL,
					key {text} NOT NULL,
					value {float},
					timestamp {ts} NOT NULL,
					step {int} NOT NULL,
					PRIMARY KEY (run_id, key, timestamp, step, value)
				)`,
				`CREATE INDEX IF NOT EXISTS idx_runs_experiment_id ON runs (experiment_id)`,
			},
		},
	}
}

// InitSchema applies every migration the store has not recorded yet.
func (db *DB) InitSchema(ctx context.Context) error {
	start := time.Now()

	if _, err := db.conn.ExecContext(ctx, db.dialect.expand(schemaMigrationsTable)); err != nil {
		return classify("init schema", fmt.Errorf("failed to create schema_migrations table: %w", err))
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return err
	}

	for _, m := range migrations() {
		if applied[m.Version] {
			continue
		}
		if err := db.applyMigration(ctx, m); err != nil {
			return err
		}
		logging.Info().
			Int("version", m.Version).
			Str("name", m.Name).
			Msg("Applied schema migration")
	}

	logging.Debug().Dur("duration", time.Since(start)).Msg("Schema ready")
	return nil
}

func (db *DB) appliedVersions(ctx context.Context) (map[int]bool, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, classify("init schema", fmt.Errorf("failed to read schema_migrations: %w", err))
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func (db *DB) applyMigration(ctx context.Context, m Migration) error {
	return db.withTx(ctx, "migrate", "schema_migrations", func(tx *sql.Tx) (int, error) {
		for _, stmt := range m.Statements {
			if _, err := tx.ExecContext(ctx, db.dialect.expand(stmt)); err != nil {
				return 0, fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
			}
		}
		_, err := tx.ExecContext(ctx,
			db.dialect.rebind(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)
				ON CONFLICT (version) DO NOTHING`),
			m.Version, m.Name, time.Now().UTC())
		return 1, err
	})
}

// SchemaVersion returns the highest applied migration version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v sql.NullInt64
	if err := db.conn.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, classify("schema version", err)
	}
	return int(v.Int64), nil
}
