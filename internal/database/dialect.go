// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package database

import (
	"strconv"
	"strings"
)

// Dialect identifies the SQL flavor behind a DB.
type Dialect string

const (
	DialectDuckDB   Dialect = "duckdb"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// columnTypes maps the abstract column kinds used by the schema.
type columnTypes struct {
	text      string
	timestamp string
	float     string
	integer   string
}

func (d Dialect) types() columnTypes {
	switch d {
	case DialectPostgres:
		return columnTypes{text: "TEXT", timestamp: "TIMESTAMPTZ", float: "DOUBLE PRECISION", integer: "BIGINT"}
	case DialectSQLite:
		// TIMESTAMP as declared type makes the driver scan into time.Time.
		return columnTypes{text: "TEXT", timestamp: "TIMESTAMP", float: "REAL", integer: "INTEGER"}
	default:
		return columnTypes{text: "VARCHAR", timestamp: "TIMESTAMP", float: "DOUBLE", integer: "BIGINT"}
	}
}

// expand substitutes {text}, {ts}, {float} and {int} in a DDL template.
func (d Dialect) expand(ddl string) string {
	t := d.types()
	return strings.NewReplacer(
		"{text}", t.text,
		"{ts}", t.timestamp,
		"{float}", t.float,
		"{int}", t.integer,
	).Replace(ddl)
}

// rebind rewrites ? placeholders to $1..$n for PostgreSQL. Question marks
// inside single-quoted literals are left alone.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
