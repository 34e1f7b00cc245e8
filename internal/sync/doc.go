// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

/*
Package sync mirrors an MLflow tracking server into the relational store.

It has three parts:

  - Mapper (mapper.go, coerce.go): turns loosely typed upstream records into
    models rows. Coercion accepts what MLflow actually emits (string or
    numeric IDs, epoch-ms numbers or strings, "NaN" and "Infinity" metric
    values). Records that cannot be mapped become *MappingError values and
    are skipped; they never fail a batch.
  - Engine (engine.go): one fetch-transform-persist cycle. Experiments are
    written before their runs, runs before their params and metrics. Run
    listings are consumed page by page so memory stays bounded by one page
    plus one run's metrics.
  - Scheduler (scheduler.go): the poll loop with a single re-armed timer,
    capped exponential backoff and coalesced manual triggers.

# Failure Containment

	experiment listing fails      -> cycle aborted
	401/403 anywhere              -> cycle aborted
	store connection lost         -> cycle aborted
	run listing of one experiment -> that experiment skipped
	one run (fetch, 404, write)   -> that run skipped
	one malformed record          -> that record skipped

Every skipped scope is logged with the cycle correlation ID and counted in
mlflow_sync_errors_total or mlflow_sync_mapping_errors_total.

# Usage

	engine := sync.NewEngine(client, db, cfg)
	scheduler := sync.NewScheduler(engine, cfg)
	if err := scheduler.Start(ctx); err != nil {
	    return err
	}
	defer scheduler.Stop()

	scheduler.TriggerSync() // from POST /api/v1/sync
*/
package sync
