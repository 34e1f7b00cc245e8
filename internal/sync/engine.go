// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

/*
engine.go - Poll Cycle

One cycle mirrors the tracking server into the store:

 1. List every experiment and upsert them in one batch.
 2. Fan out over experiments with bounded concurrency. Per experiment, stream
    the run listing page by page and upsert each page before fetching the
    next. Per run, fetch the run once, upsert its params, then expand and
    append its metrics.
 3. Contain failures to the smallest scope. A failed run does not stop its
    siblings; a failed experiment does not stop other experiments.

The cycle aborts when the experiment listing fails, when the server rejects
the credential (401/403), or when the store connection is lost. The scheduler
retries on the next cycle in every case.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/config"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/database"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/logging"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/metrics"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/mlflow"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/models"
)

const tracerName = "github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/sync"

// metricBatchSize bounds the points committed per transaction.
const metricBatchSize = 1000

// Store is the write side of the relational store.
// Implemented by *database.DB.
type Store interface {
	UpsertExperiments(ctx context.Context, exps []models.Experiment) (int, error)
	UpsertRuns(ctx context.Context, runs []models.Run) (int, error)
	UpsertParams(ctx context.Context, params []models.Param) (int, error)
	AppendMetrics(ctx context.Context, points []models.Metric) (int, error)
}

// CycleResult summarizes one cycle. Counts are rows written.
type CycleResult struct {
	Experiments     int
	Runs            int
	Params          int
	Metrics         int
	MappingErrors   int
	ContainedErrors int
	Duration        time.Duration
}

// cycleStats accumulates counts across the fan-out goroutines.
type cycleStats struct {
	experiments, runs, params, metrics atomic.Int64
	mappingErrors, containedErrors     atomic.Int64
}

func (s *cycleStats) result(d time.Duration) CycleResult {
	return CycleResult{
		Experiments:     int(s.experiments.Load()),
		Runs:            int(s.runs.Load()),
		Params:          int(s.params.Load()),
		Metrics:         int(s.metrics.Load()),
		MappingErrors:   int(s.mappingErrors.Load()),
		ContainedErrors: int(s.containedErrors.Load()),
		Duration:        d,
	}
}

// Engine runs poll cycles.
type Engine struct {
	client        mlflow.Client
	store         Store
	concurrency   int
	metricHistory bool
	exportValues  bool
	tracer        trace.Tracer
}

// NewEngine creates an engine reading from client and writing to store.
func NewEngine(client mlflow.Client, store Store, cfg *config.Config) *Engine {
	concurrency := cfg.Sync.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		client:        client,
		store:         store,
		concurrency:   concurrency,
		metricHistory: cfg.Sync.MetricHistory,
		exportValues:  cfg.Metrics.ExportValues,
		tracer:        otel.Tracer(tracerName),
	}
}

// IsFatal reports whether err must abort the whole cycle.
func IsFatal(err error) bool {
	return errors.Is(err, mlflow.ErrUnauthorized) || database.IsStoreUnavailable(err)
}

// ErrorType classifies an error for metrics and logs.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, mlflow.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, mlflow.ErrUpstreamRejected):
		return "upstream_rejected"
	case errors.Is(err, mlflow.ErrUpstreamUnavailable):
		return "upstream_unavailable"
	case database.IsStoreUnavailable(err):
		return "store_unavailable"
	case errors.Is(err, ErrMapping):
		return "mapping"
	default:
		return "store"
	}
}

// RunCycle performs one full fetch-transform-persist pass.
func (e *Engine) RunCycle(ctx context.Context) (CycleResult, error) {
	start := time.Now()
	stats := &cycleStats{}

	ctx, span := e.tracer.Start(ctx, "sync.cycle")
	defer span.End()

	err := e.runCycle(ctx, stats)
	res := stats.result(time.Since(start))

	span.SetAttributes(
		attribute.Int("sync.experiments", res.Experiments),
		attribute.Int("sync.runs", res.Runs),
		attribute.Int("sync.metrics", res.Metrics),
		attribute.Int("sync.contained_errors", res.ContainedErrors),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorType(err))
	}
	return res, err
}

func (e *Engine) runCycle(ctx context.Context, stats *cycleStats) error {
	var records []mlflow.Record
	for rec, err := range mlflow.Experiments(ctx, e.client) {
		if err != nil {
			return fmt.Errorf("list experiments: %w", err)
		}
		records = append(records, rec)
	}

	exps, merrs := MapExperiments(records)
	e.reportMapping(ctx, merrs, stats)

	n, err := e.store.UpsertExperiments(ctx, exps)
	if err != nil {
		return fmt.Errorf("store experiments: %w", err)
	}
	stats.experiments.Add(int64(n))
	metrics.RecordRowsWritten(EntityExperiment, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for _, exp := range exps {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			err := e.syncExperiment(gctx, exp, stats)
			switch {
			case err == nil:
				return nil
			case IsFatal(err):
				return err
			case gctx.Err() != nil:
				return gctx.Err()
			}
			e.contain(gctx, "experiment", exp.ID, err, stats)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// syncExperiment streams the runs of one experiment page by page.
func (e *Engine) syncExperiment(ctx context.Context, exp models.Experiment, stats *cycleStats) error {
	ctx, span := e.tracer.Start(ctx, "sync.experiment",
		trace.WithAttributes(attribute.String("mlflow.experiment_id", exp.ID)))
	defer span.End()

	ctx = logging.ContextWithLogger(ctx,
		logging.LoggerFromContext(ctx).With().Str("experiment_id", exp.ID).Logger())

	runs := 0
	for page, err := range mlflow.RunPages(ctx, e.client, exp.ID) {
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("experiment %s: list runs: %w", exp.ID, err)
		}

		mapped, merrs := MapRuns(page.Items)
		e.reportMapping(ctx, merrs, stats)

		n, err := e.store.UpsertRuns(ctx, mapped)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("experiment %s: store runs: %w", exp.ID, err)
		}
		stats.runs.Add(int64(n))
		metrics.RecordRowsWritten(EntityRun, n)
		runs += len(mapped)

		for _, run := range mapped {
			err := e.syncRun(ctx, exp, run, stats)
			switch {
			case err == nil:
				continue
			case IsFatal(err):
				return err
			case ctx.Err() != nil:
				return ctx.Err()
			}
			e.contain(ctx, "run", run.ID, err, stats)
		}
	}

	span.SetAttributes(attribute.Int("sync.runs", runs))
	logging.Ctx(ctx).Debug().Int("runs", runs).Msg("Experiment synced")
	return nil
}

// syncRun fetches one run and writes its params and metrics.
func (e *Engine) syncRun(ctx context.Context, exp models.Experiment, run models.Run, stats *cycleStats) error {
	rec, err := e.client.GetRun(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("run %s: get: %w", run.ID, err)
	}
	data := mlflow.ExtractRunData(rec)

	params, merrs := MapParams(run.ID, data.Params)
	e.reportMapping(ctx, merrs, stats)
	n, err := e.store.UpsertParams(ctx, params)
	if err != nil {
		return fmt.Errorf("run %s: store params: %w", run.ID, err)
	}
	stats.params.Add(int64(n))
	metrics.RecordRowsWritten(EntityParam, n)

	latest := make(map[string]models.Metric)
	batch := make([]models.Metric, 0, min(metricBatchSize, len(data.Metrics)))

	flush := func() error {
		n, err := e.store.AppendMetrics(ctx, batch)
		if err != nil {
			return fmt.Errorf("run %s: store metrics: %w", run.ID, err)
		}
		stats.metrics.Add(int64(n))
		metrics.RecordRowsWritten(EntityMetric, n)
		batch = batch[:0]
		return nil
	}

	for item, err := range mlflow.ExpandMetrics(ctx, e.client, run.ID, data.Metrics, e.metricHistory) {
		if err != nil {
			return fmt.Errorf("run %s: metric history: %w", run.ID, err)
		}
		m, err := MapMetric(run.ID, item)
		if err != nil {
			var merr *MappingError
			if errors.As(err, &merr) {
				e.reportMapping(ctx, []*MappingError{merr}, stats)
			}
			continue
		}

		if prev, ok := latest[m.Key]; !ok || newer(m, prev) {
			latest[m.Key] = m
		}
		batch = append(batch, m)
		if len(batch) >= metricBatchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	if e.exportValues {
		for key, m := range latest {
			metrics.SetMLflowMetric(exp.Name, run.ID, key, m.Value)
		}
	}
	return nil
}

// newer orders points by step, then timestamp, the way MLflow picks the
// latest value of a metric.
func newer(a, b models.Metric) bool {
	if a.Step != b.Step {
		return a.Step > b.Step
	}
	return a.Timestamp.After(b.Timestamp)
}

func (e *Engine) reportMapping(ctx context.Context, merrs []*MappingError, stats *cycleStats) {
	for _, merr := range merrs {
		stats.mappingErrors.Add(1)
		metrics.RecordMappingError(merr.Kind)
		logging.Ctx(ctx).Warn().
			Str("entity", merr.Kind).
			Str("id", merr.ID).
			Str("field", merr.Field).
			Str("reason", merr.Reason).
			Msg("Skipping malformed upstream record")
	}
}

// contain logs a failure isolated to one experiment or run.
func (e *Engine) contain(ctx context.Context, scope, id string, err error, stats *cycleStats) {
	stats.containedErrors.Add(1)
	kind := ErrorType(err)
	metrics.RecordContainedError(kind)

	event := logging.Ctx(ctx).Error()
	if errors.Is(err, mlflow.ErrUpstreamUnavailable) {
		event = logging.Ctx(ctx).Warn()
	}
	event.Err(err).
		Str("scope", scope).
		Str("id", id).
		Str("error_type", kind).
		Msg("Sync failure contained, continuing with siblings")
}
