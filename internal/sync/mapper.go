// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

/*
mapper.go - Upstream Record Mapping

The mapper turns loosely typed MLflow records into the fixed row shapes of
the store. It performs no I/O and never panics on input: anything that does
not fit is reported as a *MappingError and the caller skips that record.

Coercion:
  - Timestamps: epoch milliseconds (number or numeric string) or RFC 3339
  - Metric values: numbers, numeric strings, "NaN", "Infinity", "-Infinity"
  - Param values: strings verbatim, numbers and booleans formatted
  - end_time: absent, null or 0 means the run is still in progress
  - Metric timestamp and step default to the Unix epoch and 0

Runs are accepted both flat and in MLflow's nested {info, data} shape.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/mlflow"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/models"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/validation"
)

// Entity kinds, also used as metric labels.
const (
	EntityExperiment = "experiment"
	EntityRun        = "run"
	EntityParam      = "param"
	EntityMetric     = "metric"
)

// ErrMapping matches every *MappingError.
var ErrMapping = errors.New("mapping error")

// MappingError describes one upstream record that could not be mapped.
type MappingError struct {
	Kind   string // experiment, run, param or metric
	ID     string // best-effort identity of the record, may be empty
	Field  string
	Reason string
}

func (e *MappingError) Error() string {
	id := e.ID
	if id == "" {
		id = "?"
	}
	return fmt.Sprintf("mapping %s %s: field %s: %s", e.Kind, id, e.Field, e.Reason)
}

// Unwrap makes errors.Is(err, ErrMapping) work.
func (e *MappingError) Unwrap() error {
	return ErrMapping
}

func mappingError(kind, id, fieldName string, err error) *MappingError {
	reason := err.Error()
	if errors.Is(err, errMissing) {
		reason = "missing"
	}
	return &MappingError{Kind: kind, ID: id, Field: fieldName, Reason: reason}
}

// validate runs struct tags after coercion.
func validate(kind, id string, row any) *MappingError {
	if verr := validation.ValidateStruct(row); verr != nil {
		return &MappingError{
			Kind:   kind,
			ID:     id,
			Field:  strings.Join(verr.Fields(), ","),
			Reason: verr.Error(),
		}
	}
	return nil
}

// MapExperiment maps an experiments/search item. An empty name falls back
// to "experiment_<id>".
func MapExperiment(rec mlflow.Record) (models.Experiment, error) {
	raw, _ := field(rec, "experiment_id", "id")
	id, err := toID(raw)
	if err != nil {
		return models.Experiment{}, mappingError(EntityExperiment, "", "experiment_id", err)
	}

	name, err := toText(rec["name"])
	if err != nil {
		return models.Experiment{}, mappingError(EntityExperiment, id, "name", err)
	}
	if strings.TrimSpace(name) == "" {
		name = "experiment_" + id
	}

	stage, err := toText(rec["lifecycle_stage"])
	if err != nil {
		return models.Experiment{}, mappingError(EntityExperiment, id, "lifecycle_stage", err)
	}

	exp := models.Experiment{ID: id, Name: name, LifecycleStage: stage}
	if merr := validate(EntityExperiment, id, exp); merr != nil {
		return models.Experiment{}, merr
	}
	return exp, nil
}

// MapRun maps a runs/search or runs/get item.
func MapRun(rec mlflow.Record) (models.Run, error) {
	info := map[string]any(rec)
	if nested, ok := rec["info"].(map[string]any); ok {
		info = nested
	}

	raw, _ := field(info, "run_id", "run_uuid")
	id, err := toID(raw)
	if err != nil {
		return models.Run{}, mappingError(EntityRun, "", "run_id", err)
	}

	expID, err := toID(info["experiment_id"])
	if err != nil {
		return models.Run{}, mappingError(EntityRun, id, "experiment_id", err)
	}

	name, err := toText(info["run_name"])
	if err != nil {
		return models.Run{}, mappingError(EntityRun, id, "run_name", err)
	}
	status, err := toText(info["status"])
	if err != nil {
		return models.Run{}, mappingError(EntityRun, id, "status", err)
	}

	run := models.Run{ID: id, ExperimentID: expID, Name: name, Status: status}

	start, err := toTime(info["start_time"])
	switch {
	case err == nil:
		run.StartTime = start
	case !errors.Is(err, errMissing):
		return models.Run{}, mappingError(EntityRun, id, "start_time", err)
	}

	end, err := toTime(info["end_time"])
	switch {
	case err == nil:
		if end.UnixMilli() != 0 {
			run.EndTime = &end
		}
	case !errors.Is(err, errMissing):
		return models.Run{}, mappingError(EntityRun, id, "end_time", err)
	}

	if merr := validate(EntityRun, id, run); merr != nil {
		return models.Run{}, merr
	}
	return run, nil
}

// MapParam maps one entry of run.data.params.
func MapParam(runID string, rec mlflow.Record) (models.Param, error) {
	if raw, ok := rec["_raw"]; ok {
		return models.Param{}, mappingError(EntityParam, runID, "param", fmt.Errorf("not an object: %T", raw))
	}

	key, err := toText(rec["key"])
	if err != nil || key == "" {
		if err == nil {
			err = errMissing
		}
		return models.Param{}, mappingError(EntityParam, runID, "key", err)
	}
	id := runID + "/" + key

	value, err := toParamValue(rec["value"])
	if err != nil {
		return models.Param{}, mappingError(EntityParam, id, "value", err)
	}

	p := models.Param{RunID: runID, Key: key, Value: value}
	if merr := validate(EntityParam, id, p); merr != nil {
		return models.Param{}, merr
	}
	return p, nil
}

// MapMetric maps one metric point, either a latest value from run.data or a
// get-history item.
func MapMetric(runID string, rec mlflow.Record) (models.Metric, error) {
	if raw, ok := rec["_raw"]; ok {
		return models.Metric{}, mappingError(EntityMetric, runID, "metric", fmt.Errorf("not an object: %T", raw))
	}

	key, err := toText(rec["key"])
	if err != nil || key == "" {
		if err == nil {
			err = errMissing
		}
		return models.Metric{}, mappingError(EntityMetric, runID, "key", err)
	}
	id := runID + "/" + key

	value, err := toFloat(rec["value"])
	if err != nil {
		return models.Metric{}, mappingError(EntityMetric, id, "value", err)
	}

	m := models.Metric{RunID: runID, Key: key, Value: value, Timestamp: time.Unix(0, 0).UTC()}

	if v, ok := field(rec, "timestamp"); ok {
		ts, err := toTime(v)
		if err != nil {
			return models.Metric{}, mappingError(EntityMetric, id, "timestamp", err)
		}
		m.Timestamp = ts
	}
	if v, ok := field(rec, "step"); ok {
		step, err := toInt64(v)
		if err != nil {
			return models.Metric{}, mappingError(EntityMetric, id, "step", err)
		}
		m.Step = step
	}

	if merr := validate(EntityMetric, id, m); merr != nil {
		return models.Metric{}, merr
	}
	return m, nil
}

// MapParams maps a batch, skipping and reporting malformed records.
func MapParams(runID string, recs []mlflow.Record) ([]models.Param, []*MappingError) {
	return mapAll(recs, func(rec mlflow.Record) (models.Param, error) { return MapParam(runID, rec) })
}

// MapMetrics maps a batch, skipping and reporting malformed records.
func MapMetrics(runID string, recs []mlflow.Record) ([]models.Metric, []*MappingError) {
	return mapAll(recs, func(rec mlflow.Record) (models.Metric, error) { return MapMetric(runID, rec) })
}

// MapExperiments maps a batch, skipping and reporting malformed records.
func MapExperiments(recs []mlflow.Record) ([]models.Experiment, []*MappingError) {
	return mapAll(recs, MapExperiment)
}

// MapRuns maps a batch, skipping and reporting malformed records.
func MapRuns(recs []mlflow.Record) ([]models.Run, []*MappingError) {
	return mapAll(recs, MapRun)
}

func mapAll[T any](recs []mlflow.Record, fn func(mlflow.Record) (T, error)) ([]T, []*MappingError) {
	rows := make([]T, 0, len(recs))
	var errs []*MappingError
	for _, rec := range recs {
		row, err := fn(rec)
		if err != nil {
			var merr *MappingError
			if !errors.As(err, &merr) {
				merr = &MappingError{Reason: err.Error()}
			}
			errs = append(errs, merr)
			continue
		}
		rows = append(rows, row)
	}
	return rows, errs
}
