// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package mlflow

import (
	"context"
	"iter"
)

// RunData holds the params and latest metric values embedded in a run object.
type RunData struct {
	Params  []Record
	Metrics []Record
}

// ExtractRunData reads run.data.params and run.data.metrics. Entries that are
// not objects are passed through as a record holding only the raw value
// under "_raw", so the mapper can report them.
func ExtractRunData(run Record) RunData {
	data, _ := run["data"].(map[string]any)
	return RunData{
		Params:  recordList(data["params"]),
		Metrics: recordList(data["metrics"]),
	}
}

func recordList(v any) []Record {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Record, 0, len(list))
	for _, item := range list {
		switch m := item.(type) {
		case map[string]any:
			out = append(out, Record(m))
		default:
			out = append(out, Record{"_raw": item})
		}
	}
	return out
}

// ListParams returns the params of a run.
func ListParams(ctx context.Context, c Client, runID string) ([]Record, error) {
	run, err := c.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	return ExtractRunData(run).Params, nil
}

// ListMetrics returns the metric points of a run. With history it expands
// every latest value into the full recorded series; without it yields the
// latest value per key only.
func ListMetrics(ctx context.Context, c Client, runID string, history bool) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		run, err := c.GetRun(ctx, runID)
		if err != nil {
			yield(nil, err)
			return
		}
		for rec, err := range ExpandMetrics(ctx, c, runID, ExtractRunData(run).Metrics, history) {
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// ExpandMetrics turns the latest metric values of a run into metric points.
// Keys that cannot be read are yielded unchanged for the mapper to reject.
func ExpandMetrics(ctx context.Context, c Client, runID string, latest []Record, history bool) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for _, rec := range latest {
			key, ok := rec["key"].(string)
			if !history || !ok || key == "" {
				if !yield(rec, nil) {
					return
				}
				continue
			}
			for point, err := range MetricHistory(ctx, c, runID, key) {
				if !yield(point, err) || err != nil {
					return
				}
			}
		}
	}
}
