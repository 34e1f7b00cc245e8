// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package mlflow

import (
	"context"
	"fmt"
	"iter"
)

// pageFunc fetches the page that starts at pageToken.
type pageFunc func(ctx context.Context, pageToken string) (Page, error)

// pages follows cursors until the server returns no next token. A repeated
// token is reported as ErrUpstreamUnavailable instead of looping forever.
func pages(ctx context.Context, op string, fetch pageFunc) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		seen := make(map[string]struct{})
		token := ""
		for {
			if err := ctx.Err(); err != nil {
				yield(Page{}, err)
				return
			}

			page, err := fetch(ctx, token)
			if err != nil {
				yield(Page{}, err)
				return
			}
			if !yield(page, nil) {
				return
			}

			if page.NextPageToken == "" {
				return
			}
			if _, dup := seen[page.NextPageToken]; dup {
				yield(Page{}, unavailable(op, 0, fmt.Sprintf("page token %q repeated", page.NextPageToken), nil))
				return
			}
			seen[page.NextPageToken] = struct{}{}
			token = page.NextPageToken
		}
	}
}

// items flattens pages into records, preserving order.
func items(seq iter.Seq2[Page, error]) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for page, err := range seq {
			if err != nil {
				yield(nil, err)
				return
			}
			for _, rec := range page.Items {
				if !yield(rec, nil) {
					return
				}
			}
		}
	}
}

// Experiments lists every experiment, following cursors lazily.
func Experiments(ctx context.Context, c Client) iter.Seq2[Record, error] {
	return items(pages(ctx, opSearchExperiments, c.ListExperiments))
}

// RunPages yields the run listing of an experiment page by page, so callers
// can commit each page before fetching the next.
func RunPages(ctx context.Context, c Client, experimentID string) iter.Seq2[Page, error] {
	return pages(ctx, opSearchRuns, func(ctx context.Context, token string) (Page, error) {
		return c.ListRuns(ctx, experimentID, token)
	})
}

// Runs lists every run of an experiment in server order.
func Runs(ctx context.Context, c Client, experimentID string) iter.Seq2[Record, error] {
	return items(RunPages(ctx, c, experimentID))
}

// MetricHistory lists every recorded point of one metric key.
func MetricHistory(ctx context.Context, c Client, runID, key string) iter.Seq2[Record, error] {
	return items(pages(ctx, opGetMetricHistory, func(ctx context.Context, token string) (Page, error) {
		return c.GetMetricHistory(ctx, runID, key, token)
	}))
}
