// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package mlflow

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// Endpoint names, also used as metric labels.
const (
	opSearchExperiments = "experiments/search"
	opSearchRuns        = "runs/search"
	opGetRun            = "runs/get"
	opGetMetricHistory  = "metrics/get-history"
)

type searchExperimentsRequest struct {
	MaxResults int    `json:"max_results"`
	PageToken  string `json:"page_token,omitempty"`
}

type searchExperimentsResponse struct {
	Experiments   []Record `json:"experiments"`
	NextPageToken string   `json:"next_page_token"`
}

type searchRunsRequest struct {
	ExperimentIDs []string `json:"experiment_ids"`
	MaxResults    int      `json:"max_results"`
	PageToken     string   `json:"page_token,omitempty"`
	RunViewType   string   `json:"run_view_type"`
}

type searchRunsResponse struct {
	Runs          []Record `json:"runs"`
	NextPageToken string   `json:"next_page_token"`
}

type getRunResponse struct {
	Run Record `json:"run"`
}

type metricHistoryResponse struct {
	Metrics       []Record `json:"metrics"`
	NextPageToken string   `json:"next_page_token"`
}

// Ping requests a single experiment.
func (c *HTTPClient) Ping(ctx context.Context) error {
	var resp searchExperimentsResponse
	return c.do(ctx, opSearchExperiments, http.MethodPost, nil,
		searchExperimentsRequest{MaxResults: 1}, &resp)
}

// ListExperiments returns one page of active experiments.
func (c *HTTPClient) ListExperiments(ctx context.Context, pageToken string) (Page, error) {
	var resp searchExperimentsResponse
	err := c.do(ctx, opSearchExperiments, http.MethodPost, nil,
		searchExperimentsRequest{MaxResults: c.pageSize, PageToken: pageToken}, &resp)
	if err != nil {
		return Page{}, err
	}
	return Page{Items: resp.Experiments, NextPageToken: resp.NextPageToken}, nil
}

// ListRuns returns one page of active runs of an experiment, in server order.
func (c *HTTPClient) ListRuns(ctx context.Context, experimentID, pageToken string) (Page, error) {
	var resp searchRunsResponse
	err := c.do(ctx, opSearchRuns, http.MethodPost, nil, searchRunsRequest{
		ExperimentIDs: []string{experimentID},
		MaxResults:    c.pageSize,
		PageToken:     pageToken,
		RunViewType:   "ACTIVE_ONLY",
	}, &resp)
	if err != nil {
		return Page{}, err
	}
	return Page{Items: resp.Runs, NextPageToken: resp.NextPageToken}, nil
}

// GetRun returns the run object, including data.params and data.metrics.
func (c *HTTPClient) GetRun(ctx context.Context, runID string) (Record, error) {
	var resp getRunResponse
	q := url.Values{"run_id": {runID}}
	if err := c.do(ctx, opGetRun, http.MethodGet, q, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Run == nil {
		return nil, unavailable(opGetRun, 0, "response has no run object", nil)
	}
	return resp.Run, nil
}

// GetMetricHistory returns one page of points for a metric key.
func (c *HTTPClient) GetMetricHistory(ctx context.Context, runID, key, pageToken string) (Page, error) {
	var resp metricHistoryResponse
	q := url.Values{
		"run_id":      {runID},
		"metric_key":  {key},
		"max_results": {strconv.Itoa(c.pageSize)},
	}
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}
	if err := c.do(ctx, opGetMetricHistory, http.MethodGet, q, nil, &resp); err != nil {
		return Page{}, err
	}
	return Page{Items: resp.Metrics, NextPageToken: resp.NextPageToken}, nil
}
