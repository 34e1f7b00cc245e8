// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package mlflow

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"
)

// stubClient returns err from every call and counts calls.
type stubClient struct {
	err   error
	calls atomic.Int32
}

func (s *stubClient) Ping(context.Context) error {
	s.calls.Add(1)
	return s.err
}

func (s *stubClient) ListExperiments(context.Context, string) (Page, error) {
	s.calls.Add(1)
	if s.err != nil {
		return Page{}, s.err
	}
	return Page{Items: []Record{{"experiment_id": "1"}}}, nil
}

func (s *stubClient) ListRuns(context.Context, string, string) (Page, error) {
	s.calls.Add(1)
	return Page{}, s.err
}

func (s *stubClient) GetRun(_ context.Context, runID string) (Record, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return Record{"info": map[string]any{"run_id": runID}}, nil
}

func (s *stubClient) GetMetricHistory(context.Context, string, string, string) (Page, error) {
	s.calls.Add(1)
	return Page{}, s.err
}

func TestCircuitBreakerClient_PassesResults(t *testing.T) {
	stub := &stubClient{}
	cbc := NewCircuitBreakerClient(stub, BreakerSettings{})

	page, err := cbc.ListExperiments(context.Background(), "")
	if err != nil {
		t.Fatalf("ListExperiments() error = %v", err)
	}
	if len(page.Items) != 1 {
		t.Errorf("items = %d, want 1", len(page.Items))
	}

	run, err := cbc.GetRun(context.Background(), "r1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if run["info"].(map[string]any)["run_id"] != "r1" {
		t.Errorf("GetRun() = %v", run)
	}
	if cbc.State() != gobreaker.StateClosed {
		t.Errorf("State() = %v, want closed", cbc.State())
	}
}

func TestCircuitBreakerClient_OpensOnUnavailable(t *testing.T) {
	stub := &stubClient{err: unavailable(opSearchRuns, http.StatusServiceUnavailable, "down", nil)}
	cbc := NewCircuitBreakerClient(stub, BreakerSettings{MinRequests: 3, FailureRatio: 0.5})

	for i := 0; i < 3; i++ {
		if _, err := cbc.ListRuns(context.Background(), "1", ""); !errors.Is(err, ErrUpstreamUnavailable) {
			t.Fatalf("call %d error = %v, want ErrUpstreamUnavailable", i, err)
		}
	}
	if cbc.State() != gobreaker.StateOpen {
		t.Fatalf("State() = %v, want open", cbc.State())
	}

	before := stub.calls.Load()
	_, err := cbc.ListRuns(context.Background(), "1", "")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("open circuit error = %v, want ErrUpstreamUnavailable", err)
	}
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("open circuit error = %v, want to wrap ErrOpenState", err)
	}
	if stub.calls.Load() != before {
		t.Error("open circuit still called the wrapped client")
	}
}

func TestCircuitBreakerClient_RejectionsDoNotTrip(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"not found", rejected(opGetRun, http.StatusNotFound, "RESOURCE_DOES_NOT_EXIST", "gone")},
		{"unauthorized", rejected(opGetRun, http.StatusUnauthorized, "", "bad token")},
		{"cancelled", context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubClient{err: tt.err}
			cbc := NewCircuitBreakerClient(stub, BreakerSettings{MinRequests: 2, FailureRatio: 0.5})

			for i := 0; i < 5; i++ {
				if _, err := cbc.GetRun(context.Background(), "r1"); !errors.Is(err, tt.err) {
					t.Fatalf("GetRun() error = %v, want %v", err, tt.err)
				}
			}
			if cbc.State() != gobreaker.StateClosed {
				t.Errorf("State() = %v, want closed", cbc.State())
			}
			if got := stub.calls.Load(); got != 5 {
				t.Errorf("calls = %d, want 5", got)
			}
		})
	}
}

func TestCastResult(t *testing.T) {
	t.Parallel()

	if _, err := castResult[Page]("not a page", nil); err == nil {
		t.Error("castResult() with wrong type error = nil")
	}

	want := errors.New("boom")
	if _, err := castResult[Page](nil, want); !errors.Is(err, want) {
		t.Errorf("castResult() error = %v, want %v", err, want)
	}

	page, err := castResult[Page](Page{NextPageToken: "t"}, nil)
	if err != nil || page.NextPageToken != "t" {
		t.Errorf("castResult() = %+v, %v", page, err)
	}
}

func TestStateToString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state gobreaker.State
		str   string
		val   float64
	}{
		{gobreaker.StateClosed, "closed", 0},
		{gobreaker.StateHalfOpen, "half-open", 1},
		{gobreaker.StateOpen, "open", 2},
	}
	for _, tt := range tests {
		if got := stateToString(tt.state); got != tt.str {
			t.Errorf("stateToString(%v) = %q, want %q", tt.state, got, tt.str)
		}
		if got := stateToFloat(tt.state); got != tt.val {
			t.Errorf("stateToFloat(%v) = %v, want %v", tt.state, got, tt.val)
		}
	}
}
