// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package mlflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/mlflow/mlflowtest"
)

func TestExperiments_FollowsCursorInOrder(t *testing.T) {
	t.Parallel()

	srv := mlflowtest.NewServer("secret")
	defer srv.Close()
	for i := 1; i <= 5; i++ {
		srv.AddExperiment(fmt.Sprint(i), fmt.Sprintf("exp-%d", i))
	}

	got, err := collect(t, Experiments(context.Background(), newTestClient(t, srv)))
	if err != nil {
		t.Fatalf("Experiments() error = %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	for i, rec := range got {
		if want := fmt.Sprint(i + 1); rec["experiment_id"] != want {
			t.Errorf("item %d id = %v, want %s", i, rec["experiment_id"], want)
		}
	}
	// page size 2: pages of 2, 2, 1
	if n := srv.CountRequests("experiments/search"); n != 3 {
		t.Errorf("requests = %d, want 3", n)
	}
}

func TestExperiments_Empty(t *testing.T) {
	t.Parallel()

	srv := mlflowtest.NewServer("secret")
	defer srv.Close()

	got, err := collect(t, Experiments(context.Background(), newTestClient(t, srv)))
	if err != nil || len(got) != 0 {
		t.Fatalf("Experiments() = %d items, %v; want 0, nil", len(got), err)
	}
}

func TestRuns_StopsOnError(t *testing.T) {
	t.Parallel()

	srv := mlflowtest.NewServer("secret")
	defer srv.Close()
	srv.Fail("runs/search:7", http.StatusForbidden, -1)

	_, err := collect(t, Runs(context.Background(), newTestClient(t, srv), "7"))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Runs() error = %v, want ErrUnauthorized", err)
	}
}

func TestRunPages_EarlyBreak(t *testing.T) {
	t.Parallel()

	srv := mlflowtest.NewServer("secret")
	defer srv.Close()
	for i := 0; i < 6; i++ {
		srv.AddRun("1", mlflowtest.Run{ID: fmt.Sprintf("r%d", i)})
	}

	pagesSeen := 0
	for _, err := range RunPages(context.Background(), newTestClient(t, srv), "1") {
		if err != nil {
			t.Fatalf("RunPages() error = %v", err)
		}
		pagesSeen++
		break
	}
	if pagesSeen != 1 {
		t.Errorf("pages = %d, want 1", pagesSeen)
	}
	if n := srv.CountRequests("runs/search"); n != 1 {
		t.Errorf("requests = %d, want 1 (lazy pagination)", n)
	}
}

func TestPages_RepeatedTokenIsUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"experiments":[{"experiment_id":"1"}],"next_page_token":"same"}`))
	}))
	defer srv.Close()

	got, err := collect(t, Experiments(context.Background(), NewHTTPClient(testTrackingConfig(srv.URL, ""))))
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("error = %v, want ErrUpstreamUnavailable", err)
	}
	if len(got) != 2 {
		t.Errorf("items before error = %d, want 2", len(got))
	}
}

func TestMetricHistory_Paginates(t *testing.T) {
	t.Parallel()

	srv := mlflowtest.NewServer("secret")
	defer srv.Close()
	srv.AddRun("1", mlflowtest.Run{
		ID: "r1",
		History: map[string][]map[string]any{
			"loss": {
				{"key": "loss", "value": 0.9, "timestamp": 1000, "step": 0},
				{"key": "loss", "value": 0.5, "timestamp": 2000, "step": 1},
				{"key": "loss", "value": 0.2, "timestamp": 3000, "step": 2},
			},
		},
	})

	got, err := collect(t, MetricHistory(context.Background(), newTestClient(t, srv), "r1", "loss"))
	if err != nil {
		t.Fatalf("MetricHistory() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("points = %d, want 3", len(got))
	}
	if got[2]["step"].(fmt.Stringer).String() != "2" {
		t.Errorf("last step = %v, want 2", got[2]["step"])
	}
}
