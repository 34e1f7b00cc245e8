// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

//go:build integration

package testinfra

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultMLflowImage is the official MLflow tracking server image
	DefaultMLflowImage = "ghcr.io/mlflow/mlflow:v2.16.2"

	// DefaultMLflowPort is the tracking server port inside the container
	DefaultMLflowPort = "5000"
)

// MLflowContainer represents a running MLflow tracking server for testing.
type MLflowContainer struct {
	testcontainers.Container
	URL string

	client *http.Client
}

// MLflowOption configures the MLflow container.
type MLflowOption func(*mlflowConfig)

type mlflowConfig struct {
	image        string
	startTimeout time.Duration
}

// WithMLflowImage sets a custom MLflow Docker image.
func WithMLflowImage(image string) MLflowOption {
	return func(c *mlflowConfig) {
		c.image = image
	}
}

// WithStartTimeout sets the timeout for waiting for the server to start.
func WithStartTimeout(timeout time.Duration) MLflowOption {
	return func(c *mlflowConfig) {
		c.startTimeout = timeout
	}
}

// NewMLflowContainer starts an MLflow tracking server backed by an in-container
// SQLite file.
//
// Example:
//
//	mlf, err := NewMLflowContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer mlf.Terminate(ctx)
//
//	expID, _ := mlf.CreateExperiment(ctx, "churn")
func NewMLflowContainer(ctx context.Context, opts ...MLflowOption) (*MLflowContainer, error) {
	cfg := &mlflowConfig{
		image:        DefaultMLflowImage,
		startTimeout: 120 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	req := testcontainers.ContainerRequest{
		Image:        cfg.image,
		ExposedPorts: []string{DefaultMLflowPort + "/tcp"},
		Cmd: []string{
			"mlflow", "server",
			"--host", "0.0.0.0",
			"--port", DefaultMLflowPort,
			"--backend-store-uri", "sqlite:////tmp/mlflow.db",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(DefaultMLflowPort+"/tcp"),
			wait.ForHTTP("/health").WithPort(DefaultMLflowPort+"/tcp"),
		).WithStartupTimeout(cfg.startTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("create mlflow container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, DefaultMLflowPort)
	if err != nil {
		container.Terminate(ctx) //nolint:errcheck
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &MLflowContainer{
		Container: container,
		URL:       fmt.Sprintf("http://%s:%s", host, port.Port()),
		client:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// post calls a tracking API endpoint and decodes the response into out.
func (m *MLflowContainer) post(ctx context.Context, endpoint string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		m.URL+"/api/2.0/mlflow/"+endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: status %d: %s", endpoint, resp.StatusCode, msg)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// CreateExperiment creates an experiment and returns its ID.
func (m *MLflowContainer) CreateExperiment(ctx context.Context, name string) (string, error) {
	var resp struct {
		ExperimentID string `json:"experiment_id"`
	}
	err := m.post(ctx, "experiments/create", map[string]any{"name": name}, &resp)
	return resp.ExperimentID, err
}

// CreateRun starts a run and returns its ID.
func (m *MLflowContainer) CreateRun(ctx context.Context, experimentID, name string, start time.Time) (string, error) {
	var resp struct {
		Run struct {
			Info struct {
				RunID string `json:"run_id"`
			} `json:"info"`
		} `json:"run"`
	}
	err := m.post(ctx, "runs/create", map[string]any{
		"experiment_id": experimentID,
		"run_name":      name,
		"start_time":    start.UnixMilli(),
	}, &resp)
	return resp.Run.Info.RunID, err
}

// LogParam records a param on a run.
func (m *MLflowContainer) LogParam(ctx context.Context, runID, key, value string) error {
	return m.post(ctx, "runs/log-parameter", map[string]any{"run_id": runID, "key": key, "value": value}, nil)
}

// LogMetric records one metric point on a run.
func (m *MLflowContainer) LogMetric(ctx context.Context, runID, key string, value float64, ts time.Time, step int64) error {
	return m.post(ctx, "runs/log-metric", map[string]any{
		"run_id":    runID,
		"key":       key,
		"value":     value,
		"timestamp": ts.UnixMilli(),
		"step":      step,
	}, nil)
}

// FinishRun marks a run FINISHED at end.
func (m *MLflowContainer) FinishRun(ctx context.Context, runID string, end time.Time) error {
	return m.post(ctx, "runs/update", map[string]any{
		"run_id":   runID,
		"status":   "FINISHED",
		"end_time": end.UnixMilli(),
	}, nil)
}
