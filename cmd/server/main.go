// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/api"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/config"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/database"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/logging"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/metrics"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/mlflow"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/supervisor"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/supervisor/services"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/sync"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/tracing"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	metrics.SetAppInfo(version)

	logging.Info().
		Str("version", version).
		Str("tracking_uri", cfg.Tracking.URI).
		Int("refresh_interval_seconds", cfg.Sync.RefreshIntervalSeconds).
		Bool("metric_history", cfg.Sync.MetricHistory).
		Msg("Starting MLflow sync with supervisor tree")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Error().Err(err).Msg("MLflow sync stopped with error")
		stop()
		os.Exit(1)
	}
	logging.Info().Msg("Application stopped gracefully")
}

// run wires every component and blocks until ctx is canceled.
//
//nolint:gocyclo // Sequential setup steps
func run(ctx context.Context, cfg *config.Config) error {
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logging.Error().Err(err).Msg("Error flushing traces")
		}
	}()

	db, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	logging.Info().Str("dialect", string(db.Dialect())).Msg("Store initialized")

	client := newTrackingClient(&cfg.Tracking)
	if err := client.Ping(ctx); err != nil {
		// The scheduler retries with backoff; an unreachable server at boot
		// is not fatal.
		logging.Warn().Err(err).Msg("Tracking server not reachable at startup")
	}

	engine := sync.NewEngine(client, db, cfg)
	scheduler := sync.NewScheduler(engine, cfg)

	handler := api.NewHandler(db, scheduler, version)
	scheduler.SetOnCycleCompleted(handler.OnCycleCompleted)

	router := api.NewRouter(handler, api.NewChiMiddleware(api.ChiMiddlewareConfigFromServer(&cfg.Server)))
	server := newHTTPServer(&cfg.Server, router.SetupChi())

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  shutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}
	tree.AddDataService(services.NewSyncService(scheduler))
	tree.AddAPIService(services.NewHTTPServerService(server, shutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("Sync scheduler and HTTP server added to supervisor tree")

	errCh := tree.ServeBackground(ctx)
	var treeErr error
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			treeErr = err
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return treeErr
}

// newTrackingClient builds the MLflow client, wrapped in a circuit breaker
// unless disabled.
func newTrackingClient(cfg *config.TrackingConfig) mlflow.Client {
	var client mlflow.Client = mlflow.NewHTTPClient(cfg)
	if cfg.CircuitBreaker {
		client = mlflow.NewCircuitBreakerClient(client, mlflow.BreakerSettings{})
	}
	return client
}

func newHTTPServer(cfg *config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Timeout,
		WriteTimeout:      cfg.Timeout,
		IdleTimeout:       60 * time.Second,
	}
}
