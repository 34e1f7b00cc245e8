// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_query_duration_seconds",
			Help:    "Duration of relational store statements in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_query_errors_total",
			Help: "Total number of failed relational store statements",
		},
		[]string{"operation", "table"},
	)

	// Status API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of status API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Status API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of in-flight status API requests",
		},
	)

	// Sync Cycle Metrics
	SyncCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mlflow_sync_cycle_duration_seconds",
			Help:    "Duration of full poll cycles in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	SyncCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlflow_sync_cycles_total",
			Help: "Total number of poll cycles by result",
		},
		[]string{"result"}, // "success", "failure"
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlflow_sync_errors_total",
			Help: "Total number of sync errors by error type",
		},
		[]string{"error_type"}, // "upstream_unavailable", "upstream_rejected", "store_unavailable", "other"
	)

	SyncLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mlflow_sync_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful poll cycle",
		},
	)

	SyncConsecutiveFailures = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mlflow_sync_consecutive_failures",
			Help: "Number of poll cycles that failed in a row",
		},
	)

	SyncInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mlflow_sync_in_progress",
			Help: "1 while a poll cycle is running, 0 while idle",
		},
	)

	SyncRowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlflow_sync_rows_written_total",
			Help: "Total number of rows written to the store by entity",
		},
		[]string{"entity"}, // "experiment", "run", "param", "metric"
	)

	SyncMappingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlflow_sync_mapping_errors_total",
			Help: "Total number of upstream records skipped by the mapper",
		},
		[]string{"entity"},
	)

	// Upstream (MLflow) Metrics
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mlflow_upstream_request_duration_seconds",
			Help:    "Duration of MLflow REST requests in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mlflow_upstream_requests_total",
			Help: "Total number of MLflow REST requests by endpoint and status",
		},
		[]string{"endpoint", "status"}, // status: HTTP code or "transport_error"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// MLflowMetricValue mirrors the latest value of every synced metric.
	MLflowMetricValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mlflow_metric",
			Help: "Generic MLflow metric (value) with labels (experiment, run_id, metric).",
		},
		[]string{"experiment", "run_id", "metric"},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mlflow_sync_info",
			Help: "Build information, value is always 1",
		},
		[]string{"version"},
	)
)

// RecordDBQuery records the duration and outcome of one store statement.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// TrackActiveRequest moves the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}

// RecordAPIRequest records a status API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordSyncCycle records a finished poll cycle. An empty errorType means the
// cycle succeeded.
func RecordSyncCycle(duration time.Duration, errorType string, consecutiveFailures int) {
	SyncCycleDuration.Observe(duration.Seconds())
	SyncConsecutiveFailures.Set(float64(consecutiveFailures))
	if errorType != "" {
		SyncCyclesTotal.WithLabelValues("failure").Inc()
		SyncErrors.WithLabelValues(errorType).Inc()
		return
	}
	SyncCyclesTotal.WithLabelValues("success").Inc()
	SyncLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordContainedError counts a failure that was isolated to one experiment
// or run without aborting the cycle.
func RecordContainedError(errorType string) {
	SyncErrors.WithLabelValues(errorType).Inc()
}

// RecordRowsWritten adds n written rows for an entity kind.
func RecordRowsWritten(entity string, n int) {
	if n > 0 {
		SyncRowsWritten.WithLabelValues(entity).Add(float64(n))
	}
}

// RecordMappingError counts one skipped upstream record.
func RecordMappingError(entity string) {
	SyncMappingErrors.WithLabelValues(entity).Inc()
}

// RecordUpstreamRequest records one MLflow REST round trip.
func RecordUpstreamRequest(endpoint, status string, duration time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(endpoint, status).Inc()
	UpstreamRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// SetMLflowMetric publishes the latest value of a synced metric.
func SetMLflowMetric(experiment, runID, metric string, value float64) {
	MLflowMetricValue.WithLabelValues(experiment, runID, metric).Set(value)
}

// SetSyncInProgress flips the in-progress gauge.
func SetSyncInProgress(running bool) {
	if running {
		SyncInProgress.Set(1)
		return
	}
	SyncInProgress.Set(0)
}

// SetAppInfo publishes the build version.
func SetAppInfo(version string) {
	AppInfo.WithLabelValues(version).Set(1)
}
