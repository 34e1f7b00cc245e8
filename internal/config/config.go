// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package config

import "time"

// Config holds all application configuration.
type Config struct {
	Tracking TrackingConfig `koanf:"tracking"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Server   ServerConfig   `koanf:"server"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Logging  LoggingConfig  `koanf:"logging"`
	Tracing  TracingConfig  `koanf:"tracing"`
}

// TrackingConfig holds the MLflow tracking server connection settings.
type TrackingConfig struct {
	URI               string        `koanf:"uri"`
	Token             string        `koanf:"token"`
	Timeout           time.Duration `koanf:"timeout"`
	PageSize          int           `koanf:"page_size"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	MaxRetries        int           `koanf:"max_retries"`
	RetryDelay        time.Duration `koanf:"retry_delay"`
	CircuitBreaker    bool          `koanf:"circuit_breaker"`
}

// DatabaseConfig holds relational store settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
}

// SyncConfig controls the poll loop.
type SyncConfig struct {
	// RefreshIntervalSeconds is the idle period between two cycles.
	RefreshIntervalSeconds int `koanf:"refresh_interval_seconds"`

	// Concurrency bounds how many experiments are synced at once.
	Concurrency int `koanf:"concurrency"`

	BackoffEnabled bool          `koanf:"backoff_enabled"`
	MaxBackoff     time.Duration `koanf:"max_backoff"`

	// MetricHistory expands every metric key through get-history. When false
	// only the latest value per key is recorded.
	MetricHistory bool `koanf:"metric_history"`
}

// Interval returns the refresh interval as a duration.
func (s SyncConfig) Interval() time.Duration {
	return time.Duration(s.RefreshIntervalSeconds) * time.Second
}

// ServerConfig holds the health/status HTTP server settings.
type ServerConfig struct {
	Port               int           `koanf:"port"`
	Host               string        `koanf:"host"`
	Timeout            time.Duration `koanf:"timeout"`
	CORSOrigins        []string      `koanf:"cors_origins"`
	RateLimitPerMinute int           `koanf:"rate_limit_per_minute"`
}

// MetricsConfig controls Prometheus exposition of synced values.
type MetricsConfig struct {
	// ExportValues publishes mlflow_metric{experiment,run_id,metric} gauges.
	ExportValues bool `koanf:"export_values"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `koanf:"enabled"`
	Stdout      bool   `koanf:"stdout"`
	ServiceName string `koanf:"service_name"`
}
