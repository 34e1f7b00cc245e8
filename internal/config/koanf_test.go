// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearConfigEnv unsets every variable the loader reads. t.Setenv restores
// the original values when the test ends.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	names := []string{ConfigPathEnvVar}
	for k := range envMappings {
		names = append(names, strings.ToUpper(k))
	}
	for _, a := range envAliases {
		names = append(names, a.alias)
	}
	for _, name := range names {
		t.Setenv(name, "")
		if err := os.Unsetenv(name); err != nil {
			t.Fatalf("failed to unset %s: %v", name, err)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Sync.RefreshIntervalSeconds != 60 {
		t.Errorf("Sync.RefreshIntervalSeconds = %d, want 60", cfg.Sync.RefreshIntervalSeconds)
	}
	if cfg.Sync.Interval() != time.Minute {
		t.Errorf("Sync.Interval() = %v, want 1m", cfg.Sync.Interval())
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Database.URL != DefaultStoreURL {
		t.Errorf("Database.URL = %q, want %q", cfg.Database.URL, DefaultStoreURL)
	}
	if cfg.Tracking.PageSize != 100 {
		t.Errorf("Tracking.PageSize = %d, want 100", cfg.Tracking.PageSize)
	}
	if !cfg.Metrics.ExportValues {
		t.Error("Metrics.ExportValues should be true by default")
	}
	if cfg.Tracking.URI != "" {
		t.Errorf("Tracking.URI should be empty by default, got %q", cfg.Tracking.URI)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"MLFLOW_TRACKING_URI", "tracking.uri"},
		{"MLFLOW_TRACKING_TOKEN", "tracking.token"},
		{"STORE_URL", "database.url"},
		{"REFRESH_INTERVAL", "sync.refresh_interval_seconds"},
		{"SERVICE_PORT", "server.port"},
		{"LOG_LEVEL", "logging.level"},
		{"log_format", "logging.format"},
		{"HOME", ""},
		{"DATABASE_URL", ""},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadEnvVars(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("MLFLOW_TRACKING_URI", "http://mlflow:5000")
	t.Setenv("MLFLOW_TRACKING_TOKEN", "s3cret")
	t.Setenv("STORE_URL", "postgres://grafana:grafana@db:5432/mlflow")
	t.Setenv("REFRESH_INTERVAL", "15")
	t.Setenv("SERVICE_PORT", "9100")
	t.Setenv("SYNC_CONCURRENCY", "2")
	t.Setenv("MLFLOW_TIMEOUT", "5s")
	t.Setenv("CORS_ORIGINS", "http://grafana:3000, http://localhost:3000")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Tracking.URI != "http://mlflow:5000" {
		t.Errorf("Tracking.URI = %q", cfg.Tracking.URI)
	}
	if cfg.Tracking.Token != "s3cret" {
		t.Errorf("Tracking.Token = %q", cfg.Tracking.Token)
	}
	if cfg.Database.URL != "postgres://grafana:grafana@db:5432/mlflow" {
		t.Errorf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.Sync.RefreshIntervalSeconds != 15 {
		t.Errorf("Sync.RefreshIntervalSeconds = %d, want 15", cfg.Sync.RefreshIntervalSeconds)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Sync.Concurrency != 2 {
		t.Errorf("Sync.Concurrency = %d, want 2", cfg.Sync.Concurrency)
	}
	if cfg.Tracking.Timeout != 5*time.Second {
		t.Errorf("Tracking.Timeout = %v, want 5s", cfg.Tracking.Timeout)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "http://localhost:3000" {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}

	// Unset values keep their defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Tracking.PageSize != 100 {
		t.Errorf("Tracking.PageSize = %d, want 100", cfg.Tracking.PageSize)
	}
}

func TestLoadEnvAliases(t *testing.T) {
	t.Run("aliases apply when primary unset", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("MLFLOW_TRACKING_URI", "http://mlflow:5000")
		t.Setenv("DATABASE_URL", "sqlite:file:mlflow.db")
		t.Setenv("EXPORTER_PORT", "8001")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Database.URL != "sqlite:file:mlflow.db" {
			t.Errorf("Database.URL = %q, want alias value", cfg.Database.URL)
		}
		if cfg.Server.Port != 8001 {
			t.Errorf("Server.Port = %d, want 8001", cfg.Server.Port)
		}
	})

	t.Run("primary wins over alias", func(t *testing.T) {
		clearConfigEnv(t)
		t.Setenv("MLFLOW_TRACKING_URI", "http://mlflow:5000")
		t.Setenv("STORE_URL", "duckdb:///tmp/a.duckdb")
		t.Setenv("DATABASE_URL", "sqlite:file:b.db")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if cfg.Database.URL != "duckdb:///tmp/a.duckdb" {
			t.Errorf("Database.URL = %q, want STORE_URL value", cfg.Database.URL)
		}
	})
}

func TestLoadConfigFile(t *testing.T) {
	clearConfigEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
tracking:
  uri: https://mlflow.example.com/prefix
  page_size: 50
sync:
  refresh_interval_seconds: 120
  concurrency: 8
server:
  port: 9200
  cors_origins:
    - https://grafana.example.com
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	// Environment overrides the file.
	t.Setenv("REFRESH_INTERVAL", "30")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Tracking.URI != "https://mlflow.example.com/prefix" {
		t.Errorf("Tracking.URI = %q", cfg.Tracking.URI)
	}
	if cfg.Tracking.PageSize != 50 {
		t.Errorf("Tracking.PageSize = %d, want 50", cfg.Tracking.PageSize)
	}
	if cfg.Sync.RefreshIntervalSeconds != 30 {
		t.Errorf("Sync.RefreshIntervalSeconds = %d, want env override 30", cfg.Sync.RefreshIntervalSeconds)
	}
	if cfg.Sync.Concurrency != 8 {
		t.Errorf("Sync.Concurrency = %d, want 8", cfg.Sync.Concurrency)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("Server.Port = %d, want 9200", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://grafana.example.com" {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		errMsg  string
	}{
		{
			name:    "missing tracking uri",
			envVars: map[string]string{},
			errMsg:  "MLFLOW_TRACKING_URI is required",
		},
		{
			name:    "non http tracking uri",
			envVars: map[string]string{"MLFLOW_TRACKING_URI": "ftp://mlflow"},
			errMsg:  "scheme must be http or https",
		},
		{
			name: "zero interval",
			envVars: map[string]string{
				"MLFLOW_TRACKING_URI": "http://mlflow:5000",
				"REFRESH_INTERVAL":    "0",
			},
			errMsg: "REFRESH_INTERVAL must be at least 1 second",
		},
		{
			name: "port out of range",
			envVars: map[string]string{
				"MLFLOW_TRACKING_URI": "http://mlflow:5000",
				"SERVICE_PORT":        "70000",
			},
			errMsg: "SERVICE_PORT must be between 1 and 65535",
		},
		{
			name: "bad log level",
			envVars: map[string]string{
				"MLFLOW_TRACKING_URI": "http://mlflow:5000",
				"LOG_LEVEL":           "loud",
			},
			errMsg: "LOG_LEVEL must be one of",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatalf("Load() expected error containing %q, got nil", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Load() error = %q, want it to contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}
