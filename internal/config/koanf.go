// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/mlflow-sync/config.yaml",
	"/etc/mlflow-sync/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultStoreURL is used when neither STORE_URL nor DATABASE_URL is set.
const DefaultStoreURL = "/data/mlflow.duckdb"

func defaultConfig() *Config {
	return &Config{
		Tracking: TrackingConfig{
			Timeout:           30 * time.Second,
			PageSize:          100,
			RequestsPerSecond: 20,
			MaxRetries:        3,
			RetryDelay:        time.Second,
			CircuitBreaker:    true,
		},
		Database: DatabaseConfig{
			URL:             DefaultStoreURL,
			MaxOpenConns:    8,
			MaxIdleConns:    4,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Sync: SyncConfig{
			RefreshIntervalSeconds: 60,
			Concurrency:            4,
			BackoffEnabled:         true,
			MaxBackoff:             10 * time.Minute,
			MetricHistory:          true,
		},
		Server: ServerConfig{
			Port:               8000,
			Host:               "0.0.0.0",
			Timeout:            30 * time.Second,
			CORSOrigins:        []string{"*"},
			RateLimitPerMinute: 120,
		},
		Metrics: MetricsConfig{
			ExportValues: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			ServiceName: "mlflow-sync",
		},
	}
}

// sliceConfigPaths are config keys that accept comma-separated env values.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// envAliases lists secondary variable names. An alias only applies when the
// primary variable is unset.
var envAliases = []struct {
	alias   string
	primary string
	key     string
}{
	{alias: "DATABASE_URL", primary: "STORE_URL", key: "database.url"},
	{alias: "EXPORTER_PORT", primary: "SERVICE_PORT", key: "server.port"},
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// MLFLOW_TRACKING_URI -> tracking.uri, REFRESH_INTERVAL -> sync.refresh_interval_seconds
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := applyEnvAliases(k); err != nil {
		return nil, err
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

func applyEnvAliases(k *koanf.Koanf) error {
	for _, a := range envAliases {
		if _, ok := os.LookupEnv(a.primary); ok {
			continue
		}
		if v, ok := os.LookupEnv(a.alias); ok && v != "" {
			if err := k.Set(a.key, v); err != nil {
				return fmt.Errorf("failed to apply %s: %w", a.alias, err)
			}
		}
	}
	return nil
}

// processSliceFields splits comma-separated env values into string slices.
// Values that already are slices (from YAML) are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to config keys.
var envMappings = map[string]string{
	// Tracking API
	"mlflow_tracking_uri":        "tracking.uri",
	"mlflow_tracking_token":      "tracking.token",
	"mlflow_timeout":             "tracking.timeout",
	"mlflow_page_size":           "tracking.page_size",
	"mlflow_requests_per_second": "tracking.requests_per_second",
	"mlflow_max_retries":         "tracking.max_retries",
	"mlflow_retry_delay":         "tracking.retry_delay",
	"mlflow_circuit_breaker":     "tracking.circuit_breaker",

	// Store
	"store_url":            "database.url",
	"db_max_open_conns":    "database.max_open_conns",
	"db_max_idle_conns":    "database.max_idle_conns",
	"db_conn_max_lifetime": "database.conn_max_lifetime",

	// Sync
	"refresh_interval":     "sync.refresh_interval_seconds",
	"sync_concurrency":     "sync.concurrency",
	"sync_backoff_enabled": "sync.backoff_enabled",
	"sync_max_backoff":     "sync.max_backoff",
	"sync_metric_history":  "sync.metric_history",

	// Server
	"service_port":          "server.port",
	"server_host":           "server.host",
	"server_timeout":        "server.timeout",
	"cors_origins":          "server.cors_origins",
	"rate_limit_per_minute": "server.rate_limit_per_minute",

	// Metrics
	"export_metric_values": "metrics.export_values",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Tracing
	"tracing_enabled":      "tracing.enabled",
	"tracing_stdout":       "tracing.stdout",
	"tracing_service_name": "tracing.service_name",
}

// envTransformFunc maps an environment variable name to its config key.
// Unmapped variables return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
