// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package config

import (
	"fmt"
	"strings"
)

var (
	validLogLevels  = []string{"trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled"}
	validLogFormats = []string{"json", "console"}
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateTracking(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateTracking() error {
	if c.Tracking.URI == "" {
		return fmt.Errorf("MLFLOW_TRACKING_URI is required")
	}
	if err := validateTrackingURL(c.Tracking.URI, "MLFLOW_TRACKING_URI"); err != nil {
		return fmt.Errorf("MLFLOW_TRACKING_URI is invalid: %w", err)
	}
	if c.Tracking.PageSize < 1 || c.Tracking.PageSize > 1000 {
		return fmt.Errorf("MLFLOW_PAGE_SIZE must be between 1 and 1000, got %d", c.Tracking.PageSize)
	}
	if c.Tracking.Timeout <= 0 {
		return fmt.Errorf("MLFLOW_TIMEOUT must be positive, got %s", c.Tracking.Timeout)
	}
	if c.Tracking.MaxRetries < 0 {
		return fmt.Errorf("MLFLOW_MAX_RETRIES must not be negative, got %d", c.Tracking.MaxRetries)
	}
	if c.Tracking.RequestsPerSecond < 0 {
		return fmt.Errorf("MLFLOW_REQUESTS_PER_SECOND must not be negative, got %g", c.Tracking.RequestsPerSecond)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("STORE_URL is required")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("DB_MAX_OPEN_CONNS must be at least 1, got %d", c.Database.MaxOpenConns)
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.RefreshIntervalSeconds < 1 {
		return fmt.Errorf("REFRESH_INTERVAL must be at least 1 second, got %d", c.Sync.RefreshIntervalSeconds)
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("SYNC_CONCURRENCY must be at least 1, got %d", c.Sync.Concurrency)
	}
	if c.Sync.BackoffEnabled && c.Sync.MaxBackoff < c.Sync.Interval() {
		return fmt.Errorf("SYNC_MAX_BACKOFF (%s) must not be shorter than REFRESH_INTERVAL (%s)",
			c.Sync.MaxBackoff, c.Sync.Interval())
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVICE_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative, got %d", c.Server.RateLimitPerMinute)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !contains(validLogLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("LOG_LEVEL must be one of %v, got: %s", validLogLevels, c.Logging.Level)
	}
	if !contains(validLogFormats, strings.ToLower(c.Logging.Format)) {
		return fmt.Errorf("LOG_FORMAT must be one of %v, got: %s", validLogFormats, c.Logging.Format)
	}
	return nil
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
