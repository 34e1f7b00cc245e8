// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package mlflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/logging"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/metrics"
)

// BreakerName is the circuit breaker label in metrics and logs.
const BreakerName = "mlflow-api"

// CircuitBreakerClient decorates a Client with a circuit breaker so that a
// down tracking server fails fast instead of timing out every request of a
// cycle.
//
// Only ErrUpstreamUnavailable counts as a failure. A rejection proves the
// server is up, and a cancelled context says nothing about it.
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker[any]
	name   string
}

// BreakerSettings tunes the breaker. Zero values select the defaults.
type BreakerSettings struct {
	// MinRequests before the failure ratio is considered (default 10).
	MinRequests uint32

	// FailureRatio that opens the circuit (default 0.6).
	FailureRatio float64

	// OpenTimeout before a half-open probe (default 2m).
	OpenTimeout time.Duration
}

// NewCircuitBreakerClient wraps client.
// Defaults: 3 probes in half-open, 1 minute counting window, 2 minutes open,
// trips at a 60% failure ratio after at least 10 requests.
func NewCircuitBreakerClient(client Client, s BreakerSettings) *CircuitBreakerClient {
	if s.MinRequests == 0 {
		s.MinRequests = 10
	}
	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.6
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 2 * time.Minute
	}

	metrics.CircuitBreakerState.WithLabelValues(BreakerName).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(BreakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        BreakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= s.FailureRatio {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			return false
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !IsRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &CircuitBreakerClient{client: client, cb: cb, name: BreakerName}
}

// State returns the current breaker state.
func (cbc *CircuitBreakerClient) State() gobreaker.State {
	return cbc.cb.State()
}

// execute runs fn through the breaker. An open breaker surfaces as
// ErrUpstreamUnavailable so callers need no breaker-specific handling.
func (cbc *CircuitBreakerClient) execute(op string, fn func() (any, error)) (any, error) {
	result, err := cbc.cb.Execute(fn)
	if err == nil {
		metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbc.name).Set(0)
		return result, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
		logging.Warn().Err(err).Str("endpoint", op).Msg("[CIRCUIT BREAKER] Request rejected")
		return nil, unavailable(op, 0, "", err)
	}

	if IsRetryable(err) {
		metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbc.name).Set(float64(cbc.cb.Counts().ConsecutiveFailures))
	}
	return nil, err
}

// castResult type-asserts a breaker result.
func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Ping checks connectivity with circuit breaker protection.
func (cbc *CircuitBreakerClient) Ping(ctx context.Context) error {
	_, err := cbc.execute(opSearchExperiments, func() (any, error) {
		return nil, cbc.client.Ping(ctx)
	})
	return err
}

// ListExperiments returns one page of experiments with circuit breaker protection.
func (cbc *CircuitBreakerClient) ListExperiments(ctx context.Context, pageToken string) (Page, error) {
	return castResult[Page](cbc.execute(opSearchExperiments, func() (any, error) {
		return cbc.client.ListExperiments(ctx, pageToken)
	}))
}

// ListRuns returns one page of runs with circuit breaker protection.
func (cbc *CircuitBreakerClient) ListRuns(ctx context.Context, experimentID, pageToken string) (Page, error) {
	return castResult[Page](cbc.execute(opSearchRuns, func() (any, error) {
		return cbc.client.ListRuns(ctx, experimentID, pageToken)
	}))
}

// GetRun returns a run with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetRun(ctx context.Context, runID string) (Record, error) {
	return castResult[Record](cbc.execute(opGetRun, func() (any, error) {
		return cbc.client.GetRun(ctx, runID)
	}))
}

// GetMetricHistory returns one page of metric points with circuit breaker protection.
func (cbc *CircuitBreakerClient) GetMetricHistory(ctx context.Context, runID, key, pageToken string) (Page, error) {
	return castResult[Page](cbc.execute(opGetMetricHistory, func() (any, error) {
		return cbc.client.GetMetricHistory(ctx, runID, key, pageToken)
	}))
}
