// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

/*
scheduler.go - Poll Scheduler

The scheduler owns the poll loop. It runs one cycle immediately on start and
re-arms a single timer after each cycle completes, so cycles never overlap
and the interval is measured from the end of one cycle to the start of the
next. Manual triggers are coalesced: any number of TriggerSync calls during a
cycle queue at most one extra cycle.

After consecutive failures the delay grows as interval * 2^(n-1), capped at
the configured maximum backoff. A successful cycle resets the delay.
*/

//nolint:staticcheck // File documentation, not package doc
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/config"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/logging"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/metrics"
	"github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization/internal/models"
)

// State is the scheduler state.
type State string

const (
	StateIdle    State = "idle"
	StatePolling State = "polling"
)

// Timer is the subset of *time.Timer the scheduler uses.
type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

// Clock abstracts time so tests can drive the poll loop.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

type realClock struct{}

type realTimer struct{ t *time.Timer }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTimer(d time.Duration) Timer { return realTimer{time.NewTimer(d)} }

func (r realTimer) C() <-chan time.Time { return r.t.C }

func (r realTimer) Stop() bool { return r.t.Stop() }

// Cycler runs one sync cycle. Implemented by *Engine.
type Cycler interface {
	RunCycle(ctx context.Context) (CycleResult, error)
}

// Scheduler drives periodic sync cycles.
type Scheduler struct {
	engine     Cycler
	clock      Clock
	interval   time.Duration
	maxBackoff time.Duration
	backoff    bool

	trigger chan struct{}

	mu          sync.RWMutex
	state       State
	nextFire    time.Time
	lastSuccess time.Time
	lastErrorAt time.Time
	lastError   string
	failures    int
	cycles      int64
	lastCycle   *models.CycleSummary
	onCompleted func(models.CycleSummary)

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c Clock) SchedulerOption {
	return func(s *Scheduler) { s.clock = c }
}

// NewScheduler creates a scheduler for engine using cfg.Sync.
func NewScheduler(engine Cycler, cfg *config.Config, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		engine:     engine,
		clock:      realClock{},
		interval:   cfg.Sync.Interval(),
		maxBackoff: cfg.Sync.MaxBackoff,
		backoff:    cfg.Sync.BackoffEnabled,
		trigger:    make(chan struct{}, 1),
		state:      StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxBackoff < s.interval {
		s.maxBackoff = s.interval
	}
	return s
}

// SetOnCycleCompleted registers a callback invoked after every cycle.
func (s *Scheduler) SetOnCycleCompleted(fn func(models.CycleSummary)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCompleted = fn
}

// Start launches the poll loop in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.mu.Unlock()

	logging.Info().
		Dur("interval", s.interval).
		Bool("backoff", s.backoff).
		Dur("max_backoff", s.maxBackoff).
		Msg("Starting sync scheduler")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()
	return nil
}

// Stop cancels the poll loop and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	logging.Info().Msg("Sync scheduler stopped")
	return nil
}

// Run executes the poll loop in the caller's goroutine until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.loop(ctx)
	return ctx.Err()
}

// TriggerSync requests an immediate cycle. It reports false when a request
// is already pending.
func (s *Scheduler) TriggerSync() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	for {
		s.runOnce(ctx)
		if ctx.Err() != nil {
			s.setIdle(time.Time{})
			return
		}

		delay := s.nextDelay()
		timer := s.clock.NewTimer(delay)
		s.setIdle(s.clock.Now().Add(delay))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.setIdle(time.Time{})
			return
		case <-timer.C():
		case <-s.trigger:
			timer.Stop()
			logging.Ctx(ctx).Info().Msg("Manual sync triggered")
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	ctx = logging.ContextWithNewCorrelationID(ctx)
	started := s.clock.Now()

	s.mu.Lock()
	s.state = StatePolling
	s.nextFire = time.Time{}
	s.mu.Unlock()
	metrics.SetSyncInProgress(true)

	res, err := s.engine.RunCycle(ctx)

	metrics.SetSyncInProgress(false)

	summary := models.CycleSummary{
		CorrelationID:   logging.CorrelationIDFromContext(ctx),
		StartedAt:       started,
		Duration:        res.Duration,
		Experiments:     res.Experiments,
		Runs:            res.Runs,
		Params:          res.Params,
		Metrics:         res.Metrics,
		MappingErrors:   res.MappingErrors,
		ContainedErrors: res.ContainedErrors,
	}
	shutdown := err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled)

	s.mu.Lock()
	s.cycles++
	switch {
	case err == nil:
		s.failures = 0
		s.lastSuccess = s.clock.Now()
	case shutdown:
		summary.Error = err.Error()
	default:
		summary.Error = err.Error()
		s.failures++
		s.lastError = err.Error()
		s.lastErrorAt = s.clock.Now()
	}
	failures := s.failures
	s.lastCycle = &summary
	onCompleted := s.onCompleted
	s.mu.Unlock()

	if !shutdown {
		metrics.RecordSyncCycle(res.Duration, ErrorType(err), failures)
	}

	log := logging.Ctx(ctx)
	switch {
	case err == nil:
		log.Info().
			Int("experiments", res.Experiments).
			Int("runs", res.Runs).
			Int("params", res.Params).
			Int("metrics", res.Metrics).
			Int("mapping_errors", res.MappingErrors).
			Int("contained_errors", res.ContainedErrors).
			Dur("duration", res.Duration).
			Msg("Sync cycle completed")
	case shutdown:
		log.Info().Msg("Sync cycle interrupted by shutdown")
	default:
		log.Error().
			Err(err).
			Str("error_type", ErrorType(err)).
			Int("consecutive_failures", failures).
			Msg("Sync cycle failed")
	}

	if onCompleted != nil {
		onCompleted(summary)
	}
}

// nextDelay returns the wait before the next cycle.
func (s *Scheduler) nextDelay() time.Duration {
	s.mu.RLock()
	failures := s.failures
	s.mu.RUnlock()
	return backoffDelay(s.interval, s.maxBackoff, failures, s.backoff)
}

// backoffDelay computes interval * 2^(failures-1), capped at maxDelay.
func backoffDelay(interval, maxDelay time.Duration, failures int, enabled bool) time.Duration {
	if !enabled || failures <= 1 {
		return interval
	}
	d := interval
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= maxDelay || d <= 0 {
			return maxDelay
		}
	}
	return d
}

func (s *Scheduler) setIdle(next time.Time) {
	s.mu.Lock()
	s.state = StateIdle
	s.nextFire = next
	s.mu.Unlock()
}

// Status returns a snapshot for the status endpoint.
func (s *Scheduler) Status() models.SyncStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := models.SyncStatus{
		State:               string(s.state),
		LastError:           s.lastError,
		ConsecutiveFailures: s.failures,
		Cycles:              s.cycles,
	}
	if !s.lastSuccess.IsZero() {
		t := s.lastSuccess
		st.LastSuccess = &t
	}
	if !s.lastErrorAt.IsZero() {
		t := s.lastErrorAt
		st.LastErrorAt = &t
	}
	if !s.nextFire.IsZero() {
		t := s.nextFire
		st.NextFireTime = &t
	}
	if s.lastCycle != nil {
		c := *s.lastCycle
		st.LastCycle = &c
	}
	return st
}
