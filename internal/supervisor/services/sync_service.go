// MLflow Grafana Visualization - Experiment Tracking Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/jeffTheLandShark/gitlab-mlflow-grafana-visualization

package services

import (
	"context"
	"fmt"
)

// StartStopManager is a component with a background lifecycle.
// *sync.Scheduler satisfies it.
type StartStopManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SyncService runs the poll scheduler as a supervised service.
type SyncService struct {
	manager StartStopManager
	name    string
}

// NewSyncService wraps manager.
func NewSyncService(manager StartStopManager) *SyncService {
	return &SyncService{
		manager: manager,
		name:    "sync-scheduler",
	}
}

// Serve starts the scheduler and blocks until ctx is canceled. Stop waits
// for an in-flight cycle to observe cancellation before returning.
func (s *SyncService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("sync scheduler start failed: %w", err)
	}

	<-ctx.Done()

	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("sync scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

func (s *SyncService) String() string {
	return s.name
}
