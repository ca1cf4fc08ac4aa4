// SPDX-License-Identifier: AGPL-3.0-or-later

// Package services runs background maintenance tasks.
package services

import (
	"context"
	"log/slog"
	"time"

	applog "github.com/btouchard/keygate/pkg/logger"
)

// Pruner removes journal entries older than a retention window.
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// Scheduler handles background periodic tasks.
type Scheduler struct {
	pruner    Pruner
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

// NewScheduler creates a new Scheduler that prunes every interval.
func NewScheduler(pruner Pruner, retention, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		pruner:    pruner,
		retention: retention,
		interval:  interval,
		logger:    logger.With(applog.ComponentKey, "SCHEDULER"),
	}
}

// Start runs an initial prune, then one per interval.
// This function blocks until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "prune_interval", s.interval, "retention", s.retention)

	s.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.prune(ctx)
		}
	}
}

func (s *Scheduler) prune(ctx context.Context) {
	n, err := s.pruner.Prune(ctx, s.retention)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("failed to prune activity journal", "error", err)
		}
		return
	}
	if n > 0 {
		s.logger.Info("activity journal pruned", "removed", n)
	} else {
		s.logger.Debug("activity journal prune found nothing to remove")
	}
}
