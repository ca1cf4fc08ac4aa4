// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/btouchard/keygate/internal/app/ports"
	"github.com/btouchard/keygate/internal/domain"
	applog "github.com/btouchard/keygate/pkg/logger"
)

const (
	DefaultActivityLimit = 50
	MaxActivityLimit     = 500
)

// ActivityService records and lists journal entries.
// With no repository it is disabled: recording is a no-op and listing
// returns domain.ErrJournalDisabled.
type ActivityService struct {
	repo   ports.ActivityRepository
	logger *slog.Logger
}

// NewActivityService creates a new ActivityService. repo may be nil.
func NewActivityService(repo ports.ActivityRepository, logger *slog.Logger) *ActivityService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ActivityService{
		repo:   repo,
		logger: logger.With(applog.ComponentKey, "JOURNAL"),
	}
}

// Enabled reports whether entries are persisted.
func (s *ActivityService) Enabled() bool {
	return s != nil && s.repo != nil
}

// Record appends an entry. Failures are logged and never returned: the
// journal must not change the outcome of the operation it describes.
func (s *ActivityService) Record(ctx context.Context, op domain.Operation, scheme domain.Scheme, address string) {
	if !s.Enabled() {
		return
	}

	requestID := RequestIDFrom(ctx)
	activity, err := domain.NewActivity(op, scheme, address, requestID)
	if err != nil {
		s.logger.Error("build activity", "error", err, "request_id", requestID)
		return
	}

	if err := s.repo.Save(ctx, activity); err != nil {
		s.logger.Error("record activity",
			"error", err,
			"operation", op,
			"scheme", scheme,
			"request_id", requestID,
		)
	}
}

// Recent returns the newest entries first. limit is clamped to
// [1, MaxActivityLimit]; zero or negative means DefaultActivityLimit.
func (s *ActivityService) Recent(ctx context.Context, limit int) ([]*domain.Activity, error) {
	if !s.Enabled() {
		return nil, domain.ErrJournalDisabled
	}

	switch {
	case limit <= 0:
		limit = DefaultActivityLimit
	case limit > MaxActivityLimit:
		limit = MaxActivityLimit
	}

	activities, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return activities, nil
}

// Prune removes entries older than retention.
func (s *ActivityService) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	if !s.Enabled() {
		return 0, domain.ErrJournalDisabled
	}

	cutoff := time.Now().UTC().Add(-retention)
	n, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune activity: %w", err)
	}
	return n, nil
}
