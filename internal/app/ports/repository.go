// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ports defines the interfaces (ports) used by the application layer.
// These interfaces are implemented by adapters (repositories, crypto schemes).
// Following hexagonal architecture: interfaces are declared where they are consumed.
package ports

import (
	"context"
	"time"

	"github.com/btouchard/keygate/internal/domain"
)

// ActivityRepository defines persistence operations for the activity journal.
type ActivityRepository interface {
	// Save appends an entry.
	Save(ctx context.Context, activity *domain.Activity) error

	// ListRecent returns at most limit entries, newest first.
	ListRecent(ctx context.Context, limit int) ([]*domain.Activity, error)

	// DeleteOlderThan removes entries created before cutoff and returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
