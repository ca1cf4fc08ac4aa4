// SPDX-License-Identifier: AGPL-3.0-or-later

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/btouchard/keygate/internal/domain"
)

// ActivityRepository implements ports.ActivityRepository for PostgreSQL.
type ActivityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates a new ActivityRepository.
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Save appends a journal entry.
func (r *ActivityRepository) Save(ctx context.Context, a *domain.Activity) error {
	query := `
		INSERT INTO activities (id, operation, scheme, address, request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		a.ID.String(),
		string(a.Operation),
		a.Scheme.String(),
		a.Address,
		a.RequestID,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save activity %s: %w", a.ID, err)
	}
	return nil
}

// ListRecent returns the newest entries first.
func (r *ActivityRepository) ListRecent(ctx context.Context, limit int) ([]*domain.Activity, error) {
	query := `
		SELECT id, operation, scheme, address, request_id, created_at
		FROM activities
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []*domain.Activity
	for rows.Next() {
		var a domain.Activity
		var id, operation, scheme string

		if err := rows.Scan(&id, &operation, &scheme, &a.Address, &a.RequestID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}

		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse activity id %q: %w", id, err)
		}
		a.ID = parsed
		a.Operation = domain.Operation(operation)
		a.Scheme = domain.Scheme(scheme)

		activities = append(activities, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activities: %w", err)
	}

	return activities, nil
}

// DeleteOlderThan prunes entries created before cutoff.
func (r *ActivityRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM activities WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune activities: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune activities: %w", err)
	}
	return n, nil
}
