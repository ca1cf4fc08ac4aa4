// SPDX-License-Identifier: AGPL-3.0-or-later

// Package postgres provides PostgreSQL implementations of the repository interfaces.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS activities (
	id          UUID PRIMARY KEY,
	operation   TEXT NOT NULL,
	scheme      TEXT NOT NULL,
	address     TEXT NOT NULL DEFAULT '',
	request_id  TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS activities_created_at_idx ON activities (created_at DESC);
`

// Store holds the database connection and provides access to repositories.
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store with a database connection.
func NewStore(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromDB wraps an existing connection.
func NewStoreFromDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the journal schema if it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for advanced use cases.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ActivityRepository returns an ActivityRepository backed by this store.
func (s *Store) ActivityRepository() *ActivityRepository {
	return NewActivityRepository(s.db)
}
