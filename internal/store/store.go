// Package store is the Postgres persistence layer: scenarios, response
// revisions, the rule base with its audit log, and literature references.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrCompletionRevoked is returned when a draft revision would revoke
	// an earlier complete one. Completion is a latch: once an expert's
	// judgment is complete it may be revised, but not withdrawn, because
	// consensus may already have consumed it.
	ErrCompletionRevoked = errors.New("cannot revoke a completed response")

	// ErrAlreadyAdded is returned when a researched rule was already
	// promoted for the same citation key and rule name.
	ErrAlreadyAdded = errors.New("rule already added for this citation")
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}
