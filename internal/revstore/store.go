// Package revstore persists projects, the singular mutable draft, and
// the append-only immutable brief/specification revisions, plus the
// per-project ledger that tracks latest revisions and the approval
// pointer. Revisions are content-addressed; the ledger row is the only
// mutable aggregate and every read-modify-write of it holds the project
// row locked.
package revstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Store is the Postgres-backed revision store.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// New wires the store and applies migrations.
func New(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) (*Store, error) {
	s := &Store{pool: pool, logger: logger}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	logger.Info().Msg("revision store initialized")
	return s, nil
}
