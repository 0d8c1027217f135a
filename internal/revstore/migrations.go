package revstore

import (
	"context"
	"fmt"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		hashed_password TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		created_by_user_id UUID,
		geometry JSONB,
		latest_dib_revision INT NOT NULL DEFAULT 0,
		latest_pspec_revision INT NOT NULL DEFAULT 0,
		approval_state TEXT NOT NULL DEFAULT 'none',
		approval_revision INT,
		approval_decided_at TIMESTAMPTZ,
		last_generation JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS drafts (
		project_id UUID PRIMARY KEY REFERENCES projects(id) ON DELETE CASCADE,
		content JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS dib_revisions (
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		revision INT NOT NULL,
		content JSONB NOT NULL,
		content_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		confirmed_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (project_id, revision)
	)`,
	`CREATE TABLE IF NOT EXISTS pspec_revisions (
		project_id UUID NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		revision INT NOT NULL,
		content JSONB NOT NULL,
		content_hash TEXT NOT NULL,
		summary TEXT NOT NULL,
		dib_revision INT NOT NULL,
		dib_hash TEXT NOT NULL,
		crg_hash TEXT NOT NULL,
		approval_state TEXT NOT NULL DEFAULT 'pending',
		approval_decided_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (project_id, revision)
	)`,
}

// migrate applies the schema. Statements are idempotent so startup can
// always run them.
func (s *Store) migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", i, err)
		}
	}
	return nil
}
