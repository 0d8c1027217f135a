package revstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/models"
)

// SetApproval moves one specification revision to next (approved or
// rejected), updating both the revision's own record and the project
// pointer under the same transaction. The current state is read with the
// row locked and the transition validated against the state machine, so
// concurrent decisions cannot double-resolve a revision.
func (s *Store) SetApproval(ctx context.Context, projectID uuid.UUID, revision int, next models.ApprovalState) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx, `
		SELECT approval_state FROM pspec_revisions
		WHERE project_id = $1 AND revision = $2
		FOR UPDATE
	`, projectID, revision).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("specification revision %d for project %s: %w", revision, projectID, ErrNotFound)
		}
		return fmt.Errorf("failed to lock specification revision: %w", err)
	}

	if err := models.ValidateApprovalTransition(models.ApprovalState(current), next); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE pspec_revisions
		SET approval_state = $1, approval_decided_at = NOW()
		WHERE project_id = $2 AND revision = $3
	`, string(next), projectID, revision)
	if err != nil {
		return fmt.Errorf("failed to update revision approval: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE projects
		SET approval_state = $1, approval_revision = $2, approval_decided_at = NOW(), updated_at = NOW()
		WHERE id = $3
	`, string(next), revision, projectID)
	if err != nil {
		return fmt.Errorf("failed to update approval pointer: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().
		Str("project_id", projectID.String()).
		Int("revision", revision).
		Str("state", string(next)).
		Msg("approval decision recorded")
	return nil
}

// RecordGeneration stores the opaque outcome of the latest regeneration
// run on the ledger.
func (s *Store) RecordGeneration(ctx context.Context, projectID uuid.UUID, result models.GenerationResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal generation result: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET last_generation = $1, updated_at = NOW() WHERE id = $2`,
		payload, projectID,
	)
	if err != nil {
		return fmt.Errorf("failed to record generation result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	return nil
}
