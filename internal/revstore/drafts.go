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

// SaveDraft overwrites the project's single in-progress answer document.
// Drafts carry no history; every save replaces the previous content.
func (s *Store) SaveDraft(ctx context.Context, projectID uuid.UUID, draft models.Draft) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO drafts (project_id, content, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (project_id)
		DO UPDATE SET content = EXCLUDED.content, updated_at = NOW()
	`, projectID, payload)
	if err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	return nil
}

// GetDraft loads the current draft content.
func (s *Store) GetDraft(ctx context.Context, projectID uuid.UUID) (models.Draft, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx,
		`SELECT content FROM drafts WHERE project_id = $1`,
		projectID,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("draft for project %s: %w", projectID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load draft: %w", err)
	}

	draft := models.Draft{}
	if err := json.Unmarshal(payload, &draft); err != nil {
		return nil, fmt.Errorf("failed to decode stored draft: %w", err)
	}
	return draft, nil
}
