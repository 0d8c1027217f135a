package revstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/models"
)

// ErrNotFound marks lookups for projects or revisions that do not exist.
var ErrNotFound = errors.New("not found")

// CreateProject creates a project with an empty ledger and its singular
// draft row.
func (s *Store) CreateProject(ctx context.Context, name string, createdBy uuid.UUID) (uuid.UUID, error) {
	projectID := uuid.New()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO projects (id, name, created_by_user_id) VALUES ($1, $2, $3)`,
		projectID, name, createdBy,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create project: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO drafts (project_id, content) VALUES ($1, '{}'::jsonb)`,
		projectID,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create draft: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().Str("project_id", projectID.String()).Str("name", name).Msg("project created")
	return projectID, nil
}

// SetGeometry records reference-geometry provenance on the ledger. Only
// metadata is stored; the mesh payload never enters the pipeline.
func (s *Store) SetGeometry(ctx context.Context, projectID uuid.UUID, meta models.GeometryMeta) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal geometry metadata: %w", err)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE projects SET geometry = $1, updated_at = NOW() WHERE id = $2`,
		payload, projectID,
	)
	if err != nil {
		return fmt.Errorf("failed to set geometry metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", projectID, ErrNotFound)
	}
	return nil
}

// RunMetadata assembles the full per-project ledger view.
func (s *Store) RunMetadata(ctx context.Context, projectID uuid.UUID) (*models.RunMetadata, error) {
	var (
		meta              models.RunMetadata
		geometryRaw       []byte
		lastGenerationRaw []byte
		approvalRevision  *int
		approvalDecidedAt *time.Time
		approvalState     string
	)

	err := s.pool.QueryRow(ctx, `
		SELECT id, name, geometry, latest_dib_revision, latest_pspec_revision,
		       approval_state, approval_revision, approval_decided_at,
		       last_generation, created_at, updated_at
		FROM projects
		WHERE id = $1
	`, projectID).Scan(
		&meta.ProjectID, &meta.Name, &geometryRaw,
		&meta.LatestDIBRevision, &meta.LatestPSpecRev,
		&approvalState, &approvalRevision, &approvalDecidedAt,
		&lastGenerationRaw, &meta.CreatedAt, &meta.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load project ledger: %w", err)
	}

	meta.Approval = models.ApprovalPointer{
		State:     models.ApprovalState(approvalState),
		Revision:  approvalRevision,
		DecidedAt: approvalDecidedAt,
	}

	if len(geometryRaw) > 0 {
		var g models.GeometryMeta
		if err := json.Unmarshal(geometryRaw, &g); err != nil {
			return nil, fmt.Errorf("failed to decode stored geometry metadata: %w", err)
		}
		meta.Geometry = &g
	}
	if len(lastGenerationRaw) > 0 {
		var g models.GenerationResult
		if err := json.Unmarshal(lastGenerationRaw, &g); err != nil {
			return nil, fmt.Errorf("failed to decode stored generation result: %w", err)
		}
		meta.LastGeneration = &g
	}

	if meta.DIBRevisions, err = s.dibSummaries(ctx, projectID); err != nil {
		return nil, err
	}
	if meta.PSpecRevisions, err = s.pspecSummaries(ctx, projectID); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (s *Store) dibSummaries(ctx context.Context, projectID uuid.UUID) ([]models.DIBRevisionSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT revision, content_hash, created_at, confirmed_at
		FROM dib_revisions
		WHERE project_id = $1
		ORDER BY revision ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query brief revisions: %w", err)
	}
	defer rows.Close()

	var out []models.DIBRevisionSummary
	for rows.Next() {
		var sum models.DIBRevisionSummary
		if err := rows.Scan(&sum.Revision, &sum.ContentHash, &sum.CreatedAt, &sum.ConfirmedAt); err != nil {
			return nil, fmt.Errorf("failed to scan brief revision: %w", err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating brief revisions: %w", err)
	}
	return out, nil
}

func (s *Store) pspecSummaries(ctx context.Context, projectID uuid.UUID) ([]models.PSpecRevisionSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT revision, content_hash, dib_revision, dib_hash, crg_hash,
		       approval_state, approval_decided_at, created_at
		FROM pspec_revisions
		WHERE project_id = $1
		ORDER BY revision ASC
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query specification revisions: %w", err)
	}
	defer rows.Close()

	var out []models.PSpecRevisionSummary
	for rows.Next() {
		var (
			sum       models.PSpecRevisionSummary
			state     string
			decidedAt *time.Time
		)
		if err := rows.Scan(&sum.Revision, &sum.ContentHash, &sum.DIBRevision, &sum.DIBHash,
			&sum.CRGHash, &state, &decidedAt, &sum.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan specification revision: %w", err)
		}
		sum.Approval = models.Approval{State: models.ApprovalState(state), DecidedAt: decidedAt}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating specification revisions: %w", err)
	}
	return out, nil
}
