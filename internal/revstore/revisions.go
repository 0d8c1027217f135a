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

// ErrRevisionConflict means the expected-revision check failed: another
// writer appended a revision between the caller's ledger read and this
// append. The caller re-reads the ledger and retries the whole operation.
var ErrRevisionConflict = errors.New("revision conflict")

// AppendDIBRevision writes an immutable brief revision and advances the
// ledger. The brief's revision number must be exactly latest+1, checked
// while holding the project row locked, so concurrent confirmations
// cannot produce duplicate or gapped numbers. Confirming a new brief
// also resets the project approval pointer to none: no specification has
// been generated against it yet.
func (s *Store) AppendDIBRevision(ctx context.Context, dib *models.DesignIntentBrief, contentHash string) error {
	payload, err := json.Marshal(dib)
	if err != nil {
		return fmt.Errorf("failed to marshal brief revision: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	latest, err := lockLatest(ctx, tx, dib.ProjectID, "latest_dib_revision")
	if err != nil {
		return err
	}
	if dib.Revision != latest+1 {
		return fmt.Errorf("brief revision %d does not follow latest %d: %w", dib.Revision, latest, ErrRevisionConflict)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO dib_revisions (project_id, revision, content, content_hash, created_at, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, dib.ProjectID, dib.Revision, payload, contentHash, dib.CreatedAt, dib.ConfirmedAt)
	if err != nil {
		return fmt.Errorf("failed to insert brief revision: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE projects
		SET latest_dib_revision = $1,
		    approval_state = 'none',
		    approval_revision = NULL,
		    approval_decided_at = NULL,
		    updated_at = NOW()
		WHERE id = $2
	`, dib.Revision, dib.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to advance ledger: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().
		Str("project_id", dib.ProjectID.String()).
		Int("revision", dib.Revision).
		Str("content_hash", contentHash).
		Msg("brief revision confirmed")
	return nil
}

// LatestDIB loads the newest brief revision and its content hash.
func (s *Store) LatestDIB(ctx context.Context, projectID uuid.UUID) (*models.DesignIntentBrief, string, error) {
	var (
		payload []byte
		hash    string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT content, content_hash
		FROM dib_revisions
		WHERE project_id = $1
		ORDER BY revision DESC
		LIMIT 1
	`, projectID).Scan(&payload, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", fmt.Errorf("brief for project %s: %w", projectID, ErrNotFound)
		}
		return nil, "", fmt.Errorf("failed to load brief revision: %w", err)
	}

	var dib models.DesignIntentBrief
	if err := json.Unmarshal(payload, &dib); err != nil {
		return nil, "", fmt.Errorf("failed to decode stored brief revision: %w", err)
	}
	return &dib, hash, nil
}

// AppendPSpecRevision writes an immutable specification revision with its
// co-written summary and moves both the revision's approval record and
// the project pointer to pending. Same expected-revision discipline as
// brief appends.
func (s *Store) AppendPSpecRevision(ctx context.Context, spec *models.ParametricSpecification, contentHash, summary string) error {
	payload, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to marshal specification revision: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	latest, err := lockLatest(ctx, tx, spec.ProjectID, "latest_pspec_revision")
	if err != nil {
		return err
	}
	if spec.Revision != latest+1 {
		return fmt.Errorf("specification revision %d does not follow latest %d: %w", spec.Revision, latest, ErrRevisionConflict)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO pspec_revisions
			(project_id, revision, content, content_hash, summary,
			 dib_revision, dib_hash, crg_hash, approval_state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', $9)
	`, spec.ProjectID, spec.Revision, payload, contentHash, summary,
		spec.Inputs.DIB.Revision, spec.Inputs.DIB.ContentHash, spec.Inputs.CRG.ContentHash, spec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert specification revision: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE projects
		SET latest_pspec_revision = $1,
		    approval_state = 'pending',
		    approval_revision = $1,
		    approval_decided_at = NULL,
		    updated_at = NOW()
		WHERE id = $2
	`, spec.Revision, spec.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to advance ledger: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.Info().
		Str("project_id", spec.ProjectID.String()).
		Int("revision", spec.Revision).
		Int("dib_revision", spec.Inputs.DIB.Revision).
		Msg("specification revision persisted")
	return nil
}

// GetPSpec loads one specification revision, its summary, and its own
// approval record.
func (s *Store) GetPSpec(ctx context.Context, projectID uuid.UUID, revision int) (*models.ParametricSpecification, string, *models.Approval, error) {
	var (
		payload   []byte
		summary   string
		state     string
		decidedAt *time.Time
	)
	err := s.pool.QueryRow(ctx, `
		SELECT content, summary, approval_state, approval_decided_at
		FROM pspec_revisions
		WHERE project_id = $1 AND revision = $2
	`, projectID, revision).Scan(&payload, &summary, &state, &decidedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", nil, fmt.Errorf("specification revision %d for project %s: %w", revision, projectID, ErrNotFound)
		}
		return nil, "", nil, fmt.Errorf("failed to load specification revision: %w", err)
	}

	var spec models.ParametricSpecification
	if err := json.Unmarshal(payload, &spec); err != nil {
		return nil, "", nil, fmt.Errorf("failed to decode stored specification: %w", err)
	}

	approval := &models.Approval{State: models.ApprovalState(state), DecidedAt: decidedAt}
	return &spec, summary, approval, nil
}

// LatestPSpec loads the newest specification revision.
func (s *Store) LatestPSpec(ctx context.Context, projectID uuid.UUID) (*models.ParametricSpecification, string, *models.Approval, error) {
	var revision int
	err := s.pool.QueryRow(ctx,
		`SELECT latest_pspec_revision FROM projects WHERE id = $1`,
		projectID,
	).Scan(&revision)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", nil, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
		}
		return nil, "", nil, fmt.Errorf("failed to load project ledger: %w", err)
	}
	if revision == 0 {
		return nil, "", nil, fmt.Errorf("specification for project %s: %w", projectID, ErrNotFound)
	}
	return s.GetPSpec(ctx, projectID, revision)
}

// lockLatest reads one latest-revision counter while holding the project
// row FOR UPDATE for the rest of the transaction.
func lockLatest(ctx context.Context, tx pgx.Tx, projectID uuid.UUID, column string) (int, error) {
	// column comes from a fixed call-site set, never from input
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1 FOR UPDATE`, column)
	var latest int
	if err := tx.QueryRow(ctx, query, projectID).Scan(&latest); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("project %s: %w", projectID, ErrNotFound)
		}
		return 0, fmt.Errorf("failed to lock project ledger: %w", err)
	}
	return latest, nil
}
