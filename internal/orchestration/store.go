package orchestration

import (
	"context"

	"github.com/google/uuid"

	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/models"
)

// RevisionStore is the persistence contract the pipeline depends on. It
// is injected so tests can run the full pipeline against an in-memory
// fake; the production implementation is internal/revstore.
//
// Append operations must be atomic and enforce that the record's
// revision number is exactly latest+1 for the project, and must maintain
// the approval pointer: brief appends reset it to none, specification
// appends set it (and the revision's own record) to pending.
type RevisionStore interface {
	CreateProject(ctx context.Context, name string, createdBy uuid.UUID) (uuid.UUID, error)
	RunMetadata(ctx context.Context, projectID uuid.UUID) (*models.RunMetadata, error)

	SaveDraft(ctx context.Context, projectID uuid.UUID, draft models.Draft) error
	GetDraft(ctx context.Context, projectID uuid.UUID) (models.Draft, error)

	SetGeometry(ctx context.Context, projectID uuid.UUID, meta models.GeometryMeta) error

	AppendDIBRevision(ctx context.Context, dib *models.DesignIntentBrief, contentHash string) error
	LatestDIB(ctx context.Context, projectID uuid.UUID) (*models.DesignIntentBrief, string, error)

	AppendPSpecRevision(ctx context.Context, spec *models.ParametricSpecification, contentHash, summary string) error
	GetPSpec(ctx context.Context, projectID uuid.UUID, revision int) (*models.ParametricSpecification, string, *models.Approval, error)
	LatestPSpec(ctx context.Context, projectID uuid.UUID) (*models.ParametricSpecification, string, *models.Approval, error)

	SetApproval(ctx context.Context, projectID uuid.UUID, revision int, next models.ApprovalState) error
	RecordGeneration(ctx context.Context, projectID uuid.UUID, result models.GenerationResult) error
}
