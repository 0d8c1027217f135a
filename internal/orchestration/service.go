// Package orchestration glues the pure pipeline stages (normalize,
// synthesize, validate, map) to the revision store and the regeneration
// backend. The stages themselves never do I/O; everything that can block
// happens here.
package orchestration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/brief"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/metrics"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/models"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/onshape"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/pspec"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/validate"
)

var (
	// ErrGeometryMissing means a specification was requested before any
	// reference geometry was registered for the project.
	ErrGeometryMissing = errors.New("reference geometry not registered")

	// ErrNotApproved means CAD regeneration was requested for a revision
	// that is not in the approved state.
	ErrNotApproved = errors.New("specification revision is not approved")

	// ErrBackendUnavailable means the regeneration backend failed its
	// health probe.
	ErrBackendUnavailable = errors.New("regeneration backend unavailable")
)

// TemplateRef locates the parametric Onshape template the variable map
// is applied to.
type TemplateRef struct {
	DocumentID  string
	WorkspaceID string
	ElementID   string
}

// Service orchestrates the pipeline for all projects.
type Service struct {
	store    RevisionStore
	onshape  onshape.ClientInterface
	metrics  *metrics.PipelineMetrics
	template TemplateRef
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// NewService creates the pipeline service.
func NewService(store RevisionStore, client onshape.ClientInterface, pm *metrics.PipelineMetrics, template TemplateRef, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		onshape:  client,
		metrics:  pm,
		template: template,
		logger:   logger,
		tracer:   otel.Tracer("orchestration-service"),
	}
}

// CreateProject provisions a project with an empty draft.
func (s *Service) CreateProject(ctx context.Context, name string, createdBy uuid.UUID) (uuid.UUID, error) {
	return s.store.CreateProject(ctx, name, createdBy)
}

// RunMetadata returns the project ledger.
func (s *Service) RunMetadata(ctx context.Context, projectID uuid.UUID) (*models.RunMetadata, error) {
	return s.store.RunMetadata(ctx, projectID)
}

// SaveDraft overwrites the project's in-progress answers. Saving never
// validates: incompleteness only blocks confirmation.
func (s *Service) SaveDraft(ctx context.Context, projectID uuid.UUID, draft models.Draft) error {
	return s.store.SaveDraft(ctx, projectID, draft)
}

// GetDraft returns the current draft.
func (s *Service) GetDraft(ctx context.Context, projectID uuid.UUID) (models.Draft, error) {
	return s.store.GetDraft(ctx, projectID)
}

// RegisterGeometry records reference-mesh provenance for the project.
func (s *Service) RegisterGeometry(ctx context.Context, projectID uuid.UUID, meta models.GeometryMeta) error {
	return s.store.SetGeometry(ctx, projectID, meta)
}

// ConfirmBrief normalizes the draft into the next brief revision. A
// non-empty validation list means nothing was persisted; the ledger's
// approval pointer resets to none on success because the new brief
// supersedes any specification generated so far.
func (s *Service) ConfirmBrief(ctx context.Context, projectID uuid.UUID) (*models.DesignIntentBrief, []models.ValidationError, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.confirm_brief")
	defer span.End()
	span.SetAttributes(attribute.String("project.id", projectID.String()))

	draft, err := s.store.GetDraft(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	meta, err := s.store.RunMetadata(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}

	dib, verrs := brief.Normalize(projectID, draft, meta.LatestDIBRevision)
	if len(verrs) > 0 {
		span.SetAttributes(attribute.Int("validation.errors", len(verrs)))
		return nil, verrs, nil
	}

	hash, err := models.ContentHash(dib)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash brief revision: %w", err)
	}
	if err := s.store.AppendDIBRevision(ctx, dib, hash); err != nil {
		return nil, nil, err
	}

	s.metrics.RecordBriefConfirmed(ctx, projectID.String(), dib.Revision)
	span.SetAttributes(attribute.Int("brief.revision", dib.Revision))
	return dib, nil, nil
}

// GenerationOutcome is the result of one specification generation
// attempt. Persisted is true only when schema validation,
// manufacturability, and variable mapping all passed and the revision
// was written; on any failure nothing is persisted and the failing
// stage's errors are populated.
type GenerationOutcome struct {
	Persisted        bool
	Spec             *models.ParametricSpecification
	Summary          string
	Variables        *models.OnshapeVariableMap
	SchemaErrors     []models.ValidationError
	Manufacturability validate.ManufacturabilityResult
	MappingErrors    []onshape.MappingError
}

// GenerateSpecification synthesizes the next specification revision from
// the latest confirmed brief, runs both validators and the variable
// mapper, and persists the revision (approval pending) only if the whole
// chain passes. Fail-fast and all-or-nothing: a failed attempt leaves the
// ledger untouched.
func (s *Service) GenerateSpecification(ctx context.Context, projectID uuid.UUID) (*GenerationOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.generate_specification")
	defer span.End()
	span.SetAttributes(attribute.String("project.id", projectID.String()))

	meta, err := s.store.RunMetadata(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if meta.Geometry == nil {
		return nil, ErrGeometryMissing
	}

	dib, _, err := s.store.LatestDIB(ctx, projectID)
	if err != nil {
		return nil, err
	}

	spec, err := pspec.Synthesize(dib, *meta.Geometry, meta.LatestPSpecRev)
	if err != nil {
		return nil, err
	}

	outcome := &GenerationOutcome{Spec: spec}

	if schemaErrs := validate.Schema(spec); len(schemaErrs) > 0 {
		outcome.SchemaErrors = schemaErrs
		s.metrics.RecordSpecBlocked(ctx, projectID.String(), "schema")
		span.SetAttributes(attribute.Int("schema.errors", len(schemaErrs)))
		return outcome, nil
	}

	outcome.Manufacturability = validate.Manufacturability(spec)
	if !outcome.Manufacturability.OK {
		s.metrics.RecordSpecBlocked(ctx, projectID.String(), "manufacturability")
		span.SetAttributes(attribute.Int("manufacturability.errors", len(outcome.Manufacturability.Errors)))
		return outcome, nil
	}

	mapping := onshape.MapToVariables(spec)
	if !mapping.OK {
		outcome.MappingErrors = mapping.Errors
		s.metrics.RecordSpecBlocked(ctx, projectID.String(), "mapping")
		span.SetAttributes(attribute.Int("mapping.errors", len(mapping.Errors)))
		return outcome, nil
	}
	outcome.Variables = mapping.Variables

	hash, err := models.ContentHash(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to hash specification revision: %w", err)
	}
	outcome.Summary = pspec.Summary(spec)

	if err := s.store.AppendPSpecRevision(ctx, spec, hash, outcome.Summary); err != nil {
		return nil, err
	}
	outcome.Persisted = true

	s.metrics.RecordSpecGenerated(ctx, projectID.String(), spec.Revision)
	span.SetAttributes(attribute.Int("spec.revision", spec.Revision))
	return outcome, nil
}

// GetSpecification returns one specification revision with its summary
// and approval record; revision 0 means latest.
func (s *Service) GetSpecification(ctx context.Context, projectID uuid.UUID, revision int) (*models.ParametricSpecification, string, *models.Approval, error) {
	if revision == 0 {
		return s.store.LatestPSpec(ctx, projectID)
	}
	return s.store.GetPSpec(ctx, projectID, revision)
}

// ApproveSpecification marks a pending revision approved. Terminal for
// that revision.
func (s *Service) ApproveSpecification(ctx context.Context, projectID uuid.UUID, revision int) error {
	return s.store.SetApproval(ctx, projectID, revision, models.ApprovalApproved)
}

// RejectSpecification marks a pending revision rejected. The revision
// stays archived; generating a new one returns the project to pending.
func (s *Service) RejectSpecification(ctx context.Context, projectID uuid.UUID, revision int) error {
	return s.store.SetApproval(ctx, projectID, revision, models.ApprovalRejected)
}

// RegenerateCAD maps the approved revision and starts a regeneration
// run, recording the job on the ledger. Approval of the specific
// revision is a hard precondition here, at the boundary to the CAD
// collaborator.
func (s *Service) RegenerateCAD(ctx context.Context, projectID uuid.UUID, revision int) (string, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.regenerate_cad")
	defer span.End()
	span.SetAttributes(
		attribute.String("project.id", projectID.String()),
		attribute.Int("spec.revision", revision),
	)

	spec, _, approval, err := s.store.GetPSpec(ctx, projectID, revision)
	if err != nil {
		return "", err
	}
	if approval.State != models.ApprovalApproved {
		return "", fmt.Errorf("revision %d is %s: %w", revision, approval.State, ErrNotApproved)
	}

	mapping := onshape.MapToVariables(spec)
	if !mapping.OK {
		return "", fmt.Errorf("approved revision %d no longer maps cleanly: %v", revision, mapping.Errors)
	}

	if !s.onshape.IsHealthy(ctx) {
		return "", ErrBackendUnavailable
	}

	jobID, err := s.onshape.Regenerate(ctx, onshape.RegenerationRequest{
		ProjectID:       projectID.String(),
		TemplateDocID:   s.template.DocumentID,
		WorkspaceID:     s.template.WorkspaceID,
		ElementID:       s.template.ElementID,
		ContractVersion: mapping.Variables.ContractVersion,
		Variables:       mapping.Variables.Variables,
		Provenance:      mapping.Variables.Provenance,
	})
	if err != nil {
		return "", err
	}

	result := models.GenerationResult{
		PSpecRevision: revision,
		JobID:         jobID,
		Status:        "started",
		RecordedAt:    time.Now().UTC(),
	}
	if err := s.store.RecordGeneration(ctx, projectID, result); err != nil {
		// The job is already running; surface the bookkeeping failure
		// without pretending the run did not start.
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to record generation start")
	}

	s.metrics.RecordRegenerationStarted(ctx, projectID.String(), revision)
	span.SetAttributes(attribute.String("job_id", jobID))
	return jobID, nil
}

// RecordGenerationOutcome accepts the opaque terminal result of a
// regeneration run from the polling collaborator and records it.
func (s *Service) RecordGenerationOutcome(ctx context.Context, projectID uuid.UUID, revision int, jobID, status, message string, duration time.Duration) error {
	result := models.GenerationResult{
		PSpecRevision: revision,
		JobID:         jobID,
		Status:        status,
		Message:       message,
		RecordedAt:    time.Now().UTC(),
	}
	if err := s.store.RecordGeneration(ctx, projectID, result); err != nil {
		return err
	}

	switch status {
	case "completed":
		s.metrics.RecordRegenerationCompleted(ctx, projectID.String(), revision, duration)
	case "failed":
		s.metrics.RecordRegenerationFailed(ctx, projectID.String(), revision, message, duration)
	}
	return nil
}

// Client exposes the regeneration client for the streaming gateway.
func (s *Service) Client() onshape.ClientInterface {
	return s.onshape
}
