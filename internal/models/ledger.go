package models

import (
	"time"

	"github.com/google/uuid"
)

// DIBRevisionSummary is one ledger entry for a brief revision.
type DIBRevisionSummary struct {
	Revision    int       `json:"revision" db:"revision"`
	ContentHash string    `json:"content_hash" db:"content_hash"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	ConfirmedAt time.Time `json:"confirmed_at" db:"confirmed_at"`
}

// PSpecRevisionSummary is one ledger entry for a specification revision,
// linked back to the brief revision and geometry it was built from.
type PSpecRevisionSummary struct {
	Revision    int           `json:"revision" db:"revision"`
	ContentHash string        `json:"content_hash" db:"content_hash"`
	DIBRevision int           `json:"dib_revision" db:"dib_revision"`
	DIBHash     string        `json:"dib_hash" db:"dib_hash"`
	CRGHash     string        `json:"crg_hash" db:"crg_hash"`
	Approval    Approval      `json:"approval"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

// GenerationResult records the opaque outcome of the most recent CAD
// regeneration run; retries and polling belong to the Onshape client.
type GenerationResult struct {
	PSpecRevision int       `json:"pspec_revision"`
	JobID         string    `json:"job_id"`
	Status        string    `json:"status"`
	Message       string    `json:"message,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// RunMetadata is the per-project ledger: the only mutable aggregate.
// Everything it points at is either the singular draft or an immutable,
// append-only revision.
type RunMetadata struct {
	ProjectID         uuid.UUID              `json:"project_id"`
	Name              string                 `json:"name,omitempty"`
	Geometry          *GeometryMeta          `json:"geometry,omitempty"`
	LatestDIBRevision int                    `json:"latest_dib_revision"`
	LatestPSpecRev    int                    `json:"latest_pspec_revision"`
	Approval          ApprovalPointer        `json:"approval"`
	DIBRevisions      []DIBRevisionSummary   `json:"dib_revisions"`
	PSpecRevisions    []PSpecRevisionSummary `json:"pspec_revisions"`
	LastGeneration    *GenerationResult      `json:"last_generation,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}
