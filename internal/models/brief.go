package models

import (
	"time"

	"github.com/google/uuid"
)

// DIBVersion is the serialization version stamped into every brief revision.
const DIBVersion = "0.1.0"

// Draft is the single mutable, partially filled answer document for a
// project. Values are keyed by the dotted store paths of the question
// schema and stay untyped until confirmation. Saving a draft overwrites
// the previous one; drafts carry no revision history.
type Draft map[string]interface{}

// Clone returns a shallow copy so callers can mutate without aliasing the
// stored document.
func (d Draft) Clone() Draft {
	out := make(Draft, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// OverallDimensions are the cabinet's outer bounding dimensions.
type OverallDimensions struct {
	WidthMM  float64 `json:"width_mm" db:"width_mm" validate:"required,gt=0"`
	HeightMM float64 `json:"height_mm" db:"height_mm" validate:"required,gt=0"`
	DepthMM  float64 `json:"depth_mm" db:"depth_mm" validate:"required,gt=0"`
}

// MaterialSpec identifies the carcass material.
type MaterialSpec struct {
	Type        string  `json:"type" db:"type" validate:"required,oneof=plywood mdf veneer_plywood other"`
	ThicknessMM float64 `json:"thickness_mm" db:"thickness_mm" validate:"required,gt=0"`
}

// BriefConstraints holds reserved distances that bound component placement.
type BriefConstraints struct {
	BackClearanceMM float64 `json:"back_clearance_mm" db:"back_clearance_mm" validate:"gte=0"`
}

// AccessSpec captures serviceability choices.
type AccessSpec struct {
	RearHatch bool `json:"rear_hatch" db:"rear_hatch"`
}

// OutputSpec selects what the downstream CAD run produces.
type OutputSpec struct {
	Profile       string `json:"profile" db:"profile" validate:"required,oneof=cad_only cad_plus_drawings"`
	DrawingFormat string `json:"drawing_format,omitempty" db:"drawing_format" validate:"omitempty,oneof=pdf dxf"`
}

// BriefDimensions are the external envelope of one equipment item as the
// user stated it; clearances are not part of the brief envelope.
type BriefDimensions struct {
	WidthMM  float64 `json:"width_mm"`
	HeightMM float64 `json:"height_mm"`
	DepthMM  float64 `json:"depth_mm"`
}

// BriefComponents lists the equipment the cabinet must house. The single
// scalar clearance applies to speakers and amplifier; the synthesizer
// expands it to six sides.
type BriefComponents struct {
	Speakers            BriefSpeaker   `json:"speakers"`
	Turntable           BriefTurntable `json:"turntable"`
	Amplifier           BriefAmplifier `json:"amplifier"`
	RequiredClearanceMM float64        `json:"required_clearance_mm"`
}

// BriefSpeaker describes the (symmetric) speaker pair.
type BriefSpeaker struct {
	BriefDimensions
	Isolation string `json:"isolation"`
}

// BriefTurntable describes the turntable shelf occupant.
type BriefTurntable struct {
	BriefDimensions
	Isolation string `json:"isolation"`
}

// BriefAmplifier describes the amplifier and its venting direction.
type BriefAmplifier struct {
	BriefDimensions
	Ventilation string `json:"ventilation"`
}

// DrawerSpec sizes the LP drawer bank.
type DrawerSpec struct {
	Count      int `json:"count" validate:"gte=0,lte=6"`
	LPCapacity int `json:"lp_capacity" validate:"gte=0,lte=3000"`
}

// StorageSpec groups storage requests.
type StorageSpec struct {
	Drawers DrawerSpec `json:"drawers"`
}

// DesignIntentBrief is the fully typed, user-confirmed brief. A revision,
// once written, is never mutated; later answers create new revisions with
// strictly increasing numbers.
type DesignIntentBrief struct {
	DIBVersion  string            `json:"dib_version"`
	ProjectID   uuid.UUID         `json:"project_id"`
	Revision    int               `json:"revision"`
	Name        string            `json:"name,omitempty"`
	Overall     OverallDimensions `json:"overall"`
	Material    MaterialSpec      `json:"material"`
	Constraints BriefConstraints  `json:"constraints"`
	Access      AccessSpec        `json:"access"`
	Components  BriefComponents   `json:"components"`
	Storage     StorageSpec       `json:"storage"`
	Output      OutputSpec        `json:"output"`
	Confirmed   bool              `json:"confirmed"`
	CreatedAt   time.Time         `json:"created_at"`
	ConfirmedAt time.Time         `json:"confirmed_at"`
}
