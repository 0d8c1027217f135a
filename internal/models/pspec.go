package models

import (
	"time"

	"github.com/google/uuid"
)

// PSpecVersion is the serialization version stamped into every
// parametric specification revision.
const PSpecVersion = "0.1.0"

// GeometryFormat enumerates the accepted reference-mesh formats.
type GeometryFormat string

const (
	GeometryFormatSTL  GeometryFormat = "stl"
	GeometryFormatOBJ  GeometryFormat = "obj"
	GeometryFormatGLTF GeometryFormat = "gltf"
)

// GeometryMeta is the provenance of the uploaded concept reference
// geometry. Only metadata crosses into the pipeline; the mesh payload
// never contributes dimensions.
type GeometryMeta struct {
	Filename    string         `json:"filename" validate:"required"`
	Format      GeometryFormat `json:"format" validate:"required,oneof=stl obj gltf"`
	SizeBytes   int64          `json:"size_bytes" validate:"gte=0"`
	ContentHash string         `json:"content_hash" validate:"required"`
	UploadedAt  time.Time      `json:"uploaded_at"`
}

// DIBInput records which brief revision a specification was synthesized
// from, pinned by the content hash of its canonical serialization.
type DIBInput struct {
	Revision    int    `json:"revision" validate:"required,gte=1"`
	ContentHash string `json:"content_hash" validate:"required"`
}

// SpecInputs is the full input provenance of a specification revision.
type SpecInputs struct {
	DIB DIBInput     `json:"dib" validate:"required"`
	CRG GeometryMeta `json:"crg" validate:"required"`
}

// Clearance is a six-sided envelope around a component, in millimeters.
type Clearance struct {
	LeftMM   float64 `json:"left_mm" validate:"gte=0"`
	RightMM  float64 `json:"right_mm" validate:"gte=0"`
	TopMM    float64 `json:"top_mm" validate:"gte=0"`
	BottomMM float64 `json:"bottom_mm" validate:"gte=0"`
	FrontMM  float64 `json:"front_mm" validate:"gte=0"`
	RearMM   float64 `json:"rear_mm" validate:"gte=0"`
}

// UniformClearance builds a symmetric six-sided envelope from one scalar.
func UniformClearance(mm float64) Clearance {
	return Clearance{LeftMM: mm, RightMM: mm, TopMM: mm, BottomMM: mm, FrontMM: mm, RearMM: mm}
}

// ComponentKind tags the closed set of black-box component variants.
type ComponentKind string

const (
	ComponentSpeakers  ComponentKind = "speakers"
	ComponentTurntable ComponentKind = "turntable"
	ComponentAmplifier ComponentKind = "amplifier"
)

// ExternalDimensions is the outer envelope of a black-box component.
type ExternalDimensions struct {
	WidthMM  float64 `json:"width_mm" validate:"required,gt=0"`
	HeightMM float64 `json:"height_mm" validate:"required,gt=0"`
	DepthMM  float64 `json:"depth_mm" validate:"required,gt=0"`
}

// ComponentBase is the shape every black-box component shares: an
// external envelope plus a frozen six-sided clearance. Variant fields
// (isolation, ventilation) live on the concrete component types.
type ComponentBase struct {
	Kind        ComponentKind      `json:"kind" validate:"required,oneof=speakers turntable amplifier"`
	ExternalMM  ExternalDimensions `json:"external_mm" validate:"required"`
	ClearanceMM Clearance          `json:"clearance_mm"`
}

// SpeakerComponent models the symmetric speaker pair as one record; the
// mapper fans it out into left and right variables.
type SpeakerComponent struct {
	ComponentBase
	Isolation string `json:"isolation" validate:"required,oneof=none pads spikes"`
}

// TurntableComponent models the turntable occupant.
type TurntableComponent struct {
	ComponentBase
	Isolation string `json:"isolation" validate:"required,oneof=none pads spikes"`
}

// AmplifierComponent models the amplifier and its venting direction.
type AmplifierComponent struct {
	ComponentBase
	Ventilation string `json:"ventilation" validate:"required,oneof=none rear top side"`
}

// SpecComponents is the components section of a specification.
type SpecComponents struct {
	Speakers  SpeakerComponent   `json:"speakers" validate:"required"`
	Turntable TurntableComponent `json:"turntable" validate:"required"`
	Amplifier AmplifierComponent `json:"amplifier" validate:"required"`
	Drawers   DrawerSpec         `json:"drawers"`
}

// ParametricSpecification is the authoritative, immutable-once-written
// synthesis of one brief revision and the reference-geometry metadata.
// Derived values (six-sided clearances, turntable default clearance) are
// computed once at synthesis time and frozen into the record.
type ParametricSpecification struct {
	PSpecVersion string            `json:"pspec_version" validate:"required"`
	ProjectID    uuid.UUID         `json:"project_id" validate:"required"`
	Revision     int               `json:"revision" validate:"required,gte=1"`
	Inputs       SpecInputs        `json:"inputs" validate:"required"`
	Overall      OverallDimensions `json:"overall" validate:"required"`
	Material     MaterialSpec      `json:"material" validate:"required"`
	Constraints  BriefConstraints  `json:"constraints"`
	Access       AccessSpec        `json:"access"`
	Output       OutputSpec        `json:"output" validate:"required"`
	Components   SpecComponents    `json:"components" validate:"required"`
	CreatedAt    time.Time         `json:"created_at"`
}

// AvailableDepthMM is the binding depth-wise feasibility quantity:
// cabinet depth minus reserved rear clearance, on unrounded values.
func (p *ParametricSpecification) AvailableDepthMM() float64 {
	return p.Overall.DepthMM - p.Constraints.BackClearanceMM
}
