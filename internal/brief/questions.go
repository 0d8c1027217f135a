// Package brief turns the untyped, path-addressed answer draft into a
// strictly typed, immutable Design Intent Brief revision.
package brief

// QuestionKind tags how an answer is validated and coerced.
type QuestionKind string

const (
	KindText         QuestionKind = "text"
	KindNumber       QuestionKind = "number"
	KindInteger      QuestionKind = "integer"
	KindBool         QuestionKind = "bool"
	KindEnum         QuestionKind = "enum"
	KindConfirmation QuestionKind = "confirmation"
)

// DependencyOp is the predicate kind a question may attach to another
// field's current value.
type DependencyOp string

const (
	DepEquals DependencyOp = "eq"
	DepGTE    DependencyOp = "gte"
)

// Dependency makes a question applicable only when the referenced path's
// value satisfies the predicate. Inapplicable questions are skipped for
// completeness purposes.
type Dependency struct {
	Path  string
	Op    DependencyOp
	Value interface{}
}

// Question is one entry of the fixed, ordered question schema. The
// normalizer is a single fold over this table plus the draft.
type Question struct {
	ID       string
	Path     string
	Kind     QuestionKind
	Required bool
	Min      float64
	Max      float64
	HasRange bool
	Options  []string
	DependsOn *Dependency
}

func numberQ(id, path string, min, max float64) Question {
	return Question{ID: id, Path: path, Kind: KindNumber, Required: true, Min: min, Max: max, HasRange: true}
}

func enumQ(id, path string, options ...string) Question {
	return Question{ID: id, Path: path, Kind: KindEnum, Required: true, Options: options}
}

// Questions is the interview schema, in the order the conversational UI
// asks them. Paths double as the draft's storage keys.
var Questions = []Question{
	{ID: "project_name", Path: "project.name", Kind: KindText, Required: false},
	numberQ("overall_width", "overall.width_mm", 300, 3000),
	numberQ("overall_height", "overall.height_mm", 300, 2400),
	numberQ("overall_depth", "overall.depth_mm", 250, 1000),
	enumQ("material_type", "material.type", "plywood", "mdf", "veneer_plywood", "other"),
	numberQ("material_thickness", "material.thickness_mm", 12, 40),
	numberQ("back_clearance", "constraints.back_clearance_mm", 0, 300),
	{ID: "rear_hatch", Path: "access.rear_hatch", Kind: KindBool, Required: true},
	numberQ("speaker_width", "components.speakers.width_mm", 50, 1500),
	numberQ("speaker_height", "components.speakers.height_mm", 50, 1500),
	numberQ("speaker_depth", "components.speakers.depth_mm", 50, 1500),
	enumQ("speaker_isolation", "components.speakers.isolation", "none", "pads", "spikes"),
	numberQ("turntable_width", "components.turntable.width_mm", 50, 1500),
	numberQ("turntable_height", "components.turntable.height_mm", 50, 1500),
	numberQ("turntable_depth", "components.turntable.depth_mm", 50, 1500),
	enumQ("turntable_isolation", "components.turntable.isolation", "none", "pads", "spikes"),
	numberQ("amplifier_width", "components.amplifier.width_mm", 50, 1500),
	numberQ("amplifier_height", "components.amplifier.height_mm", 50, 1500),
	numberQ("amplifier_depth", "components.amplifier.depth_mm", 50, 1500),
	enumQ("amplifier_ventilation", "components.amplifier.ventilation", "none", "rear", "top", "side"),
	numberQ("required_clearance", "components.required_clearance_mm", 0, 100),
	{ID: "drawer_count", Path: "storage.drawers.count", Kind: KindInteger, Required: true, Min: 0, Max: 6, HasRange: true},
	{ID: "lp_capacity", Path: "storage.drawers.lp_capacity", Kind: KindInteger, Required: true, Min: 0, Max: 3000, HasRange: true,
		DependsOn: &Dependency{Path: "storage.drawers.count", Op: DepGTE, Value: 1.0}},
	enumQ("output_profile", "output.profile", "cad_only", "cad_plus_drawings"),
	{ID: "drawing_format", Path: "output.drawing_format", Kind: KindEnum, Required: true, Options: []string{"pdf", "dxf"},
		DependsOn: &Dependency{Path: "output.profile", Op: DepEquals, Value: "cad_plus_drawings"}},
	{ID: "confirm", Path: "confirm", Kind: KindConfirmation, Required: true},
}
