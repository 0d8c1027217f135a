// Package onshape projects validated specifications into the flat
// variable contract of the parametric Onshape template and talks to the
// regeneration backend.
package onshape

import (
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/models"
)

// Enum code tables. Codes are part of the template contract version and
// only change together with a contract bump. Unknown values are mapping
// errors, never defaulted.
var (
	MaterialCodes = map[string]int{
		"plywood":        1,
		"mdf":            2,
		"veneer_plywood": 3,
		"other":          4,
	}

	VentilationCodes = map[string]int{
		"none": 0,
		"rear": 1,
		"top":  2,
		"side": 3,
	}
)

type variableKind int

const (
	kindDimension variableKind = iota
	kindCount
	kindFlag
	kindEnum
)

// variableSpec is one row of the template contract: a name, its unit and
// range, the source classification, the specification pointer it is
// computed from, and a resolver reading the raw value off the record.
//
// Dimensional values round half away from zero to integer millimeters
// (all inputs are non-negative, so ties round up). The derived available
// depth subtracts before rounding: round(depth − back_clearance). The
// manufacturability check runs on unrounded values, so the two can
// disagree by 1 mm at x.5 boundaries; that edge is pinned by tests, not
// silently reconciled.
type variableSpec struct {
	Name    string
	Kind    variableKind
	Unit    models.VariableUnit
	Source  models.VariableSource
	Pointer string
	Min     float64
	Max     float64
	Note    string
	Codes   map[string]int
	Resolve func(p *models.ParametricSpecification) interface{}
}

func dimVar(name, pointer string, min, max float64, source models.VariableSource, note string, f func(p *models.ParametricSpecification) float64) variableSpec {
	return variableSpec{
		Name: name, Kind: kindDimension, Unit: models.UnitMM, Source: source,
		Pointer: pointer, Min: min, Max: max, Note: note,
		Resolve: func(p *models.ParametricSpecification) interface{} { return f(p) },
	}
}

// clearanceVars expands one six-sided clearance into the per-side
// variables for a component prefix, rear suffixed RR to keep R for right.
func clearanceVars(prefix, pointer string, source models.VariableSource, note string, f func(p *models.ParametricSpecification) models.Clearance) []variableSpec {
	sides := []struct {
		suffix  string
		field   string
		extract func(c models.Clearance) float64
	}{
		{"CLR_L", "left_mm", func(c models.Clearance) float64 { return c.LeftMM }},
		{"CLR_R", "right_mm", func(c models.Clearance) float64 { return c.RightMM }},
		{"CLR_T", "top_mm", func(c models.Clearance) float64 { return c.TopMM }},
		{"CLR_B", "bottom_mm", func(c models.Clearance) float64 { return c.BottomMM }},
		{"CLR_F", "front_mm", func(c models.Clearance) float64 { return c.FrontMM }},
		{"CLR_RR", "rear_mm", func(c models.Clearance) float64 { return c.RearMM }},
	}
	out := make([]variableSpec, 0, len(sides))
	for _, s := range sides {
		extract := s.extract
		out = append(out, dimVar(prefix+"_"+s.suffix, pointer+"."+s.field, 0, 2000, source, note,
			func(p *models.ParametricSpecification) float64 { return extract(f(p)) }))
	}
	return out
}

func dimsVars(prefix, pointer string, f func(p *models.ParametricSpecification) models.ExternalDimensions) []variableSpec {
	return []variableSpec{
		dimVar(prefix+"_W", pointer+".width_mm", 1, 10000, models.SourceDIB, "",
			func(p *models.ParametricSpecification) float64 { return f(p).WidthMM }),
		dimVar(prefix+"_H", pointer+".height_mm", 1, 10000, models.SourceDIB, "",
			func(p *models.ParametricSpecification) float64 { return f(p).HeightMM }),
		dimVar(prefix+"_D", pointer+".depth_mm", 1, 10000, models.SourceDIB, "",
			func(p *models.ParametricSpecification) float64 { return f(p).DepthMM }),
	}
}

// contractVariables is the full required-variable table of contract
// version 0.1.0. The speaker pair is modeled once in the specification
// and deliberately fanned out into independent left and right variables.
func contractVariables() []variableSpec {
	speakerClearance := func(p *models.ParametricSpecification) models.Clearance {
		return p.Components.Speakers.ClearanceMM
	}
	speakerDims := func(p *models.ParametricSpecification) models.ExternalDimensions {
		return p.Components.Speakers.ExternalMM
	}

	vars := []variableSpec{
		dimVar("OVERALL_W", "overall.width_mm", 1, 10000, models.SourceDIB, "",
			func(p *models.ParametricSpecification) float64 { return p.Overall.WidthMM }),
		dimVar("OVERALL_H", "overall.height_mm", 1, 10000, models.SourceDIB, "",
			func(p *models.ParametricSpecification) float64 { return p.Overall.HeightMM }),
		dimVar("OVERALL_D", "overall.depth_mm", 1, 10000, models.SourceDIB, "",
			func(p *models.ParametricSpecification) float64 { return p.Overall.DepthMM }),
		dimVar("OVERALL_BACK_CLEARANCE", "constraints.back_clearance_mm", 0, 2000, models.SourceDIB, "",
			func(p *models.ParametricSpecification) float64 { return p.Constraints.BackClearanceMM }),
		dimVar("OVERALL_AVAILABLE_DEPTH", "overall.depth_mm", 1, 10000, models.SourceDerived,
			"round(overall.depth_mm - constraints.back_clearance_mm), subtract first then round once",
			func(p *models.ParametricSpecification) float64 { return p.AvailableDepthMM() }),
		dimVar("MAT_THICKNESS", "material.thickness_mm", 1, 10000, models.SourceDIB, "",
			func(p *models.ParametricSpecification) float64 { return p.Material.ThicknessMM }),
		{
			Name: "MAT_TYPE_CODE", Kind: kindEnum, Unit: models.UnitEnum, Source: models.SourceDIB,
			Pointer: "material.type", Codes: MaterialCodes,
			Resolve: func(p *models.ParametricSpecification) interface{} { return p.Material.Type },
		},
		{
			Name: "VENT_DIR_CODE", Kind: kindEnum, Unit: models.UnitEnum, Source: models.SourceDIB,
			Pointer: "components.amplifier.ventilation", Codes: VentilationCodes,
			Resolve: func(p *models.ParametricSpecification) interface{} { return p.Components.Amplifier.Ventilation },
		},
		{
			Name: "DRAWER_COUNT", Kind: kindCount, Unit: models.UnitCount, Source: models.SourceDIB,
			Pointer: "components.drawers.count", Min: 0, Max: 6,
			Resolve: func(p *models.ParametricSpecification) interface{} { return p.Components.Drawers.Count },
		},
		{
			Name: "LP_CAPACITY", Kind: kindCount, Unit: models.UnitCount, Source: models.SourceDIB,
			Pointer: "components.drawers.lp_capacity", Min: 0, Max: 3000,
			Resolve: func(p *models.ParametricSpecification) interface{} { return p.Components.Drawers.LPCapacity },
		},
		{
			Name: "REAR_HATCH", Kind: kindFlag, Unit: models.UnitFlag, Source: models.SourceDIB,
			Pointer: "access.rear_hatch", Min: 0, Max: 1,
			Resolve: func(p *models.ParametricSpecification) interface{} { return p.Access.RearHatch },
		},
	}

	// Left and right speakers share one symmetric specification record.
	vars = append(vars, dimsVars("SPK_L", "components.speakers.external_mm", speakerDims)...)
	vars = append(vars, dimsVars("SPK_R", "components.speakers.external_mm", speakerDims)...)
	vars = append(vars, clearanceVars("SPK_L", "components.speakers.clearance_mm", models.SourceDerived,
		"expanded from components.required_clearance_mm", speakerClearance)...)
	vars = append(vars, clearanceVars("SPK_R", "components.speakers.clearance_mm", models.SourceDerived,
		"expanded from components.required_clearance_mm", speakerClearance)...)

	vars = append(vars, dimsVars("TT", "components.turntable.external_mm",
		func(p *models.ParametricSpecification) models.ExternalDimensions { return p.Components.Turntable.ExternalMM })...)
	vars = append(vars, clearanceVars("TT", "components.turntable.clearance_mm", models.SourceDefault,
		"fixed zero clearance for this pspec_version",
		func(p *models.ParametricSpecification) models.Clearance { return p.Components.Turntable.ClearanceMM })...)

	vars = append(vars, dimsVars("AMP", "components.amplifier.external_mm",
		func(p *models.ParametricSpecification) models.ExternalDimensions { return p.Components.Amplifier.ExternalMM })...)
	vars = append(vars, clearanceVars("AMP", "components.amplifier.clearance_mm", models.SourceDerived,
		"expanded from components.required_clearance_mm",
		func(p *models.ParametricSpecification) models.Clearance { return p.Components.Amplifier.ClearanceMM })...)

	return vars
}
