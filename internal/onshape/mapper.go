package onshape

import (
	"fmt"
	"math"
	"sort"

	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/models"
)

// Mapping error codes.
const (
	CodeInvalidValue = "INVALID_VALUE"
	CodeOutOfRange   = "OUT_OF_RANGE"
)

// MappingError is one variable that failed its numeric, range, or enum
// contract, named by both the variable and the specification pointer.
type MappingError struct {
	Variable string `json:"variable"`
	Pointer  string `json:"pointer"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

func (e MappingError) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Variable, e.Code, e.Message)
}

// MappingResult is the all-or-nothing outcome of a mapping pass. When OK
// is false, Variables and Provenance are absent; partial variable sets
// are never returned or persisted.
type MappingResult struct {
	OK         bool                        `json:"ok"`
	Variables  *models.OnshapeVariableMap  `json:"variables,omitempty"`
	Errors     []MappingError              `json:"errors,omitempty"`
}

// MapToVariables deterministically projects a schema-valid specification
// into the template's variable contract. Every variable is checked in a
// single pass (no short-circuiting), values are rounded half away from
// zero to integer millimeters, range violations are errors rather than
// clamps, and unknown enum values fail with INVALID_VALUE instead of a
// default code. Variables, provenance, and errors sort by variable name
// so identical inputs yield byte-identical output across runs.
func MapToVariables(p *models.ParametricSpecification) MappingResult {
	specs := contractVariables()

	var errs []MappingError
	entries := make([]models.VariableProvenance, 0, len(specs))

	for _, vs := range specs {
		value, merr := resolveVariable(vs, p)
		if merr != nil {
			errs = append(errs, *merr)
			continue
		}
		entries = append(entries, models.VariableProvenance{
			Name:    vs.Name,
			Value:   value,
			Unit:    vs.Unit,
			Source:  vs.Source,
			Pointer: vs.Pointer,
			Note:    vs.Note,
		})
	}

	if len(errs) > 0 {
		sort.Slice(errs, func(i, j int) bool { return errs[i].Variable < errs[j].Variable })
		return MappingResult{OK: false, Errors: errs}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	variables := make(map[string]int, len(entries))
	for _, e := range entries {
		variables[e.Name] = e.Value
	}

	return MappingResult{
		OK: true,
		Variables: &models.OnshapeVariableMap{
			ContractVersion: models.OnshapeContractVersion,
			PSpecRevision:   p.Revision,
			Variables:       variables,
			Provenance:      entries,
		},
	}
}

func resolveVariable(vs variableSpec, p *models.ParametricSpecification) (int, *MappingError) {
	raw := vs.Resolve(p)

	switch vs.Kind {
	case kindDimension:
		v, ok := raw.(float64)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, &MappingError{Variable: vs.Name, Pointer: vs.Pointer, Code: CodeInvalidValue,
				Message: "value is not a finite number"}
		}
		rounded := int(math.Round(v))
		return rangeCheck(vs, rounded)
	case kindCount:
		v, ok := raw.(int)
		if !ok {
			return 0, &MappingError{Variable: vs.Name, Pointer: vs.Pointer, Code: CodeInvalidValue,
				Message: "value is not an integer"}
		}
		return rangeCheck(vs, v)
	case kindFlag:
		v, ok := raw.(bool)
		if !ok {
			return 0, &MappingError{Variable: vs.Name, Pointer: vs.Pointer, Code: CodeInvalidValue,
				Message: "value is not a boolean"}
		}
		if v {
			return 1, nil
		}
		return 0, nil
	case kindEnum:
		s, ok := raw.(string)
		if !ok {
			return 0, &MappingError{Variable: vs.Name, Pointer: vs.Pointer, Code: CodeInvalidValue,
				Message: "value is not a string"}
		}
		code, known := vs.Codes[s]
		if !known {
			return 0, &MappingError{Variable: vs.Name, Pointer: vs.Pointer, Code: CodeInvalidValue,
				Message: fmt.Sprintf("value %q has no code in the template contract", s)}
		}
		return code, nil
	default:
		return 0, &MappingError{Variable: vs.Name, Pointer: vs.Pointer, Code: CodeInvalidValue,
			Message: "unknown variable kind"}
	}
}

func rangeCheck(vs variableSpec, v int) (int, *MappingError) {
	if float64(v) < vs.Min || float64(v) > vs.Max {
		return 0, &MappingError{Variable: vs.Name, Pointer: vs.Pointer, Code: CodeOutOfRange,
			Message: fmt.Sprintf("value %d is outside the allowed range [%.0f, %.0f]", v, vs.Min, vs.Max)}
	}
	return v, nil
}
