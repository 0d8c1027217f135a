package models

// OnshapeContractVersion is the variable-contract version. It bumps only
// on breaking changes to variable naming, rounding, or units.
const OnshapeContractVersion = "0.1.0"

// VariableUnit is the unit tag carried by every mapped variable.
type VariableUnit string

const (
	UnitMM    VariableUnit = "mm"
	UnitCount VariableUnit = "count"
	UnitFlag  VariableUnit = "flag"
	UnitEnum  VariableUnit = "enum"
)

// VariableSource classifies where a mapped value came from. The three-way
// split is queried per variable by tests and the review UI; it must not
// collapse into a boolean.
type VariableSource string

const (
	SourceDIB     VariableSource = "DIB"
	SourceDefault VariableSource = "DEFAULT"
	SourceDerived VariableSource = "DERIVED"
)

// VariableProvenance records, for one variable, the value that was
// emitted, its unit, its source classification, and the specification
// field it was computed from.
type VariableProvenance struct {
	Name    string         `json:"name"`
	Value   int            `json:"value"`
	Unit    VariableUnit   `json:"unit"`
	Source  VariableSource `json:"source"`
	Pointer string         `json:"pointer"`
	Note    string         `json:"note,omitempty"`
}

// OnshapeVariableMap is the flat, integer-valued variable set handed to
// the parametric template, together with per-variable provenance sorted
// by variable name. It is produced whole or not at all.
type OnshapeVariableMap struct {
	ContractVersion string             `json:"onshape_template_contract_version"`
	PSpecRevision   int                `json:"pspec_revision"`
	Variables       map[string]int     `json:"variables"`
	Provenance      []VariableProvenance `json:"provenance"`
}
