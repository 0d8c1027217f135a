package onshape

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/models"
)

func mappableSpec() *models.ParametricSpecification {
	return &models.ParametricSpecification{
		PSpecVersion: models.PSpecVersion,
		ProjectID:    uuid.New(),
		Revision:     1,
		Inputs: models.SpecInputs{
			DIB: models.DIBInput{Revision: 1, ContentHash: "abc123"},
			CRG: models.GeometryMeta{
				Filename:    "concept.stl",
				Format:      models.GeometryFormatSTL,
				SizeBytes:   1024,
				ContentHash: "c0ffee",
				UploadedAt:  time.Now().UTC(),
			},
		},
		Overall:     models.OverallDimensions{WidthMM: 2000, HeightMM: 900, DepthMM: 450},
		Material:    models.MaterialSpec{Type: "plywood", ThicknessMM: 18},
		Constraints: models.BriefConstraints{BackClearanceMM: 25},
		Access:      models.AccessSpec{RearHatch: true},
		Output:      models.OutputSpec{Profile: "cad_only"},
		Components: models.SpecComponents{
			Speakers: models.SpeakerComponent{
				ComponentBase: models.ComponentBase{
					Kind:        models.ComponentSpeakers,
					ExternalMM:  models.ExternalDimensions{WidthMM: 180, HeightMM: 300, DepthMM: 250},
					ClearanceMM: models.UniformClearance(10),
				},
				Isolation: "pads",
			},
			Turntable: models.TurntableComponent{
				ComponentBase: models.ComponentBase{
					Kind:       models.ComponentTurntable,
					ExternalMM: models.ExternalDimensions{WidthMM: 450, HeightMM: 160, DepthMM: 380},
				},
				Isolation: "spikes",
			},
			Amplifier: models.AmplifierComponent{
				ComponentBase: models.ComponentBase{
					Kind:        models.ComponentAmplifier,
					ExternalMM:  models.ExternalDimensions{WidthMM: 430, HeightMM: 150, DepthMM: 350},
					ClearanceMM: models.UniformClearance(10),
				},
				Ventilation: "top",
			},
			Drawers: models.DrawerSpec{Count: 2, LPCapacity: 120},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestMapToVariables_HappyPath(t *testing.T) {
	result := MapToVariables(mappableSpec())
	require.True(t, result.OK)
	require.NotNil(t, result.Variables)
	assert.Empty(t, result.Errors)

	vars := result.Variables.Variables
	assert.Equal(t, models.OnshapeContractVersion, result.Variables.ContractVersion)
	assert.Equal(t, 1, result.Variables.PSpecRevision)

	assert.Equal(t, 2000, vars["OVERALL_W"])
	assert.Equal(t, 900, vars["OVERALL_H"])
	assert.Equal(t, 450, vars["OVERALL_D"])
	assert.Equal(t, 25, vars["OVERALL_BACK_CLEARANCE"])
	assert.Equal(t, 425, vars["OVERALL_AVAILABLE_DEPTH"])
	assert.Equal(t, 18, vars["MAT_THICKNESS"])
	assert.Equal(t, 1, vars["MAT_TYPE_CODE"])
	assert.Equal(t, 2, vars["VENT_DIR_CODE"])
	assert.Equal(t, 2, vars["DRAWER_COUNT"])
	assert.Equal(t, 120, vars["LP_CAPACITY"])
	assert.Equal(t, 1, vars["REAR_HATCH"])
	assert.Equal(t, 10, vars["SPK_L_CLR_F"])
	assert.Equal(t, 0, vars["TT_CLR_RR"])
}

func TestMapToVariables_SpeakerFanOut(t *testing.T) {
	result := MapToVariables(mappableSpec())
	require.True(t, result.OK)

	vars := result.Variables.Variables
	for _, suffix := range []string{"W", "H", "D", "CLR_L", "CLR_R", "CLR_T", "CLR_B", "CLR_F", "CLR_RR"} {
		assert.Equal(t, vars["SPK_L_"+suffix], vars["SPK_R_"+suffix], "suffix %s", suffix)
	}
}

func TestMapToVariables_Rounding(t *testing.T) {
	t.Run("round half away from zero", func(t *testing.T) {
		spec := mappableSpec()
		spec.Overall.WidthMM = 100.4
		spec.Overall.HeightMM = 100.5
		spec.Material.ThicknessMM = 18.5

		result := MapToVariables(spec)
		require.True(t, result.OK)
		assert.Equal(t, 100, result.Variables.Variables["OVERALL_W"])
		assert.Equal(t, 101, result.Variables.Variables["OVERALL_H"])
		assert.Equal(t, 19, result.Variables.Variables["MAT_THICKNESS"])
	})

	t.Run("available depth subtracts before rounding", func(t *testing.T) {
		// 450.7 - 25.4 = 425.3 rounds to 425; rounding each input first
		// would give 451 - 25 = 426.
		spec := mappableSpec()
		spec.Overall.DepthMM = 450.7
		spec.Constraints.BackClearanceMM = 25.4

		result := MapToVariables(spec)
		require.True(t, result.OK)
		assert.Equal(t, 425, result.Variables.Variables["OVERALL_AVAILABLE_DEPTH"])
		assert.Equal(t, 451, result.Variables.Variables["OVERALL_D"])
		assert.Equal(t, 25, result.Variables.Variables["OVERALL_BACK_CLEARANCE"])
	})
}

func TestMapToVariables_Idempotent(t *testing.T) {
	spec := mappableSpec()

	first := MapToVariables(spec)
	second := MapToVariables(spec)
	require.True(t, first.OK)
	require.True(t, second.OK)

	a, err := json.Marshal(first.Variables)
	require.NoError(t, err)
	b, err := json.Marshal(second.Variables)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestMapToVariables_UnknownEnum(t *testing.T) {
	spec := mappableSpec()
	spec.Material.Type = "bamboo"

	result := MapToVariables(spec)
	assert.False(t, result.OK)
	assert.Nil(t, result.Variables)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "MAT_TYPE_CODE", result.Errors[0].Variable)
	assert.Equal(t, "material.type", result.Errors[0].Pointer)
	assert.Equal(t, CodeInvalidValue, result.Errors[0].Code)
}

func TestMapToVariables_OutOfRange(t *testing.T) {
	spec := mappableSpec()
	spec.Components.Drawers.Count = 9

	result := MapToVariables(spec)
	assert.False(t, result.OK)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "DRAWER_COUNT", result.Errors[0].Variable)
	assert.Equal(t, CodeOutOfRange, result.Errors[0].Code)
}

func TestMapToVariables_AllOrNothing(t *testing.T) {
	spec := mappableSpec()
	spec.Material.Type = "bamboo"
	spec.Components.Amplifier.Ventilation = "bottom"
	spec.Components.Drawers.LPCapacity = 5000

	result := MapToVariables(spec)
	assert.False(t, result.OK)
	assert.Nil(t, result.Variables)
	require.Len(t, result.Errors, 3)

	// Errors sort by variable name.
	names := []string{result.Errors[0].Variable, result.Errors[1].Variable, result.Errors[2].Variable}
	assert.Equal(t, []string{"LP_CAPACITY", "MAT_TYPE_CODE", "VENT_DIR_CODE"}, names)
}

func TestMapToVariables_ProvenanceSources(t *testing.T) {
	result := MapToVariables(mappableSpec())
	require.True(t, result.OK)

	bySource := map[models.VariableSource][]string{}
	for _, entry := range result.Variables.Provenance {
		bySource[entry.Source] = append(bySource[entry.Source], entry.Name)
	}

	assert.Contains(t, bySource[models.SourceDIB], "OVERALL_W")
	assert.Contains(t, bySource[models.SourceDerived], "OVERALL_AVAILABLE_DEPTH")
	assert.Contains(t, bySource[models.SourceDerived], "SPK_L_CLR_F")
	assert.Contains(t, bySource[models.SourceDefault], "TT_CLR_L")
	assert.NotContains(t, bySource[models.SourceDefault], "AMP_CLR_L")
}

func TestMapToVariables_ProvenanceSorted(t *testing.T) {
	result := MapToVariables(mappableSpec())
	require.True(t, result.OK)

	names := make([]string, 0, len(result.Variables.Provenance))
	for _, entry := range result.Variables.Provenance {
		names = append(names, entry.Name)
	}
	assert.True(t, sort.StringsAreSorted(names))
	assert.Len(t, result.Variables.Variables, len(names))
}

func TestMapToVariables_FlagAndZeroValues(t *testing.T) {
	spec := mappableSpec()
	spec.Access.RearHatch = false
	spec.Components.Drawers = models.DrawerSpec{}

	result := MapToVariables(spec)
	require.True(t, result.OK)
	assert.Equal(t, 0, result.Variables.Variables["REAR_HATCH"])
	assert.Equal(t, 0, result.Variables.Variables["DRAWER_COUNT"])
	assert.Equal(t, 0, result.Variables.Variables["LP_CAPACITY"])
}
