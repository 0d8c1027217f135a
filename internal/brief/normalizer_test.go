package brief

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/models"
)

// completeDraft returns a draft that passes every question. Tests mutate
// copies of it to trigger specific failures.
func completeDraft() models.Draft {
	return models.Draft{
		"project.name":                       "Listening Room Cabinet",
		"overall.width_mm":                   2000.0,
		"overall.height_mm":                  900.0,
		"overall.depth_mm":                   450.0,
		"material.type":                      "plywood",
		"material.thickness_mm":              18.0,
		"constraints.back_clearance_mm":      25.0,
		"access.rear_hatch":                  true,
		"components.speakers.width_mm":       180.0,
		"components.speakers.height_mm":      300.0,
		"components.speakers.depth_mm":       250.0,
		"components.speakers.isolation":      "pads",
		"components.turntable.width_mm":      450.0,
		"components.turntable.height_mm":     160.0,
		"components.turntable.depth_mm":      380.0,
		"components.turntable.isolation":     "spikes",
		"components.amplifier.width_mm":      430.0,
		"components.amplifier.height_mm":     150.0,
		"components.amplifier.depth_mm":      350.0,
		"components.amplifier.ventilation":   "top",
		"components.required_clearance_mm":   10.0,
		"storage.drawers.count":              2.0,
		"storage.drawers.lp_capacity":        120.0,
		"output.profile":                     "cad_only",
		"confirm":                            true,
	}
}

func TestNormalize_CompleteDraft(t *testing.T) {
	projectID := uuid.New()

	dib, errs := Normalize(projectID, completeDraft(), 0)
	require.Empty(t, errs)
	require.NotNil(t, dib)

	assert.Equal(t, models.DIBVersion, dib.DIBVersion)
	assert.Equal(t, projectID, dib.ProjectID)
	assert.Equal(t, 1, dib.Revision)
	assert.Equal(t, "Listening Room Cabinet", dib.Name)
	assert.Equal(t, 2000.0, dib.Overall.WidthMM)
	assert.Equal(t, 450.0, dib.Overall.DepthMM)
	assert.Equal(t, "plywood", dib.Material.Type)
	assert.Equal(t, 25.0, dib.Constraints.BackClearanceMM)
	assert.True(t, dib.Access.RearHatch)
	assert.Equal(t, 10.0, dib.Components.RequiredClearanceMM)
	assert.Equal(t, "top", dib.Components.Amplifier.Ventilation)
	assert.Equal(t, 2, dib.Storage.Drawers.Count)
	assert.Equal(t, 120, dib.Storage.Drawers.LPCapacity)
	assert.True(t, dib.Confirmed)
	assert.Equal(t, dib.CreatedAt, dib.ConfirmedAt)
}

func TestNormalize_RevisionNumbering(t *testing.T) {
	dib, errs := Normalize(uuid.New(), completeDraft(), 4)
	require.Empty(t, errs)
	assert.Equal(t, 5, dib.Revision)
}

func TestNormalize_MissingRequiredAnswers(t *testing.T) {
	draft := completeDraft()
	delete(draft, "overall.width_mm")
	delete(draft, "material.type")

	dib, errs := Normalize(uuid.New(), draft, 0)
	assert.Nil(t, dib)
	require.Len(t, errs, 2)
	assert.Equal(t, "overall.width_mm", errs[0].Path)
	assert.Equal(t, "material.type", errs[1].Path)
	assert.Equal(t, "answer is required", errs[0].Message)
}

func TestNormalize_OptionalNameMayBeAbsent(t *testing.T) {
	draft := completeDraft()
	delete(draft, "project.name")

	dib, errs := Normalize(uuid.New(), draft, 0)
	require.Empty(t, errs)
	assert.Empty(t, dib.Name)
}

func TestNormalize_AnswerValidation(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		value   interface{}
		message string
	}{
		{"number below range", "overall.width_mm", 200.0, "outside the allowed range"},
		{"number above range", "overall.depth_mm", 1200.0, "outside the allowed range"},
		{"number wrong type", "overall.height_mm", "tall", "finite number"},
		{"enum not in options", "material.type", "bamboo", "not one of the allowed options"},
		{"enum wrong type", "components.speakers.isolation", 3.0, "must be a string"},
		{"bool wrong type", "access.rear_hatch", "yes", "must be a boolean"},
		{"integer fractional", "storage.drawers.count", 2.5, "must be an integer"},
		{"integer above range", "storage.drawers.count", 7.0, "outside the allowed range"},
		{"confirmation false", "confirm", false, "exactly true"},
		{"confirmation wrong type", "confirm", "true", "exactly true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := completeDraft()
			draft[tt.path] = tt.value

			dib, errs := Normalize(uuid.New(), draft, 0)
			assert.Nil(t, dib)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.path, errs[0].Path)
			assert.Contains(t, errs[0].Message, tt.message)
		})
	}
}

func TestNormalize_AllErrorsReported(t *testing.T) {
	draft := completeDraft()
	draft["overall.width_mm"] = 100.0
	draft["material.type"] = "bamboo"
	delete(draft, "confirm")

	dib, errs := Normalize(uuid.New(), draft, 0)
	assert.Nil(t, dib)
	assert.Len(t, errs, 3)
}

func TestNormalize_Dependencies(t *testing.T) {
	t.Run("lp_capacity skipped when no drawers", func(t *testing.T) {
		draft := completeDraft()
		draft["storage.drawers.count"] = 0.0
		delete(draft, "storage.drawers.lp_capacity")

		dib, errs := Normalize(uuid.New(), draft, 0)
		require.Empty(t, errs)
		assert.Equal(t, 0, dib.Storage.Drawers.Count)
		assert.Equal(t, 0, dib.Storage.Drawers.LPCapacity)
	})

	t.Run("lp_capacity required once drawers requested", func(t *testing.T) {
		draft := completeDraft()
		delete(draft, "storage.drawers.lp_capacity")

		dib, errs := Normalize(uuid.New(), draft, 0)
		assert.Nil(t, dib)
		require.Len(t, errs, 1)
		assert.Equal(t, "storage.drawers.lp_capacity", errs[0].Path)
	})

	t.Run("drawing_format required only for cad_plus_drawings", func(t *testing.T) {
		draft := completeDraft()
		draft["output.profile"] = "cad_plus_drawings"

		dib, errs := Normalize(uuid.New(), draft, 0)
		assert.Nil(t, dib)
		require.Len(t, errs, 1)
		assert.Equal(t, "output.drawing_format", errs[0].Path)

		draft["output.drawing_format"] = "pdf"
		dib, errs = Normalize(uuid.New(), draft, 0)
		require.Empty(t, errs)
		assert.Equal(t, "pdf", dib.Output.DrawingFormat)
	})
}

func TestNormalize_CrossFieldBackClearance(t *testing.T) {
	t.Run("clearance equal to depth is rejected", func(t *testing.T) {
		draft := completeDraft()
		draft["overall.depth_mm"] = 300.0
		draft["constraints.back_clearance_mm"] = 300.0

		dib, errs := Normalize(uuid.New(), draft, 0)
		assert.Nil(t, dib)
		require.Len(t, errs, 1)
		assert.Equal(t, "constraints.back_clearance_mm", errs[0].Path)
		assert.Contains(t, errs[0].Message, "strictly less than overall depth")
	})

	t.Run("clearance just below depth passes", func(t *testing.T) {
		draft := completeDraft()
		draft["overall.depth_mm"] = 300.0
		draft["constraints.back_clearance_mm"] = 299.0

		_, errs := Normalize(uuid.New(), draft, 0)
		assert.Empty(t, errs)
	})
}

func TestNormalize_IntegerCoercion(t *testing.T) {
	// In-process callers may hand native ints instead of JSON float64s.
	draft := completeDraft()
	draft["storage.drawers.count"] = 3
	draft["storage.drawers.lp_capacity"] = int64(200)

	dib, errs := Normalize(uuid.New(), draft, 0)
	require.Empty(t, errs)
	assert.Equal(t, 3, dib.Storage.Drawers.Count)
	assert.Equal(t, 200, dib.Storage.Drawers.LPCapacity)
}
