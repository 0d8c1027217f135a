// Package pspec synthesizes parametric specification revisions from a
// confirmed brief and reference-geometry metadata.
package pspec

import (
	"fmt"
	"time"

	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/models"
)

// Synthesize builds the next specification revision from exactly one
// confirmed brief revision plus geometry metadata. It copies the brief's
// fields verbatim, expands the single scalar clearance to six sides for
// speakers and amplifier (DERIVED), and freezes the turntable clearance
// at all-zero (a DEFAULT of this pspec_version, not user-configurable).
//
// The brief is assumed to have passed normalization; business rules are
// re-checked by the validator, not here. The specification's revision
// counter is independent of the brief's.
func Synthesize(dib *models.DesignIntentBrief, crg models.GeometryMeta, priorRevisionCount int) (*models.ParametricSpecification, error) {
	dibHash, err := models.ContentHash(dib)
	if err != nil {
		return nil, fmt.Errorf("failed to hash brief revision: %w", err)
	}

	derived := models.UniformClearance(dib.Components.RequiredClearanceMM)

	spec := &models.ParametricSpecification{
		PSpecVersion: models.PSpecVersion,
		ProjectID:    dib.ProjectID,
		Revision:     priorRevisionCount + 1,
		Inputs: models.SpecInputs{
			DIB: models.DIBInput{Revision: dib.Revision, ContentHash: dibHash},
			CRG: crg,
		},
		Overall:     dib.Overall,
		Material:    dib.Material,
		Constraints: dib.Constraints,
		Access:      dib.Access,
		Output:      dib.Output,
		Components: models.SpecComponents{
			Speakers: models.SpeakerComponent{
				ComponentBase: models.ComponentBase{
					Kind:        models.ComponentSpeakers,
					ExternalMM:  external(dib.Components.Speakers.BriefDimensions),
					ClearanceMM: derived,
				},
				Isolation: dib.Components.Speakers.Isolation,
			},
			Turntable: models.TurntableComponent{
				ComponentBase: models.ComponentBase{
					Kind:        models.ComponentTurntable,
					ExternalMM:  external(dib.Components.Turntable.BriefDimensions),
					ClearanceMM: models.Clearance{},
				},
				Isolation: dib.Components.Turntable.Isolation,
			},
			Amplifier: models.AmplifierComponent{
				ComponentBase: models.ComponentBase{
					Kind:        models.ComponentAmplifier,
					ExternalMM:  external(dib.Components.Amplifier.BriefDimensions),
					ClearanceMM: derived,
				},
				Ventilation: dib.Components.Amplifier.Ventilation,
			},
			Drawers: dib.Storage.Drawers,
		},
		CreatedAt: time.Now().UTC(),
	}

	return spec, nil
}

func external(d models.BriefDimensions) models.ExternalDimensions {
	return models.ExternalDimensions{WidthMM: d.WidthMM, HeightMM: d.HeightMM, DepthMM: d.DepthMM}
}
