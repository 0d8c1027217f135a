package validate

import (
	"fmt"

	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/models"
)

// MinLPDrawerDepthMM is the shallowest cabinet interior that still fits a
// 12" record drawer with runner hardware.
const MinLPDrawerDepthMM = 330.0

// ManufacturabilityResult reports feasibility as a batch: every violated
// rule appears, so the user can correct the brief in one pass.
type ManufacturabilityResult struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
}

// Manufacturability runs the derived-quantity feasibility checks on
// unrounded specification values. The rules run independently rather than
// short-circuiting, except that component and drawer depth checks are
// meaningless when the available depth itself is not positive.
func Manufacturability(p *models.ParametricSpecification) ManufacturabilityResult {
	var errs []string

	available := p.AvailableDepthMM()
	if available <= 0 {
		errs = append(errs, fmt.Sprintf(
			"available depth must be positive: overall depth %.1f mm minus back clearance %.1f mm leaves %.1f mm",
			p.Overall.DepthMM, p.Constraints.BackClearanceMM, available))
	} else {
		components := []struct {
			name string
			base models.ComponentBase
		}{
			{"speakers", p.Components.Speakers.ComponentBase},
			{"amplifier", p.Components.Amplifier.ComponentBase},
			{"turntable", p.Components.Turntable.ComponentBase},
		}
		for _, c := range components {
			need := c.base.ExternalMM.DepthMM + c.base.ClearanceMM.FrontMM + c.base.ClearanceMM.RearMM
			if need > available {
				errs = append(errs, fmt.Sprintf(
					"%s needs %.1f mm of depth (envelope plus front/rear clearance) but only %.1f mm is available",
					c.name, need, available))
			}
		}

		if p.Components.Drawers.Count > 0 && available < MinLPDrawerDepthMM {
			errs = append(errs, fmt.Sprintf(
				"LP drawers need at least %.0f mm of available depth, have %.1f mm",
				MinLPDrawerDepthMM, available))
		}
	}

	if len(errs) > 0 {
		return ManufacturabilityResult{OK: false, Errors: errs}
	}
	return ManufacturabilityResult{OK: true}
}
