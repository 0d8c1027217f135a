package pspec

import (
	"fmt"
	"strings"

	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/models"
)

// Summary renders the human-readable markdown companion of a
// specification revision. It is a pure projection of the record: every
// figure comes straight from the PSPEC, so it can never diverge from it.
func Summary(p *models.ParametricSpecification) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Parametric Specification - revision %d\n\n", p.Revision)
	fmt.Fprintf(&b, "- Project: `%s`\n", p.ProjectID)
	fmt.Fprintf(&b, "- Spec version: %s\n", p.PSpecVersion)
	fmt.Fprintf(&b, "- Built from brief revision %d (`%s`)\n", p.Inputs.DIB.Revision, p.Inputs.DIB.ContentHash)
	fmt.Fprintf(&b, "- Reference geometry: %s (%s, %d bytes, `%s`)\n\n",
		p.Inputs.CRG.Filename, p.Inputs.CRG.Format, p.Inputs.CRG.SizeBytes, p.Inputs.CRG.ContentHash)

	b.WriteString("## Cabinet\n\n")
	fmt.Fprintf(&b, "| | mm |\n|---|---|\n")
	fmt.Fprintf(&b, "| Width | %s |\n", mm(p.Overall.WidthMM))
	fmt.Fprintf(&b, "| Height | %s |\n", mm(p.Overall.HeightMM))
	fmt.Fprintf(&b, "| Depth | %s |\n", mm(p.Overall.DepthMM))
	fmt.Fprintf(&b, "| Back clearance | %s |\n", mm(p.Constraints.BackClearanceMM))
	fmt.Fprintf(&b, "| Available depth | %s |\n\n", mm(p.AvailableDepthMM()))
	fmt.Fprintf(&b, "Material: %s, %s mm panels. Rear hatch: %s.\n\n",
		p.Material.Type, mm(p.Material.ThicknessMM), yesNo(p.Access.RearHatch))

	b.WriteString("## Components\n\n")
	writeComponent(&b, "Speaker pair", p.Components.Speakers.ComponentBase,
		"isolation: "+p.Components.Speakers.Isolation)
	writeComponent(&b, "Turntable", p.Components.Turntable.ComponentBase,
		"isolation: "+p.Components.Turntable.Isolation)
	writeComponent(&b, "Amplifier", p.Components.Amplifier.ComponentBase,
		"ventilation: "+p.Components.Amplifier.Ventilation)

	if p.Components.Drawers.Count > 0 {
		fmt.Fprintf(&b, "### Drawers\n\n%d LP drawer(s), capacity %d records.\n\n",
			p.Components.Drawers.Count, p.Components.Drawers.LPCapacity)
	} else {
		b.WriteString("### Drawers\n\nNo drawers.\n\n")
	}

	fmt.Fprintf(&b, "## Output\n\nProfile: %s", p.Output.Profile)
	if p.Output.DrawingFormat != "" {
		fmt.Fprintf(&b, " (drawings: %s)", p.Output.DrawingFormat)
	}
	b.WriteString("\n")

	return b.String()
}

func writeComponent(b *strings.Builder, title string, c models.ComponentBase, extra string) {
	fmt.Fprintf(b, "### %s\n\n", title)
	fmt.Fprintf(b, "External %s × %s × %s mm (W×H×D), %s.\n\n",
		mm(c.ExternalMM.WidthMM), mm(c.ExternalMM.HeightMM), mm(c.ExternalMM.DepthMM), extra)
	fmt.Fprintf(b, "Clearance (L/R/T/B/F/Rear): %s / %s / %s / %s / %s / %s mm.\n\n",
		mm(c.ClearanceMM.LeftMM), mm(c.ClearanceMM.RightMM), mm(c.ClearanceMM.TopMM),
		mm(c.ClearanceMM.BottomMM), mm(c.ClearanceMM.FrontMM), mm(c.ClearanceMM.RearMM))
}

// mm prints millimeters without a trailing ".0" for whole values so the
// summary stays stable and diffable across runs.
func mm(v float64) string {
	return strings.TrimSuffix(fmt.Sprintf("%.1f", v), ".0")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
