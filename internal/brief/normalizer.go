package brief

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/models"
)

// Normalize validates the draft against the question schema and, when it
// is complete and consistent, builds the next brief revision. A non-empty
// error list means nothing was built; incompleteness is data, not an
// exception, so the raw draft can always be saved regardless.
//
// Revision numbering is priorRevisionCount+1; the caller supplies the
// count from the ledger and the store enforces it on append.
func Normalize(projectID uuid.UUID, draft models.Draft, priorRevisionCount int) (*models.DesignIntentBrief, []models.ValidationError) {
	var errs []models.ValidationError

	for _, q := range Questions {
		if !applicable(q, draft) {
			continue
		}
		if verr := validateAnswer(q, draft); verr != nil {
			errs = append(errs, *verr)
		}
	}

	errs = append(errs, crossFieldErrors(draft)...)

	if len(errs) > 0 {
		return nil, errs
	}

	now := time.Now().UTC()
	dib := &models.DesignIntentBrief{
		DIBVersion: models.DIBVersion,
		ProjectID:  projectID,
		Revision:   priorRevisionCount + 1,
		Name:       asString(draft["project.name"]),
		Overall: models.OverallDimensions{
			WidthMM:  mustNumber(draft["overall.width_mm"]),
			HeightMM: mustNumber(draft["overall.height_mm"]),
			DepthMM:  mustNumber(draft["overall.depth_mm"]),
		},
		Material: models.MaterialSpec{
			Type:        asString(draft["material.type"]),
			ThicknessMM: mustNumber(draft["material.thickness_mm"]),
		},
		Constraints: models.BriefConstraints{
			BackClearanceMM: mustNumber(draft["constraints.back_clearance_mm"]),
		},
		Access: models.AccessSpec{
			RearHatch: asBoolValue(draft["access.rear_hatch"]),
		},
		Components: models.BriefComponents{
			Speakers: models.BriefSpeaker{
				BriefDimensions: dims(draft, "components.speakers"),
				Isolation:       asString(draft["components.speakers.isolation"]),
			},
			Turntable: models.BriefTurntable{
				BriefDimensions: dims(draft, "components.turntable"),
				Isolation:       asString(draft["components.turntable.isolation"]),
			},
			Amplifier: models.BriefAmplifier{
				BriefDimensions: dims(draft, "components.amplifier"),
				Ventilation:     asString(draft["components.amplifier.ventilation"]),
			},
			RequiredClearanceMM: mustNumber(draft["components.required_clearance_mm"]),
		},
		Storage: models.StorageSpec{
			Drawers: models.DrawerSpec{
				Count:      int(mustNumber(draft["storage.drawers.count"])),
				LPCapacity: int(mustNumber(draft["storage.drawers.lp_capacity"])),
			},
		},
		Output: models.OutputSpec{
			Profile:       asString(draft["output.profile"]),
			DrawingFormat: asString(draft["output.drawing_format"]),
		},
		Confirmed:   true,
		CreatedAt:   now,
		ConfirmedAt: now,
	}

	return dib, nil
}

// applicable evaluates the question's dependency predicate against the
// draft's current value for the referenced path.
func applicable(q Question, draft models.Draft) bool {
	if q.DependsOn == nil {
		return true
	}
	current, ok := draft[q.DependsOn.Path]
	if !ok {
		return false
	}
	switch q.DependsOn.Op {
	case DepEquals:
		return fmt.Sprintf("%v", current) == fmt.Sprintf("%v", q.DependsOn.Value)
	case DepGTE:
		cv, cok := asNumber(current)
		tv, tok := asNumber(q.DependsOn.Value)
		return cok && tok && cv >= tv
	default:
		return false
	}
}

func validateAnswer(q Question, draft models.Draft) *models.ValidationError {
	value, present := draft[q.Path]
	if !present || value == nil {
		if q.Required {
			return &models.ValidationError{Path: q.Path, Message: "answer is required"}
		}
		return nil
	}

	switch q.Kind {
	case KindConfirmation:
		b, ok := value.(bool)
		if !ok || !b {
			return &models.ValidationError{Path: q.Path, Message: "confirmation must be exactly true"}
		}
	case KindBool:
		if _, ok := value.(bool); !ok {
			return &models.ValidationError{Path: q.Path, Message: "value must be a boolean"}
		}
	case KindText:
		if _, ok := value.(string); !ok {
			return &models.ValidationError{Path: q.Path, Message: "value must be a string"}
		}
	case KindEnum:
		s, ok := value.(string)
		if !ok {
			return &models.ValidationError{Path: q.Path, Message: "value must be a string"}
		}
		for _, opt := range q.Options {
			if s == opt {
				return nil
			}
		}
		return &models.ValidationError{Path: q.Path, Message: fmt.Sprintf("value %q is not one of the allowed options", s)}
	case KindInteger:
		n, ok := asNumber(value)
		if !ok || n != math.Trunc(n) {
			return &models.ValidationError{Path: q.Path, Message: "value must be an integer"}
		}
		return rangeError(q, n)
	case KindNumber:
		n, ok := asNumber(value)
		if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
			return &models.ValidationError{Path: q.Path, Message: "value must be a finite number"}
		}
		return rangeError(q, n)
	}
	return nil
}

func rangeError(q Question, n float64) *models.ValidationError {
	if !q.HasRange {
		return nil
	}
	if n < q.Min || n > q.Max {
		return &models.ValidationError{
			Path:    q.Path,
			Message: fmt.Sprintf("value %v is outside the allowed range [%v, %v]", n, q.Min, q.Max),
		}
	}
	return nil
}

// crossFieldErrors applies rules spanning multiple paths. They only fire
// when both operands are present and numeric; per-question validation
// already reports missing or mistyped answers.
func crossFieldErrors(draft models.Draft) []models.ValidationError {
	var errs []models.ValidationError
	clearance, cok := asNumber(draft["constraints.back_clearance_mm"])
	depth, dok := asNumber(draft["overall.depth_mm"])
	if cok && dok && clearance >= depth {
		errs = append(errs, models.ValidationError{
			Path:    "constraints.back_clearance_mm",
			Message: fmt.Sprintf("back clearance (%v mm) must be strictly less than overall depth (%v mm)", clearance, depth),
		})
	}
	return errs
}

func dims(draft models.Draft, prefix string) models.BriefDimensions {
	return models.BriefDimensions{
		WidthMM:  mustNumber(draft[prefix+".width_mm"]),
		HeightMM: mustNumber(draft[prefix+".height_mm"]),
		DepthMM:  mustNumber(draft[prefix+".depth_mm"]),
	}
}

// asNumber coerces the untyped draft value forms a JSON decode can
// produce, plus native ints from in-process callers.
func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// mustNumber is only used after validation passed; unset optional paths
// coerce to zero.
func mustNumber(v interface{}) float64 {
	n, _ := asNumber(v)
	return n
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asBoolValue(v interface{}) bool {
	b, _ := v.(bool)
	return b
}
