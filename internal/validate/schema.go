// Package validate holds the two independent specification checks:
// structural schema conformance and manufacturability feasibility. Both
// must pass before a specification revision is persisted as usable.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/models"
)

var specValidate = newSpecValidator()

// newSpecValidator configures a validator that reports field paths by
// their JSON names so errors point at serialized fields, not Go idents.
func newSpecValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Schema checks the specification against its structural contract:
// required fields, primitive types, enum membership, numeric formats.
// Synthesis from a normalized brief should never produce a violation;
// the check exists as an independent safety net. Any non-empty result is
// a hard failure for the generation attempt.
func Schema(p *models.ParametricSpecification) []models.ValidationError {
	err := specValidate.Struct(p)
	if err == nil {
		return nil
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return []models.ValidationError{{Path: "", Message: invalid.Error()}}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []models.ValidationError{{Path: "", Message: err.Error()}}
	}

	out := make([]models.ValidationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, models.ValidationError{
			Path:    jsonPointer(fe.Namespace()),
			Message: fmt.Sprintf("failed %q constraint", fe.Tag()),
		})
	}
	return out
}

// jsonPointer converts the validator namespace (struct-rooted, dotted)
// into the dotted pointer convention the rest of the pipeline uses.
func jsonPointer(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:] // drop the root struct name
	}
	return strings.Join(parts, ".")
}
