// Package registry holds the per-kind validation and coercion rules applied
// to untyped submitted values.
package registry

import (
	"context"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"dynamic-forms/internal/common/errors"
	"dynamic-forms/internal/models"
)

var shapes = map[models.FieldKind]models.ValueShape{
	models.KindText:     models.ShapeString,
	models.KindTextarea: models.ShapeString,
	models.KindEmail:    models.ShapeFormattedString,
	models.KindDate:     models.ShapeFormattedString,
	models.KindPAN:      models.ShapeFormattedString,
	models.KindNumber:   models.ShapeNumber,
	models.KindCheckbox: models.ShapeStringSet,
	models.KindSelect:   models.ShapeOption,
	models.KindRadio:    models.ShapeOption,
	models.KindFile:     models.ShapeFile,
}

// Describe returns the value shape produced by kind. Unknown kinds yield "".
func Describe(kind models.FieldKind) models.ValueShape {
	return shapes[kind]
}

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	panPattern   = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
)

// Registry validates raw values against field definitions.
type Registry struct {
	verifier PANVerifier
}

// New returns a Registry that checks PANs with verifier. A nil verifier
// falls back to the ABCDE prefix rule.
func New(verifier PANVerifier) *Registry {
	if verifier == nil {
		verifier = NewPrefixVerifier(DefaultPANPrefix)
	}
	return &Registry{verifier: verifier}
}

// Validate normalizes raw for def. A nil raw means the label was absent.
// Absent or empty optional values return the zero Value and no error.
// Field failures are returned as *errors.ValidationError; verifier outages
// as *errors.StandardError.
func (r *Registry) Validate(ctx context.Context, def models.FieldDefinition, raw interface{}) (models.Value, error) {
	if def.Type == models.KindFile {
		return validateFile(def, raw)
	}
	if raw == nil {
		return missing(def)
	}

	switch def.Type {
	case models.KindText, models.KindTextarea, models.KindDate:
		s, ok := raw.(string)
		if !ok {
			return fail(def, errors.FailureWrongType)
		}
		if s == "" {
			return missing(def)
		}
		return models.StringValue(s), nil

	case models.KindEmail:
		s, ok := raw.(string)
		if !ok {
			return fail(def, errors.FailureWrongType)
		}
		if s == "" {
			return missing(def)
		}
		if !emailPattern.MatchString(s) {
			return fail(def, errors.FailureFormatInvalid)
		}
		return models.StringValue(s), nil

	case models.KindNumber:
		return validateNumber(def, raw)

	case models.KindSelect, models.KindRadio:
		s, ok := raw.(string)
		if !ok {
			return fail(def, errors.FailureWrongType)
		}
		if s == "" {
			return missing(def)
		}
		if !def.Allows(s) {
			return fail(def, errors.FailureOptionNotAllowed)
		}
		return models.StringValue(s), nil

	case models.KindCheckbox:
		return validateCheckbox(def, raw)

	case models.KindPAN:
		s, ok := raw.(string)
		if !ok {
			return fail(def, errors.FailureWrongType)
		}
		if s == "" {
			return missing(def)
		}
		if kind, err := r.checkPAN(ctx, s); err != nil {
			return models.Value{}, err
		} else if kind != "" {
			return fail(def, kind)
		}
		return models.StringValue(s), nil
	}

	return fail(def, errors.FailureWrongType)
}

// CheckAttachment applies the required rule to a file field given whether a
// matching attachment exists.
func CheckAttachment(def models.FieldDefinition, attached bool) error {
	if !attached && def.Required {
		return errors.NewValidationError(errors.NewFieldError(def.Label, errors.FailureRequired))
	}
	return nil
}

// VerifyPAN runs the format and verification checks on a bare PAN and
// returns the failure kind, or "" when the PAN is verified.
func (r *Registry) VerifyPAN(ctx context.Context, pan string) (errors.FailureKind, error) {
	if pan == "" {
		return errors.FailureRequired, nil
	}
	return r.checkPAN(ctx, pan)
}

func (r *Registry) checkPAN(ctx context.Context, pan string) (errors.FailureKind, error) {
	if !panPattern.MatchString(pan) {
		return errors.FailureFormatInvalid, nil
	}
	ok, err := r.verifier.Verify(ctx, pan)
	if err != nil {
		return "", errors.NewVerifierUnavailableError(err)
	}
	if !ok {
		return errors.FailureUnverified, nil
	}
	return "", nil
}

func validateFile(def models.FieldDefinition, raw interface{}) (models.Value, error) {
	switch ref := raw.(type) {
	case nil:
		return missing(def)
	case *models.FileReference:
		if ref == nil {
			return missing(def)
		}
		return models.FileValue(ref), nil
	default:
		return fail(def, errors.FailureWrongType)
	}
}

func validateNumber(def models.FieldDefinition, raw interface{}) (models.Value, error) {
	var n float64
	switch v := raw.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return fail(def, errors.FailureNotANumber)
		}
		n = f
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return missing(def)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fail(def, errors.FailureNotANumber)
		}
		n = f
	default:
		return fail(def, errors.FailureNotANumber)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return fail(def, errors.FailureNotANumber)
	}
	return models.NumberValue(n), nil
}

func validateCheckbox(def models.FieldDefinition, raw interface{}) (models.Value, error) {
	var items []string
	switch v := raw.(type) {
	case []string:
		items = v
	case []interface{}:
		items = make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return fail(def, errors.FailureWrongType)
			}
			items = append(items, s)
		}
	default:
		return fail(def, errors.FailureWrongType)
	}

	if len(items) == 0 {
		if def.Required {
			return fail(def, errors.FailureRequired)
		}
		return models.StringsValue([]string{}), nil
	}
	for _, item := range items {
		if !def.Allows(item) {
			return fail(def, errors.FailureOptionNotAllowed)
		}
	}
	return models.StringsValue(items), nil
}

func missing(def models.FieldDefinition) (models.Value, error) {
	if def.Required {
		return fail(def, errors.FailureRequired)
	}
	return models.Value{}, nil
}

func fail(def models.FieldDefinition, kind errors.FailureKind) (models.Value, error) {
	return models.Value{}, errors.NewValidationError(errors.NewFieldError(def.Label, kind))
}
