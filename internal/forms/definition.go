// Package forms checks form definitions before they are stored.
package forms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dynamic-forms/internal/common/errors"
	"dynamic-forms/internal/common/validation"
	"dynamic-forms/internal/models"
)

// definitionSchema is the structural contract for a form definition
// payload. Semantic rules that JSON Schema cannot express live in Check.
const definitionSchema = `{
  "type": "object",
  "required": ["name", "category", "fields"],
  "properties": {
    "name":        {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "category":    {"type": "string", "minLength": 1},
    "fields": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "type", "label"],
        "properties": {
          "id":          {"type": "string", "minLength": 1},
          "type":        {"enum": ["text", "email", "number", "textarea", "select", "checkbox", "radio", "date", "file", "pan"]},
          "label":       {"type": "string", "minLength": 1},
          "placeholder": {"type": "string"},
          "required":    {"type": "boolean"},
          "options":     {"type": "array", "items": {"type": "string"}}
        }
      }
    }
  }
}`

// ValidateDefinitionPayload decodes body as a form definition and checks it.
// Server-managed fields (id, timestamps) in the payload are ignored.
func ValidateDefinitionPayload(body []byte) (*models.FormDefinition, error) {
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.NewMalformedPayloadError(err)
	}

	result := validation.ValidateDocument(doc, definitionSchema)
	if !result.Valid {
		return nil, errors.NewInvalidFormDefinitionError(strings.Join(result.GetErrorMessages(), "; "))
	}

	var def models.FormDefinition
	if err := json.Unmarshal(body, &def); err != nil {
		return nil, errors.NewMalformedPayloadError(err)
	}
	def.ID = ""
	def.CreatedAt = time.Time{}
	def.UpdatedAt = time.Time{}

	if err := Check(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// Check enforces the rules shared by API payloads and catalog seeds:
// name and category present, at least one field, known kinds, options on
// choice kinds, and unique field ids and labels.
func Check(def *models.FormDefinition) error {
	if strings.TrimSpace(def.Name) == "" {
		return errors.NewInvalidFormDefinitionError("name is required")
	}
	if strings.TrimSpace(def.Category) == "" {
		return errors.NewInvalidFormDefinitionError("category is required")
	}
	if len(def.Fields) == 0 {
		return errors.NewInvalidFormDefinitionError("at least one field is required")
	}

	ids := make(map[string]bool, len(def.Fields))
	labels := make(map[string]bool, len(def.Fields))
	for i, f := range def.Fields {
		switch {
		case f.ID == "":
			return errors.NewInvalidFormDefinitionError(fmt.Sprintf("fields[%d]: id is required", i))
		case f.Label == "":
			return errors.NewInvalidFormDefinitionError(fmt.Sprintf("fields[%d]: label is required", i))
		case !f.Type.Valid():
			return errors.NewInvalidFormDefinitionError(fmt.Sprintf("fields[%d]: unknown type %q", i, f.Type))
		case f.Type.IsChoice() && len(f.Options) == 0:
			return errors.NewInvalidFormDefinitionError(fmt.Sprintf("field %q: %s requires options", f.Label, f.Type))
		case ids[f.ID]:
			return errors.NewInvalidFormDefinitionError(fmt.Sprintf("duplicate field id %q", f.ID))
		case labels[f.Label]:
			return errors.NewInvalidFormDefinitionError(fmt.Sprintf("duplicate field label %q", f.Label))
		}
		ids[f.ID] = true
		labels[f.Label] = true
	}
	return nil
}
