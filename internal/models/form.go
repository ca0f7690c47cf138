package models

import "time"

// FormDefinition is a named, versionless form schema.
type FormDefinition struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Fields      []FieldDefinition `json:"fields"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// FieldByLabel returns the field whose label equals label.
func (f *FormDefinition) FieldByLabel(label string) (FieldDefinition, bool) {
	for _, fd := range f.Fields {
		if fd.Label == label {
			return fd, true
		}
	}
	return FieldDefinition{}, false
}

// Categories is the soft list offered to form authors. Other values are
// accepted.
var Categories = []string{
	"Healthcare", "Education", "Business", "Survey",
	"Registration", "Contact", "Feedback", "Other",
}

// KnownCategory reports whether c is in Categories.
func KnownCategory(c string) bool {
	for _, known := range Categories {
		if known == c {
			return true
		}
	}
	return false
}
