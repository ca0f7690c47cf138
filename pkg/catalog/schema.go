package catalog

import "dynamic-forms/internal/models"

// Catalog is the on-disk list of form categories and seed forms.
type Catalog struct {
	Version     string   `json:"version"`
	LastUpdated string   `json:"lastUpdated"`
	Categories  []string `json:"categories"`
	Forms       []Entry  `json:"forms"`
}

// Entry is a seed form. Key identifies it within the catalog; Name is the
// form name checked against existing forms when seeding.
type Entry struct {
	Key         string                   `json:"key"`
	Name        string                   `json:"name"`
	Description string                   `json:"description,omitempty"`
	Category    string                   `json:"category"`
	Fields      []models.FieldDefinition `json:"fields"`
}

// Definition returns a fresh form definition for the entry.
func (e Entry) Definition() *models.FormDefinition {
	fields := make([]models.FieldDefinition, len(e.Fields))
	for i, f := range e.Fields {
		f.Options = append([]string(nil), f.Options...)
		fields[i] = f
	}
	return &models.FormDefinition{
		Name:        e.Name,
		Description: e.Description,
		Category:    e.Category,
		Fields:      fields,
	}
}
