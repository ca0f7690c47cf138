// Package store defines the form and submission persistence contracts and
// their memory and Postgres implementations.
package store

import (
	"context"

	"dynamic-forms/internal/models"
)

// FormStore owns form definitions. Forms change only by full replacement.
type FormStore interface {
	Create(ctx context.Context, form *models.FormDefinition) error
	// Replace overwrites every attribute of an existing form.
	Replace(ctx context.Context, form *models.FormDefinition) error
	Get(ctx context.Context, id string) (*models.FormDefinition, error)
	// List returns forms newest first.
	List(ctx context.Context) ([]*models.FormDefinition, error)
	// Latest returns the most recently created form.
	Latest(ctx context.Context) (*models.FormDefinition, error)
	Delete(ctx context.Context, id string) error
}

// SubmissionStore persists canonical submissions. It knows nothing about
// forms beyond the id each submission carries.
type SubmissionStore interface {
	Save(ctx context.Context, sub *models.Submission) error
	Get(ctx context.Context, id string) (*models.Submission, error)
	// List returns matching submissions, newest first.
	List(ctx context.Context, filter models.SubmissionFilter) ([]*models.Submission, error)
	// CompareAndSetStatus moves id from one status to another atomically.
	// It reports false when the stored status is not from.
	CompareAndSetStatus(ctx context.Context, id string, from, to models.SubmissionStatus) (bool, error)
	// DeleteByForm removes every submission of formID and returns how many.
	DeleteByForm(ctx context.Context, formID string) (int, error)
	Stats(ctx context.Context) (*models.SubmissionStats, error)
}

func cloneForm(f *models.FormDefinition) *models.FormDefinition {
	c := *f
	c.Fields = make([]models.FieldDefinition, len(f.Fields))
	for i, fd := range f.Fields {
		fd.Options = append([]string(nil), fd.Options...)
		c.Fields[i] = fd
	}
	return &c
}

func cloneSubmission(s *models.Submission) *models.Submission {
	c := *s
	c.Entries = append([]models.Entry(nil), s.Entries...)
	return &c
}
