// Package service composes the engine, stores and integrations into the
// operations exposed over HTTP and to the review workers.
package service

import (
	"context"
	"time"

	"dynamic-forms/internal/common/logger"
	"dynamic-forms/internal/forms"
	"dynamic-forms/internal/models"
	"dynamic-forms/internal/store"

	"github.com/google/uuid"
)

// FormIndex drops the indexed submissions of a deleted form.
type FormIndex interface {
	DeleteByForm(ctx context.Context, formID string) error
}

type FormService struct {
	forms       store.FormStore
	submissions store.SubmissionStore
	index       FormIndex
	categories  []string
	logger      logger.Logger

	now   func() time.Time
	newID func() string
}

// NewFormService wires the form operations. index may be nil when search is
// disabled.
func NewFormService(forms store.FormStore, submissions store.SubmissionStore, index FormIndex, log logger.Logger) *FormService {
	return &FormService{
		forms:       forms,
		submissions: submissions,
		index:       index,
		categories:  models.Categories,
		logger:      log,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// SetCategories replaces the soft category list used for warnings and
// returned by Categories.
func (s *FormService) SetCategories(categories []string) {
	if len(categories) > 0 {
		s.categories = categories
	}
}

func (s *FormService) Categories() []string {
	return append([]string(nil), s.categories...)
}

// Create checks def, assigns its id and timestamps and stores it.
func (s *FormService) Create(ctx context.Context, def *models.FormDefinition) (*models.FormDefinition, error) {
	if err := forms.Check(def); err != nil {
		return nil, err
	}
	s.warnCategory(def)

	now := s.now().UTC()
	def.ID = s.newID()
	def.CreatedAt = now
	def.UpdatedAt = now

	if err := s.forms.Create(ctx, def); err != nil {
		return nil, err
	}
	s.logger.Info("form created", map[string]interface{}{
		"formId": def.ID,
		"name":   def.Name,
		"fields": len(def.Fields),
	})
	return def, nil
}

// Replace overwrites every attribute of form id except its creation time.
// Existing submissions keep their values.
func (s *FormService) Replace(ctx context.Context, id string, def *models.FormDefinition) (*models.FormDefinition, error) {
	if err := forms.Check(def); err != nil {
		return nil, err
	}
	existing, err := s.forms.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.warnCategory(def)

	def.ID = id
	def.CreatedAt = existing.CreatedAt
	def.UpdatedAt = s.now().UTC()

	if err := s.forms.Replace(ctx, def); err != nil {
		return nil, err
	}
	s.logger.Info("form replaced", map[string]interface{}{"formId": id})
	return def, nil
}

func (s *FormService) Get(ctx context.Context, id string) (*models.FormDefinition, error) {
	return s.forms.Get(ctx, id)
}

func (s *FormService) List(ctx context.Context) ([]*models.FormDefinition, error) {
	return s.forms.List(ctx)
}

func (s *FormService) Latest(ctx context.Context) (*models.FormDefinition, error) {
	return s.forms.Latest(ctx)
}

// Delete removes a form and cascades to its submissions and their index
// entries. Index failures are logged; the form is still deleted.
func (s *FormService) Delete(ctx context.Context, id string) error {
	if _, err := s.forms.Get(ctx, id); err != nil {
		return err
	}

	removed, err := s.submissions.DeleteByForm(ctx, id)
	if err != nil {
		return err
	}
	if s.index != nil {
		if err := s.index.DeleteByForm(ctx, id); err != nil {
			s.logger.Warn("failed to drop indexed submissions", map[string]interface{}{
				"formId": id,
				"error":  err.Error(),
			})
		}
	}
	if err := s.forms.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("form deleted", map[string]interface{}{
		"formId":             id,
		"submissionsRemoved": removed,
	})
	return nil
}

func (s *FormService) warnCategory(def *models.FormDefinition) {
	if def.Category == "" {
		return
	}
	for _, c := range s.categories {
		if c == def.Category {
			return
		}
	}
	s.logger.Warn("form uses an unlisted category", map[string]interface{}{
		"name":     def.Name,
		"category": def.Category,
	})
}
