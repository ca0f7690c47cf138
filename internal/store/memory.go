package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"dynamic-forms/internal/common/errors"
	"dynamic-forms/internal/models"
)

// MemoryFormStore keeps forms in process memory.
type MemoryFormStore struct {
	mu    sync.RWMutex
	forms map[string]*models.FormDefinition
	seq   map[string]int
	next  int
}

func NewMemoryFormStore() *MemoryFormStore {
	return &MemoryFormStore{
		forms: make(map[string]*models.FormDefinition),
		seq:   make(map[string]int),
	}
}

func (s *MemoryFormStore) Create(_ context.Context, form *models.FormDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.forms[form.ID]; exists {
		return errors.NewStorageWriteFailedError("form", fmt.Errorf("duplicate id %q", form.ID))
	}
	s.forms[form.ID] = cloneForm(form)
	s.next++
	s.seq[form.ID] = s.next
	return nil
}

func (s *MemoryFormStore) Replace(_ context.Context, form *models.FormDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.forms[form.ID]; !exists {
		return errors.NewFormNotFoundError(form.ID)
	}
	s.forms[form.ID] = cloneForm(form)
	return nil
}

func (s *MemoryFormStore) Get(_ context.Context, id string) (*models.FormDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.forms[id]
	if !ok {
		return nil, errors.NewFormNotFoundError(id)
	}
	return cloneForm(f), nil
}

func (s *MemoryFormStore) List(_ context.Context) ([]*models.FormDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.FormDefinition, 0, len(s.forms))
	for _, f := range s.forms {
		out = append(out, cloneForm(f))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	return out, nil
}

func (s *MemoryFormStore) Latest(ctx context.Context) (*models.FormDefinition, error) {
	forms, _ := s.List(ctx)
	if len(forms) == 0 {
		return nil, errors.NewFormNotFoundError("latest")
	}
	return forms[0], nil
}

func (s *MemoryFormStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.forms[id]; !ok {
		return errors.NewFormNotFoundError(id)
	}
	delete(s.forms, id)
	delete(s.seq, id)
	return nil
}

// MemorySubmissionStore keeps submissions in process memory. The mutex makes
// CompareAndSetStatus atomic.
type MemorySubmissionStore struct {
	mu   sync.RWMutex
	subs map[string]*models.Submission
}

func NewMemorySubmissionStore() *MemorySubmissionStore {
	return &MemorySubmissionStore{subs: make(map[string]*models.Submission)}
}

func (s *MemorySubmissionStore) Save(_ context.Context, sub *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subs[sub.ID]; exists {
		return errors.NewStorageWriteFailedError("submission", fmt.Errorf("duplicate id %q", sub.ID))
	}
	s.subs[sub.ID] = cloneSubmission(sub)
	return nil
}

func (s *MemorySubmissionStore) Get(_ context.Context, id string) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[id]
	if !ok {
		return nil, errors.NewSubmissionNotFoundError(id)
	}
	return cloneSubmission(sub), nil
}

func (s *MemorySubmissionStore) List(_ context.Context, filter models.SubmissionFilter) ([]*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Submission
	for _, sub := range s.subs {
		if filter.Matches(sub) {
			out = append(out, cloneSubmission(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		// Same order as the postgres driver's "submitted_at DESC, id DESC".
		return out[i].ID > out[j].ID
	})
	return paginate(out, filter.Offset, filter.Limit), nil
}

func paginate(subs []*models.Submission, offset, limit int) []*models.Submission {
	if offset > 0 {
		if offset >= len(subs) {
			return []*models.Submission{}
		}
		subs = subs[offset:]
	}
	if limit > 0 && limit < len(subs) {
		subs = subs[:limit]
	}
	if subs == nil {
		return []*models.Submission{}
	}
	return subs
}

func (s *MemorySubmissionStore) CompareAndSetStatus(_ context.Context, id string, from, to models.SubmissionStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return false, errors.NewSubmissionNotFoundError(id)
	}
	if sub.Status != from {
		return false, nil
	}
	sub.Status = to
	return true, nil
}

func (s *MemorySubmissionStore) DeleteByForm(_ context.Context, formID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sub := range s.subs {
		if sub.FormID == formID {
			delete(s.subs, id)
			n++
		}
	}
	return n, nil
}

func (s *MemorySubmissionStore) Stats(_ context.Context) (*models.SubmissionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.SubmissionStats{ByStatus: map[models.SubmissionStatus]int{
		models.StatusPending:  0,
		models.StatusApproved: 0,
		models.StatusRejected: 0,
	}}
	byForm := map[string]*models.FormCount{}
	for _, sub := range s.subs {
		stats.Total++
		stats.ByStatus[sub.Status]++
		fc, ok := byForm[sub.FormID]
		if !ok {
			fc = &models.FormCount{FormID: sub.FormID, FormName: sub.FormName}
			byForm[sub.FormID] = fc
		}
		fc.Count++
	}
	for _, fc := range byForm {
		stats.ByForm = append(stats.ByForm, *fc)
	}
	sortFormCounts(stats.ByForm)
	return stats, nil
}

func sortFormCounts(counts []models.FormCount) {
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].FormID < counts[j].FormID
	})
}
