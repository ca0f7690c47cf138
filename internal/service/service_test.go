package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"dynamic-forms/internal/blob"
	"dynamic-forms/internal/common/errors"
	"dynamic-forms/internal/common/logger"
	"dynamic-forms/internal/engine/binder"
	"dynamic-forms/internal/engine/normalizer"
	"dynamic-forms/internal/engine/registry"
	"dynamic-forms/internal/engine/workflow"
	"dynamic-forms/internal/models"
	"dynamic-forms/internal/search"
	"dynamic-forms/internal/store"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

type recordingIndex struct {
	indexed  []string
	dropped  []string
	indexErr error
}

func (r *recordingIndex) Index(_ context.Context, sub *models.Submission) error {
	r.indexed = append(r.indexed, sub.ID)
	return r.indexErr
}

func (r *recordingIndex) Search(_ context.Context, q search.Query) (*search.Result, error) {
	return &search.Result{Total: int64(len(r.indexed))}, nil
}

func (r *recordingIndex) DeleteByForm(_ context.Context, formID string) error {
	r.dropped = append(r.dropped, formID)
	return nil
}

type MockStarter struct {
	StartReviewFunc func(ctx context.Context, sub *models.Submission) error
	started         []string
}

func (m *MockStarter) StartReview(ctx context.Context, sub *models.Submission) error {
	m.started = append(m.started, sub.ID)
	if m.StartReviewFunc != nil {
		return m.StartReviewFunc(ctx, sub)
	}
	return nil
}

type fixture struct {
	forms       *FormService
	submissions *SubmissionService
	formStore   *store.MemoryFormStore
	subStore    *store.MemorySubmissionStore
	index       *recordingIndex
	starter     *MockStarter
	fs          afero.Fs
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.NewTestLogger(t)

	formStore := store.NewMemoryFormStore()
	subStore := store.NewMemorySubmissionStore()
	index := &recordingIndex{}
	starter := &MockStarter{}
	fs := afero.NewMemMapFs()

	reg := registry.New(nil)
	norm := normalizer.New(reg, binder.New(blob.NewLocalStoreFs(fs, "/data")), formStore, normalizer.DefaultConfig())

	formSvc := NewFormService(formStore, subStore, index, log)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	formSvc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	subSvc := NewSubmissionService(SubmissionDeps{
		Normalizer:  norm,
		Workflow:    workflow.New(subStore, log),
		Submissions: subStore,
		Forms:       formStore,
		PAN:         reg,
		Index:       index,
		Starter:     starter,
		Logger:      log,
	})

	return &fixture{
		forms:       formSvc,
		submissions: subSvc,
		formStore:   formStore,
		subStore:    subStore,
		index:       index,
		starter:     starter,
		fs:          fs,
	}
}

func intakeForm() *models.FormDefinition {
	return &models.FormDefinition{
		Name:     "Patient Intake",
		Category: "Healthcare",
		Fields: []models.FieldDefinition{
			{ID: "f1", Type: models.KindText, Label: "Full Name", Required: true},
			{ID: "f2", Type: models.KindEmail, Label: "Email"},
			{ID: "f3", Type: models.KindFile, Label: "Report"},
		},
	}
}

// ==========================
// Form Service Tests
// ==========================

func TestFormService_CreateAssignsIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	form, err := f.forms.Create(ctx, intakeForm())
	require.NoError(t, err)
	assert.NotEmpty(t, form.ID)
	assert.False(t, form.CreatedAt.IsZero())
	assert.Equal(t, form.CreatedAt, form.UpdatedAt)

	_, err = f.forms.Create(ctx, &models.FormDefinition{Name: "Empty"})
	assert.Equal(t, errors.ErrCodeInvalidFormDefinition, errors.CodeOf(err))
}

func TestFormService_ReplaceKeepsCreationTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	form, err := f.forms.Create(ctx, intakeForm())
	require.NoError(t, err)
	created := form.CreatedAt

	next := intakeForm()
	next.Name = "Patient Intake v2"
	replaced, err := f.forms.Replace(ctx, form.ID, next)
	require.NoError(t, err)
	assert.Equal(t, form.ID, replaced.ID)
	assert.Equal(t, created, replaced.CreatedAt)
	assert.True(t, replaced.UpdatedAt.After(created))

	_, err = f.forms.Replace(ctx, "missing", intakeForm())
	assert.Equal(t, errors.ErrCodeFormNotFound, errors.CodeOf(err))
}

func TestFormService_LatestAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		def := intakeForm()
		def.Name = fmt.Sprintf("Form %d", i)
		_, err := f.forms.Create(ctx, def)
		require.NoError(t, err)
	}

	latest, err := f.forms.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Form 2", latest.Name)

	all, err := f.forms.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Form 2", all[0].Name)
	assert.Equal(t, "Form 0", all[2].Name)
}

func TestFormService_DeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	form, err := f.forms.Create(ctx, intakeForm())
	require.NoError(t, err)
	other, err := f.forms.Create(ctx, intakeForm())
	require.NoError(t, err)

	_, err = f.submissions.Submit(ctx, form.ID, map[string]interface{}{"Full Name": "A"}, nil, normalizer.Options{})
	require.NoError(t, err)
	kept, err := f.submissions.Submit(ctx, other.ID, map[string]interface{}{"Full Name": "B"}, nil, normalizer.Options{})
	require.NoError(t, err)

	require.NoError(t, f.forms.Delete(ctx, form.ID))
	assert.Equal(t, []string{form.ID}, f.index.dropped)

	remaining, err := f.submissions.List(ctx, models.SubmissionFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, kept.ID, remaining[0].ID)

	err = f.forms.Delete(ctx, form.ID)
	assert.Equal(t, errors.ErrCodeFormNotFound, errors.CodeOf(err))
}

// ==========================
// Submission Service Tests
// ==========================

func TestSubmissionService_Submit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	form, err := f.forms.Create(ctx, intakeForm())
	require.NoError(t, err)

	atts := []binder.Attachment{{FieldName: "Report", OriginalName: "scan.pdf", MimeType: "application/pdf", Content: []byte("%PDF")}}
	sub, err := f.submissions.Submit(ctx, form.ID, map[string]interface{}{
		"Full Name": "Asha",
		"Email":     "asha@example.org",
	}, atts, normalizer.Options{})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, sub.Status)
	assert.Equal(t, "Patient Intake", sub.FormName)
	require.Len(t, sub.Files(), 1)

	stored, err := f.submissions.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, stored.ID)

	assert.Equal(t, []string{sub.ID}, f.index.indexed)
	assert.Equal(t, []string{sub.ID}, f.starter.started)

	files, err := afero.ReadDir(f.fs, "/data")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestSubmissionService_SubmitInvalidStoresNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	form, err := f.forms.Create(ctx, intakeForm())
	require.NoError(t, err)

	_, err = f.submissions.Submit(ctx, form.ID, map[string]interface{}{"Email": "nope"}, nil, normalizer.Options{})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.CodeOf(err))

	all, err := f.submissions.List(ctx, models.SubmissionFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.index.indexed)
	assert.Empty(t, f.starter.started)
}

func TestSubmissionService_SubmitSurvivesIntegrationFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.index.indexErr = stderrors.New("index unavailable")
	f.starter.StartReviewFunc = func(context.Context, *models.Submission) error {
		return stderrors.New("broker unavailable")
	}

	form, err := f.forms.Create(ctx, intakeForm())
	require.NoError(t, err)

	sub, err := f.submissions.Submit(ctx, form.ID, map[string]interface{}{"Full Name": "Ravi"}, nil, normalizer.Options{})
	require.NoError(t, err)

	_, err = f.submissions.Get(ctx, sub.ID)
	assert.NoError(t, err)
}

func TestSubmissionService_Transition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	form, err := f.forms.Create(ctx, intakeForm())
	require.NoError(t, err)
	sub, err := f.submissions.Submit(ctx, form.ID, map[string]interface{}{"Full Name": "Ravi"}, nil, normalizer.Options{})
	require.NoError(t, err)

	approved, err := f.submissions.Transition(ctx, sub.ID, models.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)

	_, err = f.submissions.Transition(ctx, sub.ID, models.StatusRejected)
	assert.Equal(t, errors.ErrCodeAlreadyFinalized, errors.CodeOf(err))

	pending, err := f.submissions.List(ctx, models.SubmissionFilter{Status: models.StatusPending})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSubmissionService_Dashboard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	form, err := f.forms.Create(ctx, intakeForm())
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		_, err := f.submissions.Submit(ctx, form.ID, map[string]interface{}{"Full Name": fmt.Sprintf("P%d", i)}, nil, normalizer.Options{})
		require.NoError(t, err)
	}

	dash, err := f.submissions.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dash.TotalForms)
	assert.Equal(t, 7, dash.TotalSubmissions)
	assert.Equal(t, 7, dash.ByStatus[models.StatusPending])
	assert.Len(t, dash.Recent, RecentLimit)
}

func TestSubmissionService_VerifyPAN(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		pan     string
		valid   bool
		message string
	}{
		{"ABCDE1234F", true, "PAN verified successfully"},
		{"ZZZZZ1234F", false, "PAN not found in records"},
		{"abc", false, "PAN format invalid"},
		{"", false, "PAN number is required"},
	}
	for _, tt := range tests {
		t.Run(tt.pan, func(t *testing.T) {
			res, err := f.submissions.VerifyPAN(ctx, tt.pan)
			require.NoError(t, err)
			assert.Equal(t, tt.valid, res.Valid)
			assert.Equal(t, tt.message, res.Message)
		})
	}
}

func TestSubmissionService_SearchDisabled(t *testing.T) {
	svc := NewSubmissionService(SubmissionDeps{Logger: logger.NewNoOpLogger()})
	_, err := svc.Search(context.Background(), search.Query{Text: "x"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeResourceNotFound, errors.CodeOf(err))
}
