package service

import (
	"context"

	"dynamic-forms/internal/common/errors"
	"dynamic-forms/internal/common/logger"
	"dynamic-forms/internal/common/metrics"
	"dynamic-forms/internal/engine/binder"
	"dynamic-forms/internal/engine/normalizer"
	"dynamic-forms/internal/models"
	"dynamic-forms/internal/search"
	"dynamic-forms/internal/store"
)

// RecentLimit is the number of submissions shown on the dashboard.
const RecentLimit = 5

type Normalizer interface {
	NormalizeByID(ctx context.Context, formID string, raw map[string]interface{}, attachments []binder.Attachment, opts normalizer.Options) (*models.Submission, error)
}

type Transitioner interface {
	Transition(ctx context.Context, id string, target models.SubmissionStatus) (*models.Submission, error)
}

type SubmissionIndex interface {
	Index(ctx context.Context, sub *models.Submission) error
	Search(ctx context.Context, q search.Query) (*search.Result, error)
}

// ProcessStarter launches the review process for a stored submission.
type ProcessStarter interface {
	StartReview(ctx context.Context, sub *models.Submission) error
}

type PANChecker interface {
	VerifyPAN(ctx context.Context, pan string) (errors.FailureKind, error)
}

// SubmissionDeps groups the collaborators of SubmissionService. Index and
// Starter are optional.
type SubmissionDeps struct {
	Normalizer  Normalizer
	Workflow    Transitioner
	Submissions store.SubmissionStore
	Forms       store.FormStore
	PAN         PANChecker
	Index       SubmissionIndex
	Starter     ProcessStarter
	Logger      logger.Logger
}

type SubmissionService struct {
	deps SubmissionDeps
}

func NewSubmissionService(deps SubmissionDeps) *SubmissionService {
	return &SubmissionService{deps: deps}
}

// Submit normalizes a raw submission against formID, persists it as pending
// and hands it to the search index and review process. Index and process
// failures do not undo the stored submission.
func (s *SubmissionService) Submit(ctx context.Context, formID string, raw map[string]interface{}, attachments []binder.Attachment, opts normalizer.Options) (*models.Submission, error) {
	sub, err := s.deps.Normalizer.NormalizeByID(ctx, formID, raw, attachments, opts)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Submissions.Save(ctx, sub); err != nil {
		return nil, err
	}
	metrics.SubmissionsReceived.WithLabelValues(sub.FormName).Inc()

	log := s.deps.Logger.WithFields(map[string]interface{}{
		"submissionId": sub.ID,
		"formId":       sub.FormID,
	})
	log.Info("submission stored", map[string]interface{}{
		"entries": len(sub.Entries),
		"files":   len(sub.Files()),
	})

	if s.deps.Index != nil {
		if err := s.deps.Index.Index(ctx, sub); err != nil {
			log.Warn("failed to index submission", map[string]interface{}{"error": err.Error()})
		}
	}
	if s.deps.Starter != nil {
		if err := s.deps.Starter.StartReview(ctx, sub); err != nil {
			log.Warn("failed to start review process", map[string]interface{}{"error": err.Error()})
		}
	}
	return sub, nil
}

func (s *SubmissionService) Get(ctx context.Context, id string) (*models.Submission, error) {
	return s.deps.Submissions.Get(ctx, id)
}

func (s *SubmissionService) List(ctx context.Context, filter models.SubmissionFilter) ([]*models.Submission, error) {
	return s.deps.Submissions.List(ctx, filter)
}

func (s *SubmissionService) Transition(ctx context.Context, id string, target models.SubmissionStatus) (*models.Submission, error) {
	return s.deps.Workflow.Transition(ctx, id, target)
}

func (s *SubmissionService) Search(ctx context.Context, q search.Query) (*search.Result, error) {
	if s.deps.Index == nil {
		return nil, errors.NewResourceNotFoundError("search", "search index is disabled")
	}
	return s.deps.Index.Search(ctx, q)
}

type Dashboard struct {
	TotalForms       int                             `json:"totalForms"`
	TotalSubmissions int                             `json:"totalSubmissions"`
	ByStatus         map[models.SubmissionStatus]int `json:"byStatus"`
	ByForm           []models.FormCount              `json:"byForm"`
	Recent           []*models.Submission            `json:"recentSubmissions"`
}

func (s *SubmissionService) Dashboard(ctx context.Context) (*Dashboard, error) {
	forms, err := s.deps.Forms.List(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := s.deps.Submissions.Stats(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.deps.Submissions.List(ctx, models.SubmissionFilter{Limit: RecentLimit})
	if err != nil {
		return nil, err
	}
	return &Dashboard{
		TotalForms:       len(forms),
		TotalSubmissions: stats.Total,
		ByStatus:         stats.ByStatus,
		ByForm:           stats.ByForm,
		Recent:           recent,
	}, nil
}

type PANResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

var panMessages = map[errors.FailureKind]string{
	"":                          "PAN verified successfully",
	errors.FailureRequired:      "PAN number is required",
	errors.FailureFormatInvalid: "PAN format invalid",
	errors.FailureUnverified:    "PAN not found in records",
}

// VerifyPAN checks a bare PAN with the same rules as pan fields.
func (s *SubmissionService) VerifyPAN(ctx context.Context, pan string) (*PANResult, error) {
	kind, err := s.deps.PAN.VerifyPAN(ctx, pan)
	if err != nil {
		return nil, err
	}
	return &PANResult{Valid: kind == "", Message: panMessages[kind]}, nil
}
