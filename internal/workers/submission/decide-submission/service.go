package decidesubmission

import (
	"context"
	stderrors "errors"

	"dynamic-forms/internal/common/errors"
	"dynamic-forms/internal/common/logger"
)

type ServiceInterface interface {
	Execute(ctx context.Context, input *Input) (*Output, error)
}

type Service struct {
	workflow Transitioner
	logger   logger.Logger
}

func NewService(deps ServiceDependencies) *Service {
	return &Service{workflow: deps.Workflow, logger: deps.Logger}
}

// Execute applies the decision. A redelivered job whose decision already
// holds completes without a transition; a conflicting decision fails with
// ALREADY_FINALIZED.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	sub, err := s.workflow.Transition(ctx, input.SubmissionID, input.Decision)
	if err == nil {
		s.logger.Info("submission decided", map[string]interface{}{
			"submissionId": sub.ID,
			"status":       sub.Status,
			"reviewer":     input.Reviewer,
		})
		return &Output{
			SubmissionID: sub.ID,
			Status:       sub.Status,
			Transitioned: true,
			Message:      "Submission " + string(sub.Status),
		}, nil
	}

	var stdErr *errors.StandardError
	if stderrors.As(err, &stdErr) && stdErr.Code == errors.ErrCodeAlreadyFinalized {
		if current, _ := stdErr.Metadata["status"].(string); current == string(input.Decision) {
			return &Output{
				SubmissionID: input.SubmissionID,
				Status:       input.Decision,
				Transitioned: false,
				Message:      "Submission already " + current,
			}, nil
		}
	}
	return nil, err
}
