package decidesubmission

import (
	"context"

	"dynamic-forms/internal/common/logger"
	"dynamic-forms/internal/models"
)

type Input struct {
	SubmissionID string                  `json:"submissionId"`
	Decision     models.SubmissionStatus `json:"decision"`
	Reviewer     string                  `json:"reviewer,omitempty"`
}

type Output struct {
	SubmissionID string                  `json:"submissionId"`
	Status       models.SubmissionStatus `json:"status"`
	Transitioned bool                    `json:"transitioned"`
	Message      string                  `json:"message"`
}

// Transitioner applies a review decision.
type Transitioner interface {
	Transition(ctx context.Context, id string, target models.SubmissionStatus) (*models.Submission, error)
}

type ServiceDependencies struct {
	Workflow Transitioner
	Logger   logger.Logger
}
