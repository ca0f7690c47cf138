package notifydecision

import (
	"context"

	"dynamic-forms/internal/common/logger"
	"dynamic-forms/internal/models"
)

const (
	StatusSent     = "sent"
	StatusSkipped  = "skipped"
	StatusDisabled = "disabled"
)

type Input struct {
	SubmissionID   string `json:"submissionId"`
	RecipientEmail string `json:"recipientEmail,omitempty"`
}

type Output struct {
	SubmissionID   string `json:"submissionId"`
	Status         string `json:"status"`
	EmailMessageID string `json:"emailMessageId,omitempty"`
	SNSMessageID   string `json:"snsMessageId,omitempty"`
}

type SubmissionReader interface {
	Get(ctx context.Context, id string) (*models.Submission, error)
}

type FormReader interface {
	Get(ctx context.Context, id string) (*models.FormDefinition, error)
}

type EmailSender interface {
	SendText(ctx context.Context, to, subject, body string) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, subject, message string, attrs map[string]string) (string, error)
}

// ServiceDependencies wires the notifier. Email and Publisher may be nil
// when the channel is disabled.
type ServiceDependencies struct {
	Submissions SubmissionReader
	Forms       FormReader
	Email       EmailSender
	Publisher   Publisher
	Logger      logger.Logger
}

// decisionEvent is the SNS message body.
type decisionEvent struct {
	SubmissionID string `json:"submissionId"`
	FormID       string `json:"formId"`
	FormName     string `json:"formName"`
	Status       string `json:"status"`
}
