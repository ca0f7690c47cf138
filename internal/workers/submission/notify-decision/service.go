package notifydecision

import (
	"context"
	"encoding/json"
	"fmt"

	"dynamic-forms/internal/common/errors"
	"dynamic-forms/internal/common/logger"
	"dynamic-forms/internal/models"
)

type ServiceInterface interface {
	Execute(ctx context.Context, input *Input) (*Output, error)
}

type Service struct {
	config *Config
	deps   ServiceDependencies
	logger logger.Logger
}

func NewService(deps ServiceDependencies, config *Config) *Service {
	return &Service{config: config, deps: deps, logger: deps.Logger}
}

// Execute tells the submitter and the decision topic about a decided
// submission. Pending submissions are rejected; a missing recipient skips
// the email only.
func (s *Service) Execute(ctx context.Context, input *Input) (*Output, error) {
	sub, err := s.deps.Submissions.Get(ctx, input.SubmissionID)
	if err != nil {
		return nil, err
	}
	if !sub.Status.IsTerminal() {
		return nil, errors.NewBusinessRuleError("Submission has not been decided", "submissionId: "+sub.ID)
	}

	out := &Output{SubmissionID: sub.ID, Status: StatusDisabled}

	if s.config.EmailEnabled && s.deps.Email != nil {
		to := input.RecipientEmail
		if to == "" {
			to = s.recipientOf(ctx, sub)
		}
		if to == "" {
			s.logger.Info("no recipient email on submission", map[string]interface{}{"submissionId": sub.ID})
			out.Status = StatusSkipped
		} else {
			subject, body := renderEmail(sub)
			id, err := s.deps.Email.SendText(ctx, to, subject, body)
			if err != nil {
				return nil, errors.NewNotificationSendFailedError("email", err)
			}
			out.EmailMessageID = id
			out.Status = StatusSent
		}
	}

	if s.config.SNSEnabled && s.deps.Publisher != nil {
		payload, err := json.Marshal(decisionEvent{
			SubmissionID: sub.ID,
			FormID:       sub.FormID,
			FormName:     sub.FormName,
			Status:       string(sub.Status),
		})
		if err != nil {
			return nil, errors.NewNotificationSendFailedError("sns", err)
		}
		id, err := s.deps.Publisher.Publish(ctx, "submission "+string(sub.Status), string(payload), map[string]string{
			"status": string(sub.Status),
			"formId": sub.FormID,
		})
		if err != nil {
			return nil, errors.NewNotificationSendFailedError("sns", err)
		}
		out.SNSMessageID = id
		out.Status = StatusSent
	}

	s.logger.Info("decision notification processed", map[string]interface{}{
		"submissionId": sub.ID,
		"status":       out.Status,
	})
	return out, nil
}

// recipientOf returns the value of the form's first email field that the
// submission filled in.
func (s *Service) recipientOf(ctx context.Context, sub *models.Submission) string {
	if s.deps.Forms == nil {
		return ""
	}
	form, err := s.deps.Forms.Get(ctx, sub.FormID)
	if err != nil {
		s.logger.Warn("form lookup failed", map[string]interface{}{
			"formId": sub.FormID,
			"error":  err.Error(),
		})
		return ""
	}
	for _, f := range form.Fields {
		if f.Type != models.KindEmail {
			continue
		}
		if v, ok := sub.Lookup(f.Label); ok && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

func renderEmail(sub *models.Submission) (string, string) {
	subject := fmt.Sprintf("Your %s submission was %s", sub.FormName, sub.Status)
	body := fmt.Sprintf("Hello,\n\nYour submission to %q (reference %s), received on %s, has been %s.\n",
		sub.FormName, sub.ID, sub.SubmittedAt.UTC().Format("2 Jan 2006"), sub.Status)
	return subject, body
}
