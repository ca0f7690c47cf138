package camunda

import (
	"context"
	"time"

	"dynamic-forms/internal/common/errors"
	"dynamic-forms/internal/common/logger"
	"dynamic-forms/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
)

// ProcessStarter creates one review process instance per stored submission.
type ProcessStarter struct {
	client    *Client
	processID string
	logger    logger.Logger
}

func NewProcessStarter(client *Client, processID string, log logger.Logger) *ProcessStarter {
	return &ProcessStarter{client: client, processID: processID, logger: log}
}

func (p *ProcessStarter) StartReview(ctx context.Context, sub *models.Submission) error {
	vars := ReviewVariables(sub)

	var resp *pb.CreateProcessInstanceResponse
	err := p.client.Do(ctx, "create-instance", func(ctx context.Context) error {
		cmd, err := p.client.GetClient().NewCreateInstanceCommand().
			BPMNProcessId(p.processID).
			LatestVersion().
			VariablesFromMap(vars)
		if err != nil {
			return err
		}
		resp, err = cmd.Send(ctx)
		return err
	})
	if err != nil {
		return errors.NewProcessStartFailedError(p.processID, err)
	}

	p.logger.Info("review process started", map[string]interface{}{
		"submissionId":       sub.ID,
		"processId":          p.processID,
		"processInstanceKey": resp.GetProcessInstanceKey(),
	})
	return nil
}

// ReviewVariables are the process variables seeded for a submission. Values
// are keyed by label, as in the submission's JSON form.
func ReviewVariables(sub *models.Submission) map[string]interface{} {
	data := make(map[string]interface{}, len(sub.Entries))
	for _, e := range sub.Entries {
		data[e.Label] = e.Value.Interface()
	}
	return map[string]interface{}{
		"submissionId": sub.ID,
		"formId":       sub.FormID,
		"formName":     sub.FormName,
		"status":       string(sub.Status),
		"submittedAt":  sub.SubmittedAt.UTC().Format(time.RFC3339),
		"data":         data,
	}
}
