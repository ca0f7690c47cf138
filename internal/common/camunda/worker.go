package camunda

import (
	"fmt"
	"time"

	"dynamic-forms/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobWorkerOptions tune a job worker subscription.
type JobWorkerOptions struct {
	MaxJobsActive int
	Timeout       time.Duration
}

// OpenJobWorker subscribes handler to taskType on client.
func OpenJobWorker(client zbc.Client, taskType string, handler worker.JobHandler, opts JobWorkerOptions, log logger.Logger) worker.JobWorker {
	if opts.MaxJobsActive <= 0 {
		opts.MaxJobsActive = 5
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	jobWorker := client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(opts.MaxJobsActive).
		Timeout(opts.Timeout).
		Name(fmt.Sprintf("%s-worker", taskType)).
		Open()

	log.Info("worker registered", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": opts.MaxJobsActive,
		"timeout":       opts.Timeout.String(),
	})
	return jobWorker
}
