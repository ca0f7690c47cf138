// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubmissionsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_submissions_received_total",
			Help: "Submissions accepted and persisted, by form name",
		},
		[]string{"form_name"},
	)

	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_validation_failures_total",
			Help: "Rejected field values by failure kind",
		},
		[]string{"kind"},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_submission_transitions_total",
			Help: "Submission status transitions by target status and outcome",
		},
		[]string{"status", "outcome"},
	)

	BlobWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_blob_writes_total",
			Help: "Attachment writes to blob storage by outcome",
		},
		[]string{"outcome"},
	)

	BlobWriteBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "form_blob_write_bytes",
			Help:    "Size of stored attachments in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
		},
	)
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)
