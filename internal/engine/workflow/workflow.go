// Package workflow owns the submission review lifecycle:
// pending → approved | rejected, with both decisions terminal.
package workflow

import (
	"context"

	"dynamic-forms/internal/common/errors"
	"dynamic-forms/internal/common/logger"
	"dynamic-forms/internal/common/metrics"
	"dynamic-forms/internal/models"
)

// StatusStore is the part of store.SubmissionStore the workflow needs.
type StatusStore interface {
	Get(ctx context.Context, id string) (*models.Submission, error)
	CompareAndSetStatus(ctx context.Context, id string, from, to models.SubmissionStatus) (bool, error)
}

// Listener is told about every committed transition. Listener errors are
// logged, not returned; the status change has already happened.
type Listener interface {
	SubmissionTransitioned(ctx context.Context, sub *models.Submission, from models.SubmissionStatus) error
}

type Workflow struct {
	store     StatusStore
	listeners []Listener
	logger    logger.Logger
}

func New(store StatusStore, log logger.Logger, listeners ...Listener) *Workflow {
	return &Workflow{store: store, listeners: listeners, logger: log}
}

// Transition decides a pending submission. Deciding an already decided
// submission fails with ALREADY_FINALIZED and leaves it unchanged,
// including when a concurrent decision wins the race.
func (w *Workflow) Transition(ctx context.Context, id string, target models.SubmissionStatus) (*models.Submission, error) {
	if !target.IsTerminal() {
		metrics.StatusTransitions.WithLabelValues(string(target), "invalid").Inc()
		return nil, errors.NewInvalidTransitionError(string(target))
	}

	sub, err := w.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status.IsTerminal() {
		metrics.StatusTransitions.WithLabelValues(string(target), "finalized").Inc()
		return nil, errors.NewAlreadyFinalizedError(id, string(sub.Status))
	}

	from := sub.Status
	ok, err := w.store.CompareAndSetStatus(ctx, id, from, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := w.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		metrics.StatusTransitions.WithLabelValues(string(target), "finalized").Inc()
		return nil, errors.NewAlreadyFinalizedError(id, string(current.Status))
	}

	sub.Status = target
	metrics.StatusTransitions.WithLabelValues(string(target), "ok").Inc()
	w.logger.Info("Submission transitioned", map[string]interface{}{
		"submissionId": id,
		"from":         string(from),
		"to":           string(target),
	})

	for _, l := range w.listeners {
		if err := l.SubmissionTransitioned(ctx, sub, from); err != nil {
			w.logger.Warn("Transition listener failed", map[string]interface{}{
				"submissionId": id,
				"error":        err.Error(),
			})
		}
	}
	return sub, nil
}
