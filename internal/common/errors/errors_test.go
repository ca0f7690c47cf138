package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardError_IsMatchesByCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		want     bool
	}{
		{"form not found", NewFormNotFoundError("f-1"), ErrFormNotFound, true},
		{"wrapped submission not found", fmt.Errorf("lookup: %w", NewSubmissionNotFoundError("s-1")), ErrSubmissionNotFound, true},
		{"already finalized", NewAlreadyFinalizedError("s-1", "approved"), ErrAlreadyFinalized, true},
		{"resource not found", NewResourceNotFoundError("search", "disabled"), &StandardError{Code: ErrCodeResourceNotFound}, true},
		{"different code", NewFormNotFoundError("f-1"), ErrSubmissionNotFound, false},
		{"plain error", stderrors.New("boom"), ErrFormNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stderrors.Is(tt.err, tt.sentinel))
		})
	}
}

func TestStandardError_UnwrapKeepsCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := NewStorageWriteFailedError("attachment", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, err.Retryable)
	assert.Contains(t, err.Error(), "disk full")
}

func TestValidationError(t *testing.T) {
	verr := NewValidationError(
		NewFieldError("Country", FailureRequired),
		NewFieldError("Email", FailureFormatInvalid),
	)
	require.NotNil(t, verr)

	assert.Equal(t, "Country is required", verr.Error())
	assert.Equal(t, FailureRequired, verr.First().Kind)
	assert.True(t, stderrors.Is(verr, ErrValidationFailed))
	assert.Contains(t, verr.Summary(), "Email has an invalid format")

	assert.Nil(t, NewValidationError())
}

func TestAsStandardError(t *testing.T) {
	t.Run("validation error maps to VALIDATION_FAILED", func(t *testing.T) {
		verr := NewValidationError(NewFieldError("PAN", FailureUnverified))
		std := AsStandardError(fmt.Errorf("normalize: %w", verr))
		assert.Equal(t, ErrCodeValidationFailed, std.Code)
		assert.Equal(t, "PAN could not be verified", std.Message)
	})

	t.Run("unknown error maps to INTERNAL_ERROR", func(t *testing.T) {
		std := AsStandardError(stderrors.New("boom"))
		assert.Equal(t, ErrCodeInternal, std.Code)
		assert.Equal(t, "boom", std.Details)
	})
}

func TestConvertToBPMNError(t *testing.T) {
	t.Run("retryable storage failure keeps retries", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewStorageWriteFailedError("submission", stderrors.New("timeout")))
		assert.Equal(t, "STORAGE_WRITE_FAILED", bpmn.Code)
		assert.Equal(t, 3, bpmn.Retries)
		assert.Equal(t, "STORAGE_WRITE_FAILED", bpmn.ToErrorVariables()["originalErrorCode"])
	})

	t.Run("business errors are not retried", func(t *testing.T) {
		bpmn := ConvertToBPMNError(NewInvalidTransitionError("archived"))
		assert.Equal(t, "INVALID_DECISION", bpmn.Code)
		assert.Equal(t, 0, bpmn.Retries)
		assert.False(t, bpmn.Retryable)
	})
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "LOOKUP", GetErrorCategory(ErrCodeFormNotFound))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeMalformedPayload))
	assert.Equal(t, "WORKFLOW", GetErrorCategory(ErrCodeAlreadyFinalized))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeStorageWriteFailed))
	assert.Equal(t, "OTHER", GetErrorCategory("SOMETHING_ELSE"))
}
