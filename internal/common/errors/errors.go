// Package errors provides the typed error taxonomy shared by the form engine,
// the stores, the HTTP transport and the review workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode identifies an error class independent of its message.
type ErrorCode string

// Engine errors.
const (
	ErrCodeMalformedPayload      ErrorCode = "MALFORMED_PAYLOAD"
	ErrCodeFormNotFound          ErrorCode = "FORM_NOT_FOUND"
	ErrCodeValidationFailed      ErrorCode = "VALIDATION_FAILED"
	ErrCodeStorageWriteFailed    ErrorCode = "STORAGE_WRITE_FAILED"
	ErrCodeSubmissionNotFound    ErrorCode = "SUBMISSION_NOT_FOUND"
	ErrCodeAlreadyFinalized      ErrorCode = "ALREADY_FINALIZED"
	ErrCodeInvalidFormDefinition ErrorCode = "INVALID_FORM_DEFINITION"
	ErrCodeInvalidTransition     ErrorCode = "INVALID_TRANSITION"
)

// Infrastructure errors.
const (
	ErrCodeDatabaseQueryFailed    ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeSearchIndexFailed      ErrorCode = "SEARCH_INDEX_FAILED"
	ErrCodeVerifierUnavailable    ErrorCode = "VERIFIER_UNAVAILABLE"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeProcessStartFailed     ErrorCode = "PROCESS_START_FAILED"
	ErrCodeInputParsingFailed     ErrorCode = "INPUT_PARSING_FAILED"
	ErrCodeResourceNotFound       ErrorCode = "RESOURCE_NOT_FOUND"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *StandardError carrying the same code, so the sentinels
// below work with errors.Is regardless of message or details.
func (e *StandardError) Is(target error) bool {
	var t *StandardError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns e after attaching a metadata key.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrMalformedPayload      = &StandardError{Code: ErrCodeMalformedPayload}
	ErrFormNotFound          = &StandardError{Code: ErrCodeFormNotFound}
	ErrValidationFailed      = &StandardError{Code: ErrCodeValidationFailed}
	ErrStorageWriteFailed    = &StandardError{Code: ErrCodeStorageWriteFailed}
	ErrSubmissionNotFound    = &StandardError{Code: ErrCodeSubmissionNotFound}
	ErrAlreadyFinalized      = &StandardError{Code: ErrCodeAlreadyFinalized}
	ErrInvalidFormDefinition = &StandardError{Code: ErrCodeInvalidFormDefinition}
	ErrInvalidTransition     = &StandardError{Code: ErrCodeInvalidTransition}
	ErrDatabaseQueryFailed   = &StandardError{Code: ErrCodeDatabaseQueryFailed}
	ErrVerifierUnavailable   = &StandardError{Code: ErrCodeVerifierUnavailable}
)

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewMalformedPayloadError reports a submission payload that is not a label→value object.
func NewMalformedPayloadError(err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return newError(ErrCodeMalformedPayload, "Submission data is not a valid JSON object", details, false, err)
}

func NewFormNotFoundError(formID string) *StandardError {
	return newError(ErrCodeFormNotFound, "Form not found", fmt.Sprintf("formId: %s", formID), false, nil).
		WithMetadata("formId", formID)
}

func NewSubmissionNotFoundError(submissionID string) *StandardError {
	return newError(ErrCodeSubmissionNotFound, "Submission not found", fmt.Sprintf("submissionId: %s", submissionID), false, nil).
		WithMetadata("submissionId", submissionID)
}

// NewAlreadyFinalizedError reports a transition attempt on a decided submission.
func NewAlreadyFinalizedError(submissionID, status string) *StandardError {
	return newError(ErrCodeAlreadyFinalized, "Submission has already been "+status,
		fmt.Sprintf("submissionId: %s, status: %s", submissionID, status), false, nil).
		WithMetadata("submissionId", submissionID).
		WithMetadata("status", status)
}

func NewInvalidTransitionError(target string) *StandardError {
	return newError(ErrCodeInvalidTransition, "Target status must be approved or rejected",
		fmt.Sprintf("target: %s", target), false, nil)
}

// NewStorageWriteFailedError wraps a blob or document write failure. It is
// retryable from a workflow perspective but never retried by the engine.
func NewStorageWriteFailedError(what string, err error) *StandardError {
	return newError(ErrCodeStorageWriteFailed, "Failed to persist "+what, err.Error(), true, err)
}

func NewInvalidFormDefinitionError(details string) *StandardError {
	return newError(ErrCodeInvalidFormDefinition, "Invalid form definition", details, false, nil)
}

func NewDatabaseQueryFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseQueryFailed, "Database query failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true, err)
}

func NewSearchIndexFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeSearchIndexFailed, "Search index operation failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true, err)
}

func NewVerifierUnavailableError(err error) *StandardError {
	return newError(ErrCodeVerifierUnavailable, "PAN verification service unavailable", err.Error(), true, err)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification delivery failed",
		fmt.Sprintf("channel: %s, error: %s", channel, err.Error()), true, err)
}

func NewProcessStartFailedError(processID string, err error) *StandardError {
	return newError(ErrCodeProcessStartFailed, "Failed to start review process",
		fmt.Sprintf("processId: %s, error: %s", processID, err.Error()), true, err)
}

func NewInputParsingFailedError(err error) *StandardError {
	return newError(ErrCodeInputParsingFailed, "Failed to parse job variables", err.Error(), false, err)
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return newError("EXTERNAL_SERVICE_ERROR", fmt.Sprintf("External service '%s' error", service), err.Error(), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError("TIMEOUT_ERROR", fmt.Sprintf("Service '%s' timeout", service), err.Error(), true, err)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("Resource not found in %s", service), details, false, nil)
}

func NewBusinessRuleError(message, details string) *StandardError {
	return newError("BUSINESS_RULE_VIOLATION", message, details, false, nil)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal codes to the error codes caught by the
// submission-review process boundary events.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeSubmissionNotFound:     "SUBMISSION_NOT_FOUND",
	ErrCodeAlreadyFinalized:       "ALREADY_FINALIZED",
	ErrCodeInvalidTransition:      "INVALID_DECISION",
	ErrCodeValidationFailed:       "VALIDATION_FAILED",
	ErrCodeInputParsingFailed:     "VALIDATION_FAILED",
	ErrCodeDatabaseQueryFailed:    "DATABASE_QUERY_FAILED",
	ErrCodeNotificationSendFailed: "NOTIFICATION_SEND_FAILED",
	ErrCodeStorageWriteFailed:     "STORAGE_WRITE_FAILED",
}

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseQueryFailed,
		ErrCodeStorageWriteFailed,
		ErrCodeSearchIndexFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeProcessStartFailed:
		return 3
	case ErrCodeVerifierUnavailable, "TIMEOUT_ERROR", "EXTERNAL_SERVICE_ERROR":
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError extracts a *StandardError from err, wrapping unknown
// errors as INTERNAL_ERROR.
func AsStandardError(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	var verr *ValidationError
	if stderrors.As(err, &verr) {
		return newError(ErrCodeValidationFailed, verr.Error(), "", false, err)
	}
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false, err)
}

// CodeOf returns the error code carried by err, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return AsStandardError(err).Code
}

// GetErrorCategory groups codes for dashboards and log filtering.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "NOT_FOUND"):
		return "LOOKUP"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INVALID") ||
		strings.Contains(codeStr, "MALFORMED"):
		return "VALIDATION"
	case strings.Contains(codeStr, "FINALIZED"):
		return "WORKFLOW"
	case strings.Contains(codeStr, "STORAGE") || strings.Contains(codeStr, "DATABASE") ||
		strings.Contains(codeStr, "INDEX"):
		return "STORAGE"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	default:
		return "OTHER"
	}
}
