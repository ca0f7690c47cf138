package errors

import (
	"fmt"
	"strings"
)

// FailureKind classifies why a single field was rejected.
type FailureKind string

const (
	FailureRequired         FailureKind = "REQUIRED"
	FailureWrongType        FailureKind = "WRONG_TYPE"
	FailureFormatInvalid    FailureKind = "FORMAT_INVALID"
	FailureNotANumber       FailureKind = "NOT_A_NUMBER"
	FailureOptionNotAllowed FailureKind = "OPTION_NOT_ALLOWED"
	FailureUnverified       FailureKind = "PAN_UNVERIFIED"
)

// FieldError is one rejected field, identified by its label.
type FieldError struct {
	Field   string      `json:"field"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

func (e FieldError) Error() string {
	return e.Message
}

// NewFieldError builds a FieldError with the default message for kind.
func NewFieldError(label string, kind FailureKind) FieldError {
	return FieldError{Field: label, Kind: kind, Message: defaultMessage(label, kind)}
}

func defaultMessage(label string, kind FailureKind) string {
	switch kind {
	case FailureRequired:
		return fmt.Sprintf("%s is required", label)
	case FailureFormatInvalid:
		return fmt.Sprintf("%s has an invalid format", label)
	case FailureNotANumber:
		return fmt.Sprintf("%s must be a number", label)
	case FailureOptionNotAllowed:
		return fmt.Sprintf("%s contains a value that is not one of the allowed options", label)
	case FailureUnverified:
		return fmt.Sprintf("%s could not be verified", label)
	case FailureWrongType:
		return fmt.Sprintf("%s has the wrong type", label)
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}

// ValidationError carries field failures in declared field order. It always
// holds at least one failure.
type ValidationError struct {
	Failures []FieldError `json:"failures"`
}

// NewValidationError returns nil when failures is empty.
func NewValidationError(failures ...FieldError) *ValidationError {
	if len(failures) == 0 {
		return nil
	}
	return &ValidationError{Failures: failures}
}

// Error is the first failure's message, the one surfaced to users.
func (e *ValidationError) Error() string {
	return e.First().Message
}

func (e *ValidationError) First() FieldError {
	if len(e.Failures) == 0 {
		return FieldError{Message: "validation failed"}
	}
	return e.Failures[0]
}

// Is lets errors.Is(err, ErrValidationFailed) hold for validation errors.
func (e *ValidationError) Is(target error) bool {
	if t, ok := target.(*StandardError); ok {
		return t.Code == ErrCodeValidationFailed
	}
	_, ok := target.(*ValidationError)
	return ok
}

// Summary joins every failure message.
func (e *ValidationError) Summary() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}
