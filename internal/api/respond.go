package api

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"dynamic-forms/internal/common/errors"
	"dynamic-forms/internal/common/logger"
)

type errorBody struct {
	Error    string              `json:"error"`
	Message  string              `json:"message"`
	Details  string              `json:"details,omitempty"`
	Failures []errors.FieldError `json:"failures,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err with the status for its code. Server-side failures
// are logged; client errors are not.
func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	stdErr := errors.AsStandardError(err)
	status := statusFor(stdErr.Code)

	body := errorBody{Error: string(stdErr.Code), Message: stdErr.Message}
	var verr *errors.ValidationError
	if stderrors.As(err, &verr) {
		body.Failures = verr.Failures
	}
	if status < http.StatusInternalServerError {
		body.Details = stdErr.Details
	} else {
		log.Error("request failed", map[string]interface{}{
			"code":  stdErr.Code,
			"error": err.Error(),
		})
	}
	writeJSON(w, status, body)
}

func statusFor(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeMalformedPayload,
		errors.ErrCodeValidationFailed,
		errors.ErrCodeInvalidFormDefinition,
		errors.ErrCodeInvalidTransition,
		errors.ErrCodeInputParsingFailed:
		return http.StatusBadRequest
	case errors.ErrCodeFormNotFound,
		errors.ErrCodeSubmissionNotFound,
		errors.ErrCodeResourceNotFound:
		return http.StatusNotFound
	case errors.ErrCodeAlreadyFinalized:
		return http.StatusConflict
	case errors.ErrCodeVerifierUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// readJSON decodes a JSON request body into v.
func readJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return errors.NewMalformedPayloadError(err)
	}
	return nil
}
