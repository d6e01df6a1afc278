package domain

import (
	"errors"
	"fmt"
)

// Error codes for the pipeline failure taxonomy
const (
	ErrInvalidRequest        = "INVALID_REQUEST"
	ErrStructural            = "STRUCTURAL_ERROR"
	ErrContentViolation      = "CONTENT_VIOLATION"
	ErrEvidenceInsufficiency = "EVIDENCE_INSUFFICIENCY"
	ErrUpstreamUnavailable   = "UPSTREAM_UNAVAILABLE"
	ErrInternalServer        = "INTERNAL_SERVER_ERROR"
)

// PipelineError represents a classified failure inside one pipeline run.
// Content violations and evidence insufficiency never surface to callers;
// they are recovered in-band by the gate engine. Structural errors are the
// only retryable stage failures.
type PipelineError struct {
	Code    string `json:"code"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewStructuralError creates a schema-invalid-object error for a stage
func NewStructuralError(stage, message string) *PipelineError {
	return &PipelineError{Code: ErrStructural, Stage: stage, Message: message}
}

// NewUpstreamError creates an unreachable-collaborator error for a stage
func NewUpstreamError(stage string, err error) *PipelineError {
	return &PipelineError{Code: ErrUpstreamUnavailable, Stage: stage, Message: err.Error(), Err: err}
}

// IsStructural reports whether err is a structural (retryable) stage failure
func IsStructural(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Code == ErrStructural
}

// IsUpstreamUnavailable reports whether err is a collaborator outage
func IsUpstreamUnavailable(err error) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Code == ErrUpstreamUnavailable
}

// RequestError represents a malformed inbound request. It is the only
// content-level condition visible to callers, reported before a run starts.
type RequestError struct {
	Violations []Violation `json:"violations"`
}

// Error implements the error interface
func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid request: %d field violation(s)", len(e.Violations))
}

// NewRequestError creates a RequestError from field violations
func NewRequestError(violations []Violation) *RequestError {
	return &RequestError{Violations: violations}
}

// AsRequestError extracts a RequestError from err when present
func AsRequestError(err error) (*RequestError, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
