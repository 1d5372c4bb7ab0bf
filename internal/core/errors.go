package core

import (
	"errors"
	"fmt"
)

// Standard error codes used in engine error responses.
const (
	ErrCodeInvalidRequest          = "invalid_request"
	ErrCodeValidationError         = "validation_error"
	ErrCodeNotFound                = "not_found"
	ErrCodeConflict                = "conflict"
	ErrCodeInternalError           = "internal_error"
	ErrCodeMalformedCycle          = "malformed_cycle"
	ErrCodeEvaluationFailure       = "evaluation_failure"
	ErrCodeUnresolvedConfiguration = "unresolved_configuration"
)

// EngineError represents a structured error with a machine-readable code.
type EngineError struct {
	Code      string         `json:"code,omitempty"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// ErrorCode extracts the engine error code from err, or "" if err is not an
// EngineError.
func ErrorCode(err error) string {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Code
	}
	return ""
}

func NewInvalidRequestError(message string, details map[string]any) *EngineError {
	return &EngineError{
		Code:      ErrCodeInvalidRequest,
		Message:   message,
		Retryable: false,
		Details:   details,
	}
}

func NewValidationError(message string, details map[string]any) *EngineError {
	return &EngineError{
		Code:      ErrCodeValidationError,
		Message:   message,
		Retryable: false,
		Details:   details,
	}
}

func NewNotFoundError(resourceType, resourceID string) *EngineError {
	return &EngineError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s '%s' not found.", resourceType, resourceID),
		Retryable: false,
		Details: map[string]any{
			"resource_type": resourceType,
			"resource_id":   resourceID,
		},
	}
}

func NewConflictError(message string, details map[string]any) *EngineError {
	return &EngineError{
		Code:      ErrCodeConflict,
		Message:   message,
		Retryable: false,
		Details:   details,
	}
}

func NewInternalError(message string) *EngineError {
	return &EngineError{
		Code:      ErrCodeInternalError,
		Message:   message,
		Retryable: true,
	}
}

// NewMalformedCycleError reports a retry-cycle expression that cannot be
// parsed. The orchestrator converts it into the standard strategy.
func NewMalformedCycleError(expression, reason string) *EngineError {
	return &EngineError{
		Code:      ErrCodeMalformedCycle,
		Message:   fmt.Sprintf("cannot parse retry cycle %q: %s", expression, reason),
		Retryable: false,
		Details: map[string]any{
			"expression": expression,
		},
	}
}

// NewEvaluationFailureError reports that the expression evaluator failed or
// produced a non-textual value.
func NewEvaluationFailureError(expression string, cause error) *EngineError {
	e := &EngineError{
		Code:      ErrCodeEvaluationFailure,
		Message:   fmt.Sprintf("cannot evaluate retry cycle expression %q", expression),
		Retryable: false,
		Details: map[string]any{
			"expression": expression,
		},
	}
	if cause != nil {
		e.Details["cause"] = cause.Error()
	}
	return e
}

// NewUnresolvedConfigurationError signals that neither an interval list nor
// a cycle expression could be obtained for the failing job.
func NewUnresolvedConfigurationError(jobID string) *EngineError {
	return &EngineError{
		Code:      ErrCodeUnresolvedConfiguration,
		Message:   "no usable retry configuration",
		Retryable: false,
		Details: map[string]any{
			"job_id": jobID,
		},
	}
}
