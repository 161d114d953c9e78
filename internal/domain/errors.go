package domain

import (
	"errors"
	"fmt"
)

// Error codes for structured error responses.
const (
	ErrValidation   = "VALIDATION_ERROR"
	ErrPrecondition = "PRECONDITION_FAILED"
	ErrStorage      = "STORAGE_ERROR"
	ErrPipeline     = "PIPELINE_ERROR"
	ErrInternal     = "INTERNAL_ERROR"
)

// ValidationError represents a single schema violation in a review document.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ValidationErrors aggregates every schema violation found in one document so
// the caller can correct them in a single pass.
type ValidationErrors []*ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%s (and %d more validation errors)", e[0].Error(), len(e)-1)
}

// PreconditionError signals that a workflow operation was invoked against a
// case missing a required artifact or already in a terminal state. It is
// surfaced to the caller, never silently fixed up.
type PreconditionError struct {
	CaseID  string `json:"case_id"`
	Missing string `json:"missing,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *PreconditionError) Error() string {
	if e.Missing != "" {
		return fmt.Sprintf("precondition not met for case %s: missing %s", e.CaseID, e.Missing)
	}
	return fmt.Sprintf("precondition not met for case %s: %s", e.CaseID, e.Message)
}

// NewPreconditionError creates a PreconditionError for an illegal case state.
func NewPreconditionError(caseID, message string) *PreconditionError {
	return &PreconditionError{CaseID: caseID, Message: message}
}

// NewMissingArtifactError creates a PreconditionError naming the absent artifact.
func NewMissingArtifactError(caseID, artifact string) *PreconditionError {
	return &PreconditionError{CaseID: caseID, Missing: artifact}
}

// IsValidation reports whether err is (or wraps) a validation error.
func IsValidation(err error) bool {
	var single *ValidationError
	var many ValidationErrors
	return errors.As(err, &single) || errors.As(err, &many)
}

// IsPrecondition reports whether err is (or wraps) a precondition error.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
