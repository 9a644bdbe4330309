package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a problem detected while propagating.
//
// Runtime errors never abort an orchestrator call. They are logged and
// reported as warnings on the Result:
//   - Depth exceeded: a cascade was truncated by the depth cap
//   - Steps exceeded: a cascade hit the per-operation task quota
//   - Resolution failed: unknown model, record or field
//   - Evaluation failed: a computed field could not be evaluated
//   - Storage failed: a read or write against storage failed
//   - Version conflict: a record changed under the operation
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// ScopeID identifies the operation's cache scope.
	ScopeID string

	ModelID  string
	RecordID string
	FieldID  string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	ErrCodeDepthExceeded    RuntimeErrorCode = "DEPTH_EXCEEDED"
	ErrCodeStepsExceeded    RuntimeErrorCode = "STEPS_EXCEEDED"
	ErrCodeResolutionFailed RuntimeErrorCode = "RESOLUTION_FAILED"
	ErrCodeEvaluationFailed RuntimeErrorCode = "EVALUATION_FAILED"
	ErrCodeStorageFailed    RuntimeErrorCode = "STORAGE_FAILED"
	ErrCodeVersionConflict  RuntimeErrorCode = "VERSION_CONFLICT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	switch {
	case e.ModelID != "" && e.FieldID != "":
		return fmt.Sprintf("%s: %s (%s/%s.%s)", e.Code, e.Message, e.ModelID, e.RecordID, e.FieldID)
	case e.ModelID != "":
		return fmt.Sprintf("%s: %s (%s/%s)", e.Code, e.Message, e.ModelID, e.RecordID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsDepthError returns true if the error is a depth cap error.
// Uses errors.As to handle wrapped errors.
func IsDepthError(err error) bool {
	return hasCode(err, ErrCodeDepthExceeded)
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeStepsExceeded and StepsExceededError.
func IsQuotaError(err error) bool {
	if hasCode(err, ErrCodeStepsExceeded) {
		return true
	}
	var se *StepsExceededError
	return errors.As(err, &se)
}

// IsEvaluationError returns true if a computed field failed to evaluate.
func IsEvaluationError(err error) bool {
	return hasCode(err, ErrCodeEvaluationFailed)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewDepthError creates a RuntimeError for a truncated cascade.
func NewDepthError(scopeID, modelID, recordID string, depth int) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeDepthExceeded,
		Message:  fmt.Sprintf("propagation depth cap %d reached, cascade truncated", depth),
		ScopeID:  scopeID,
		ModelID:  modelID,
		RecordID: recordID,
		Details: map[string]string{
			"max_depth": fmt.Sprintf("%d", depth),
		},
	}
}

// NewQuotaError creates a RuntimeError from a StepsExceededError.
func NewQuotaError(se *StepsExceededError, modelID, recordID string) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeStepsExceeded,
		Message:  fmt.Sprintf("cascade exceeded max steps (%d > %d)", se.Steps, se.Limit),
		ScopeID:  se.ScopeID,
		ModelID:  modelID,
		RecordID: recordID,
		Details: map[string]string{
			"steps":     fmt.Sprintf("%d", se.Steps),
			"max_steps": fmt.Sprintf("%d", se.Limit),
		},
	}
}

// NewResolutionError creates a RuntimeError for an unknown model, record
// or field.
func NewResolutionError(scopeID, modelID, recordID, message string) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeResolutionFailed,
		Message:  message,
		ScopeID:  scopeID,
		ModelID:  modelID,
		RecordID: recordID,
	}
}

// NewEvaluationError creates a RuntimeError for a field that failed to
// evaluate.
func NewEvaluationError(scopeID, modelID, recordID, fieldID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeEvaluationFailed,
		Message:  err.Error(),
		ScopeID:  scopeID,
		ModelID:  modelID,
		RecordID: recordID,
		FieldID:  fieldID,
	}
}

// NewStorageError creates a RuntimeError for a failed storage call.
func NewStorageError(scopeID, modelID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeStorageFailed,
		Message: err.Error(),
		ScopeID: scopeID,
		ModelID: modelID,
	}
}

// NewConflictError creates a RuntimeError for an update rejected because
// the record changed after the operation read it.
func NewConflictError(scopeID, modelID, recordID string, err error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeVersionConflict,
		Message:  err.Error(),
		ScopeID:  scopeID,
		ModelID:  modelID,
		RecordID: recordID,
	}
}
