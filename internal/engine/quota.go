package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer counts the tasks of one cascade and enforces a maximum.
//
// The depth cap bounds how far a cascade travels; the quota bounds how
// wide it gets (one changed record fanning out to thousands of linked
// records, each fanning out again).
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates against the limit.
// Returns StepsExceededError if the quota is exceeded.
func (q *QuotaEnforcer) Check(scopeID string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			ScopeID: scopeID,
			Steps:   q.current,
			Limit:   q.maxSteps,
		}
	}
	return nil
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when a cascade exceeds the task quota.
// The cascade stops; updates it already recorded are still committed.
type StepsExceededError struct {
	ScopeID string
	Steps   int
	Limit   int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("scope %s exceeded max steps quota: %d steps > %d limit",
		e.ScopeID, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
