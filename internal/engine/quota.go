package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps is the default maximum number of window checks spent
// placing a single block (or running cleanup). Each check either places the
// block, deletes a foreign message or steps over a system message, so a
// healthy surface needs at most one step per message in the window.
const DefaultMaxSteps = 1000

// StepQuota bounds the retry loop of one block.
//
// A surface that keeps injecting system messages ahead of the cursor would
// otherwise keep the loop alive forever.
type StepQuota struct {
	max     int
	current int
}

// NewStepQuota creates a quota with the given limit.
func NewStepQuota(max int) *StepQuota {
	return &StepQuota{max: max}
}

// Check increments the step counter and validates against the limit.
//
// Returns StepsExceededError if the quota is exceeded.
func (q *StepQuota) Check(surfaceID string, cursor int) error {
	q.current++
	if q.current > q.max {
		return &StepsExceededError{
			SurfaceID: surfaceID,
			Cursor:    cursor,
			Steps:     q.current,
			Limit:     q.max,
		}
	}
	return nil
}

// Current returns the current step count.
func (q *StepQuota) Current() int {
	return q.current
}

// StepsExceededError is returned when placing one block exceeds the quota.
// It aborts the pass.
type StepsExceededError struct {
	SurfaceID string
	Cursor    int
	Steps     int
	Limit     int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("surface %s exceeded max steps at cursor %d: %d steps > %d limit",
		e.SurfaceID, e.Cursor, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
