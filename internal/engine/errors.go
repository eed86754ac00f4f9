package engine

import (
	"errors"
	"fmt"
)

// PassError represents a failure that aborted a reconciliation pass.
//
// Pass errors include:
//   - Destination unreachable: the window could not be read
//   - Write rejected: a send, edit or delete failed
//   - Steps exceeded: a block could not be placed within the step quota
//   - Timeout: the pass ran past its deadline
//   - Roster unavailable: settings or snapshot could not be read
//   - Window saturated: the surface holds more messages than one window read
type PassError struct {
	// Code identifies the error category.
	Code PassErrorCode

	// Message is a human-readable description.
	Message string

	// SurfaceID identifies the destination surface.
	SurfaceID string

	// Op is the write that failed (for write errors).
	Op Op

	// Cursor is the cursor position when the pass aborted.
	Cursor int

	// Err is the underlying error.
	Err error
}

// PassErrorCode categorizes pass errors.
type PassErrorCode string

const (
	// ErrCodeDestinationUnreachable indicates the window read failed.
	ErrCodeDestinationUnreachable PassErrorCode = "DESTINATION_UNREACHABLE"

	// ErrCodeWriteRejected indicates a send, edit or delete failed.
	ErrCodeWriteRejected PassErrorCode = "WRITE_REJECTED"

	// ErrCodeStepsExceeded indicates a block exceeded the step quota.
	ErrCodeStepsExceeded PassErrorCode = "STEPS_EXCEEDED"

	// ErrCodeTimeout indicates the pass deadline expired.
	ErrCodeTimeout PassErrorCode = "TIMEOUT"

	// ErrCodeRosterUnavailable indicates settings or snapshot could not be read.
	ErrCodeRosterUnavailable PassErrorCode = "ROSTER_UNAVAILABLE"

	// ErrCodeWindowSaturated indicates the window is full, so a create or
	// delete would shift positions the cursor relies on, or the plan itself
	// does not fit in one window.
	ErrCodeWindowSaturated PassErrorCode = "WINDOW_SATURATED"
)

// Error implements the error interface.
func (e *PassError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.SurfaceID != "" {
		msg += fmt.Sprintf(" (surface=%s, cursor=%d)", e.SurfaceID, e.Cursor)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *PassError) Unwrap() error {
	return e.Err
}

// PassErrorCodeOf returns the code of a PassError in err's chain, or "".
func PassErrorCodeOf(err error) PassErrorCode {
	var pe *PassError
	if errors.As(err, &pe) {
		return pe.Code
	}
	if IsStepsExceededError(err) {
		return ErrCodeStepsExceeded
	}
	return ""
}

// IsDestinationUnreachable returns true if the pass could not read the surface.
func IsDestinationUnreachable(err error) bool {
	return PassErrorCodeOf(err) == ErrCodeDestinationUnreachable
}

// IsWriteRejected returns true if a write to the surface failed.
func IsWriteRejected(err error) bool {
	return PassErrorCodeOf(err) == ErrCodeWriteRejected
}

// IsTimeout returns true if the pass deadline expired.
func IsTimeout(err error) bool {
	return PassErrorCodeOf(err) == ErrCodeTimeout
}

// IsWindowSaturated returns true if the surface outgrew the history window.
func IsWindowSaturated(err error) bool {
	return PassErrorCodeOf(err) == ErrCodeWindowSaturated
}

func newSaturatedError(surfaceID string, op Op, cursor, limit int) *PassError {
	return &PassError{
		Code:      ErrCodeWindowSaturated,
		Message:   fmt.Sprintf("%s refused: window holds %d messages, the history limit", op, limit),
		SurfaceID: surfaceID,
		Op:        op,
		Cursor:    cursor,
	}
}

func newUnreachableError(surfaceID string, cursor int, err error) *PassError {
	return &PassError{
		Code:      ErrCodeDestinationUnreachable,
		Message:   "destination surface could not be read",
		SurfaceID: surfaceID,
		Cursor:    cursor,
		Err:       err,
	}
}

func newWriteError(surfaceID string, op Op, cursor int, err error) *PassError {
	return &PassError{
		Code:      ErrCodeWriteRejected,
		Message:   fmt.Sprintf("%s rejected", op),
		SurfaceID: surfaceID,
		Op:        op,
		Cursor:    cursor,
		Err:       err,
	}
}
