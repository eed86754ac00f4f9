package harness

import (
	"github.com/roach88/rollcall/internal/engine"
	"github.com/roach88/rollcall/internal/testutil"
)

// Pass outcomes reported in traces.
const (
	OutcomeConverged = "converged"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
)

// TraceEvent records one executed flow step.
type TraceEvent struct {
	// Step is the 1-based index of the flow step.
	Step int

	// Invoke is the step name.
	Invoke string

	// Args are the step arguments as written in the scenario.
	Args map[string]interface{}

	// Outcome is set for reconcile steps.
	Outcome string

	// ErrorCode is the pass error code of a failed reconcile step.
	ErrorCode string

	// Error is the error message of a failed step.
	Error string

	// Stats are the counters of a converged or failed pass.
	Stats engine.Stats

	// Writes are the surface writes issued during this step.
	Writes []testutil.Write
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every expect clause and assertion held.
	Pass bool

	// Trace contains one event per flow step, in order.
	Trace []TraceEvent

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string

	// Planned is the block content planned from the final roster.
	Planned []string

	// Seeded is the display surface before the flow ran.
	Seeded []engine.Message

	// Surface is the display surface after the flow ran.
	Surface []engine.Message

	// Writes lists every write issued during the flow.
	Writes []testutil.Write

	// Notices counts diagnostics posted to the log surface.
	Notices int
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
