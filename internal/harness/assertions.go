package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/rollcall/internal/engine"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s", event.Step, event.Invoke)
		if event.Outcome != "" {
			fmt.Fprintf(&buf, " -> %s (%d writes)", event.Outcome, len(event.Writes))
		}
		buf.WriteString("\n")
	}

	return buf.String()
}

// assertConverged checks that the owned standard messages on the surface are
// exactly the planned blocks and that no foreign standard message remains.
func assertConverged(result *Result) error {
	var standard []string
	for _, m := range result.Surface {
		if !m.IsStandard() {
			continue
		}
		if !m.OwnedBy(SelfID) {
			return &AssertionError{
				Type:     AssertConverged,
				Expected: "only owned standard messages",
				Actual:   fmt.Sprintf("foreign message %s by %s at position %d", m.ID, m.AuthorID, m.Position),
				Trace:    result.Trace,
			}
		}
		standard = append(standard, m.Content)
	}

	if !slices.Equal(standard, result.Planned) {
		return &AssertionError{
			Type:     AssertConverged,
			Expected: fmt.Sprintf("%d planned blocks", len(result.Planned)),
			Actual:   fmt.Sprintf("%d owned messages, first difference at %d", len(standard), firstDifference(standard, result.Planned)),
			Trace:    result.Trace,
		}
	}
	return nil
}

func firstDifference(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return min(len(a), len(b))
}

// assertWriteCount checks the number of writes, optionally of one op.
func assertWriteCount(result *Result, assertion Assertion) error {
	count := 0
	for _, w := range result.Writes {
		if assertion.Op == "" || string(w.Op) == assertion.Op {
			count++
		}
	}

	if count != assertion.Count {
		what := "writes"
		if assertion.Op != "" {
			what = assertion.Op + " writes"
		}
		return &AssertionError{
			Type:     AssertWriteCount,
			Expected: fmt.Sprintf("%d %s", assertion.Count, what),
			Actual:   fmt.Sprintf("%d %s", count, what),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertWriteOrder checks the exact op sequence of all writes.
func assertWriteOrder(result *Result, assertion Assertion) error {
	ops := make([]string, len(result.Writes))
	for i, w := range result.Writes {
		ops[i] = string(w.Op)
	}

	if !slices.Equal(ops, assertion.Ops) {
		return &AssertionError{
			Type:     AssertWriteOrder,
			Expected: fmt.Sprintf("%v", assertion.Ops),
			Actual:   fmt.Sprintf("%v", ops),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertSystemPreserved checks that every seeded system notice is still on
// the surface, in the same relative order.
func assertSystemPreserved(result *Result) error {
	before := systemIDs(result.Seeded)
	after := systemIDs(result.Surface)

	var kept []string
	for _, id := range after {
		if slices.Contains(before, id) {
			kept = append(kept, id)
		}
	}

	if !slices.Equal(before, kept) {
		return &AssertionError{
			Type:     AssertSystemPreserved,
			Expected: fmt.Sprintf("system messages %v", before),
			Actual:   fmt.Sprintf("system messages %v", after),
			Trace:    result.Trace,
		}
	}
	return nil
}

func systemIDs(msgs []engine.Message) []string {
	var ids []string
	for _, m := range msgs {
		if !m.IsStandard() {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// assertSurfaceContains checks that some message has exactly the content.
func assertSurfaceContains(result *Result, assertion Assertion) error {
	for _, m := range result.Surface {
		if m.Content == assertion.Content {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertSurfaceContains,
		Expected: fmt.Sprintf("message %q", assertion.Content),
		Actual:   "not found on surface",
		Trace:    result.Trace,
	}
}

// assertNotified checks the number of diagnostics posted to the log surface.
func assertNotified(result *Result, assertion Assertion) error {
	if result.Notices != assertion.Count {
		return &AssertionError{
			Type:     AssertNotified,
			Expected: fmt.Sprintf("%d diagnostics", assertion.Count),
			Actual:   fmt.Sprintf("%d diagnostics", result.Notices),
			Trace:    result.Trace,
		}
	}
	return nil
}

// EvaluateAssertions runs all assertions and returns error messages for
// failures. Every assertion is evaluated even after a failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, assertion := range assertions {
		var err error
		switch assertion.Type {
		case AssertConverged:
			err = assertConverged(result)
		case AssertWriteCount:
			err = assertWriteCount(result, assertion)
		case AssertWriteOrder:
			err = assertWriteOrder(result, assertion)
		case AssertSystemPreserved:
			err = assertSystemPreserved(result)
		case AssertSurfaceContains:
			err = assertSurfaceContains(result, assertion)
		case AssertNotified:
			err = assertNotified(result, assertion)
		default:
			err = fmt.Errorf("unknown assertion type: %s", assertion.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
