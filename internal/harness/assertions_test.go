package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rollcall/internal/engine"
	"github.com/roach88/rollcall/internal/testutil"
)

func ownedMsg(id, content string) engine.Message {
	return engine.Message{ID: id, AuthorID: SelfID, Type: engine.MessageStandard, Content: content}
}

func systemMsg(id string) engine.Message {
	return engine.Message{ID: id, AuthorID: "system", Type: engine.MessageSystem, Content: "notice"}
}

func TestAssertConverged(t *testing.T) {
	result := &Result{
		Planned: []string{"a", "b"},
		Surface: []engine.Message{ownedMsg("m1", "a"), systemMsg("m2"), ownedMsg("m3", "b")},
	}
	assert.NoError(t, assertConverged(result))

	result.Surface = append(result.Surface, engine.Message{ID: "m4", AuthorID: "user", Type: engine.MessageStandard})
	err := assertConverged(result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "foreign message m4")

	result.Surface = []engine.Message{ownedMsg("m1", "a"), ownedMsg("m3", "x")}
	err = assertConverged(result)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first difference at 1")
}

func TestAssertWriteCountAndOrder(t *testing.T) {
	result := &Result{Writes: []testutil.Write{
		{Op: engine.OpDelete}, {Op: engine.OpEdit}, {Op: engine.OpCreate}, {Op: engine.OpCreate},
	}}

	assert.NoError(t, assertWriteCount(result, Assertion{Count: 4}))
	assert.NoError(t, assertWriteCount(result, Assertion{Op: "create", Count: 2}))
	assert.Error(t, assertWriteCount(result, Assertion{Op: "delete", Count: 2}))

	assert.NoError(t, assertWriteOrder(result, Assertion{Ops: []string{"delete", "edit", "create", "create"}}))
	assert.Error(t, assertWriteOrder(result, Assertion{Ops: []string{"edit", "delete", "create", "create"}}))
}

func TestAssertSystemPreserved(t *testing.T) {
	result := &Result{
		Seeded:  []engine.Message{systemMsg("s1"), ownedMsg("m1", "a"), systemMsg("s2")},
		Surface: []engine.Message{systemMsg("s1"), ownedMsg("m1", "a"), systemMsg("s2"), systemMsg("s3")},
	}
	assert.NoError(t, assertSystemPreserved(result), "new notices are allowed")

	result.Surface = []engine.Message{systemMsg("s1"), ownedMsg("m1", "a")}
	assert.Error(t, assertSystemPreserved(result))

	result.Surface = []engine.Message{systemMsg("s2"), systemMsg("s1")}
	assert.Error(t, assertSystemPreserved(result), "order matters")
}

func TestAssertSurfaceContainsAndNotified(t *testing.T) {
	result := &Result{Surface: []engine.Message{ownedMsg("m1", "hello")}, Notices: 2}

	assert.NoError(t, assertSurfaceContains(result, Assertion{Content: "hello"}))
	assert.Error(t, assertSurfaceContains(result, Assertion{Content: "hell"}))
	assert.NoError(t, assertNotified(result, Assertion{Count: 2}))
	assert.Error(t, assertNotified(result, Assertion{Count: 0}))
}

func TestEvaluateAssertions_CollectsAllFailures(t *testing.T) {
	result := &Result{
		Trace:   []TraceEvent{{Step: 1, Invoke: InvokeReconcile, Outcome: OutcomeConverged}},
		Planned: []string{"a"},
	}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertConverged},
		{Type: AssertWriteCount, Count: 3},
		{Type: AssertNotified, Count: 0},
		{Type: "bogus"},
	})

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0], "Assertion failed: converged")
	assert.Contains(t, errs[0], "[1] reconcile -> converged (0 writes)")
	assert.Contains(t, errs[1], "Assertion failed: write_count")
	assert.Contains(t, errs[2], "unknown assertion type: bogus")
}
