package engine_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rollcall/internal/engine"
	"github.com/roach88/rollcall/internal/roster"
	"github.com/roach88/rollcall/internal/testutil"
)

const (
	community = "guild-1"
	display   = "chan-display"
	logChan   = "chan-log"
	botID     = "bot"
)

// alphaSnapshot is one group "Alpha" (priority 1) with two members.
func alphaSnapshot() roster.Snapshot {
	return roster.Snapshot{Groups: []roster.GroupEntry{{
		Group: roster.Group{ID: 1, Name: "Alpha", Priority: 1},
		Members: []roster.Member{
			{ID: 1, PersonID: "100", ProfileName: "Kell", ProfileReference: "https://example.com/kell"},
			{ID: 2, PersonID: "200", ProfileName: "Vos", ProfileReference: "Vos#1234"},
		},
	}}}
}

type fixture struct {
	roster   *testutil.StaticRoster
	surface  *testutil.MemSurface
	notifier *testutil.MemNotifier
	engine   *engine.Engine
}

func newFixture(t *testing.T, snap roster.Snapshot, opts ...engine.Option) *fixture {
	t.Helper()

	r := testutil.NewStaticRoster()
	r.SetSettings(roster.Settings{CommunityID: community, DisplaySurfaceID: display, LogSurfaceID: logChan})
	r.SetSnapshot(community, snap)

	surface := testutil.NewMemSurface(botID)
	notifier := testutil.NewMemNotifier(nil)

	opts = append([]engine.Option{
		engine.WithNotifier(notifier),
		engine.WithPassIDGenerator(testutil.NewFixedPassIDGenerator("pass-1")),
	}, opts...)

	return &fixture{
		roster:   r,
		surface:  surface,
		notifier: notifier,
		engine:   engine.New(r, surface, opts...),
	}
}

func (f *fixture) plan(snap roster.Snapshot) []string {
	blocks := f.engine.Planner().Plan(snap)
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Content
	}
	return out
}

func (f *fixture) reconcile(t *testing.T) engine.Report {
	t.Helper()
	report, err := f.engine.Reconcile(context.Background(), community)
	require.NoError(t, err)
	return report
}

func TestReconcile_EmptyDestination(t *testing.T) {
	snap := alphaSnapshot()
	f := newFixture(t, snap)
	want := f.plan(snap)

	report := f.reconcile(t)

	assert.Equal(t, want, f.surface.Contents(display))
	assert.Equal(t, len(want), f.surface.WriteCount(engine.OpCreate))
	assert.Equal(t, f.surface.WriteCount(engine.OpCreate), len(f.surface.Writes()), "only creates")
	assert.Equal(t, len(want), report.Cursor, "cursor ends at block count")
	assert.Equal(t, len(want), report.Stats.Created)
	assert.Equal(t, "pass-1", report.PassID)
	assert.Equal(t, display, report.SurfaceID)
	assert.False(t, report.Skipped)

	assert.Contains(t, want, "1. <@100> - Kell - <https://example.com/kell>")
	assert.Contains(t, want, "2. <@200> - Vos - Vos#1234")
}

func TestReconcile_ExactMatchIsZeroWrites(t *testing.T) {
	snap := alphaSnapshot()
	f := newFixture(t, snap)
	for _, c := range f.plan(snap) {
		f.surface.Seed(display, f.surface.Owned(c))
	}

	report := f.reconcile(t)

	assert.Empty(t, f.surface.Writes())
	assert.Equal(t, 0, report.Stats.Writes())
	assert.Equal(t, report.Stats.Blocks, report.Stats.Kept)
}

func TestReconcile_ExtraTrailingMessageIsDeleted(t *testing.T) {
	snap := alphaSnapshot()
	f := newFixture(t, snap)
	want := f.plan(snap)
	for _, c := range want {
		f.surface.Seed(display, f.surface.Owned(c))
	}
	f.surface.Seed(display, f.surface.Owned("3. <@300> - Gone - gone"))

	f.reconcile(t)

	writes := f.surface.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, engine.OpDelete, writes[0].Op)
	assert.Equal(t, want, f.surface.Contents(display))
}

func TestReconcile_PartialMatchEditsInPlace(t *testing.T) {
	snap := alphaSnapshot()
	f := newFixture(t, snap)
	want := f.plan(snap)
	for _, c := range want[:len(want)-2] {
		f.surface.Seed(display, f.surface.Owned(c))
	}
	f.surface.Seed(display, f.surface.Owned("stale line"))

	report := f.reconcile(t)

	assert.Equal(t, want, f.surface.Contents(display))
	assert.Equal(t, 1, report.Stats.Edited)
	assert.Equal(t, 1, report.Stats.Created)
	assert.Equal(t, 0, report.Stats.Deleted)
}

func TestReconcile_ForeignMessagesAreCleared(t *testing.T) {
	snap := alphaSnapshot()
	f := newFixture(t, snap)
	want := f.plan(snap)

	f.surface.Seed(display,
		f.surface.Owned(want[0]),
		testutil.Foreign("user-9", "hello"),
		testutil.Foreign("user-9", want[1]),
		f.surface.Owned(want[1]),
	)

	report := f.reconcile(t)

	assert.Equal(t, want, f.surface.Contents(display))
	assert.Equal(t, 2, report.Stats.Deleted)
	for _, m := range f.surface.Messages(display) {
		assert.Equal(t, botID, m.AuthorID)
	}
}

func TestReconcile_SystemMessagesArePreserved(t *testing.T) {
	snap := alphaSnapshot()
	f := newFixture(t, snap)
	want := f.plan(snap)

	f.surface.Seed(display,
		testutil.System("pinned a message"),
		f.surface.Owned(want[0]),
		testutil.System("thread created"),
		f.surface.Owned("surplus"),
		testutil.System("trailing notice"),
		f.surface.Owned("surplus 2"),
	)

	report := f.reconcile(t)

	var owned, systemMsgs []string
	for _, m := range f.surface.Messages(display) {
		if m.IsStandard() {
			owned = append(owned, m.Content)
		} else {
			systemMsgs = append(systemMsgs, m.Content)
		}
	}
	assert.Equal(t, want, owned)
	assert.Equal(t, []string{"pinned a message", "thread created", "trailing notice"}, systemMsgs)
	assert.Equal(t, 3, report.Stats.SkippedSystem)
}

func TestReconcile_SecondPassIsIdempotent(t *testing.T) {
	snap := alphaSnapshot()
	f := newFixture(t, snap)
	f.surface.Seed(display, testutil.Foreign("user-9", "noise"), testutil.System("notice"))

	f.reconcile(t)
	f.surface.ResetWrites()
	f.reconcile(t)

	assert.Empty(t, f.surface.Writes())
}

func TestReconcile_RosterChangeRewritesTail(t *testing.T) {
	snap := alphaSnapshot()
	f := newFixture(t, snap)
	f.reconcile(t)

	snap.Groups[0].Members = snap.Groups[0].Members[:1]
	f.roster.SetSnapshot(community, snap)
	f.surface.ResetWrites()

	report := f.reconcile(t)

	assert.Equal(t, f.plan(snap), f.surface.Contents(display))
	assert.Equal(t, 1, report.Stats.Edited, "separator moves into the removed member's slot")
	assert.Equal(t, 1, report.Stats.Deleted)
}

func TestReconcile_NoDisplayIsSkipped(t *testing.T) {
	f := newFixture(t, alphaSnapshot())

	report, err := f.engine.Reconcile(context.Background(), "unconfigured")

	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Zero(t, f.surface.Reads())
}

func TestReconcile_BannerAttachment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "banner.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))

	snap := alphaSnapshot()
	f := newFixture(t, snap, engine.WithLayout(engine.Layout{BannerImage: path}))
	want := f.plan(snap)

	// The banner exists with the right text but without its image.
	for _, c := range want {
		f.surface.Seed(display, f.surface.Owned(c))
	}

	report := f.reconcile(t)

	assert.Equal(t, 1, report.Stats.Edited)
	assert.Equal(t, []string{"banner.png"}, f.surface.Messages(display)[0].Attachments)

	f.surface.ResetWrites()
	f.reconcile(t)
	assert.Empty(t, f.surface.Writes(), "attachment already carried")
}

func TestReconcile_UnreachableDestinationNotifies(t *testing.T) {
	f := newFixture(t, alphaSnapshot())
	f.surface.FailHistory(errors.New("unknown channel"))

	_, err := f.engine.Reconcile(context.Background(), community)

	require.Error(t, err)
	assert.True(t, engine.IsDestinationUnreachable(err))

	posts := f.notifier.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, logChan, posts[0].SurfaceID)
	assert.Contains(t, posts[0].Text, "pass-1")
	assert.Contains(t, posts[0].Text, "unknown channel")
}

func TestReconcile_WriteRejectedAbortsPass(t *testing.T) {
	snap := alphaSnapshot()
	f := newFixture(t, snap)
	f.surface.Seed(display, testutil.Foreign("user-9", "noise"))
	f.surface.FailOn(engine.OpDelete, errors.New("missing permissions"))

	report, err := f.engine.Reconcile(context.Background(), community)

	require.Error(t, err)
	assert.True(t, engine.IsWriteRejected(err))
	var pe *engine.PassError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, engine.OpDelete, pe.Op)
	assert.Equal(t, 0, report.Stats.Created, "nothing is created past a rejected write")
	assert.Len(t, f.notifier.Posts(), 1)

	// The next pass converges once the fault clears.
	f.surface.FailOn(engine.OpDelete, nil)
	f.reconcile(t)
	assert.Equal(t, f.plan(snap), f.surface.Contents(display))
}

func TestReconcile_SnapshotFailure(t *testing.T) {
	f := newFixture(t, alphaSnapshot())
	f.roster.FailSnapshot(errors.New("database is locked"))

	_, err := f.engine.Reconcile(context.Background(), community)

	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeRosterUnavailable, engine.PassErrorCodeOf(err))
	assert.Empty(t, f.surface.Writes())
}

func TestReconcile_NotifierFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, alphaSnapshot())
	f.surface.FailHistory(errors.New("unknown channel"))
	e := engine.New(f.roster, f.surface, engine.WithNotifier(testutil.NewMemNotifier(errors.New("also down"))))

	_, err := e.Reconcile(context.Background(), community)

	require.Error(t, err)
	assert.True(t, engine.IsDestinationUnreachable(err), "pass error is reported, not the notifier error")
}

func TestReconcile_NoLogSurfaceDoesNotNotify(t *testing.T) {
	f := newFixture(t, alphaSnapshot())
	f.roster.SetSettings(roster.Settings{CommunityID: community, DisplaySurfaceID: display})
	f.surface.FailHistory(errors.New("unknown channel"))

	_, err := f.engine.Reconcile(context.Background(), community)

	require.Error(t, err)
	assert.Empty(t, f.notifier.Posts())
}

func TestReconcile_StepsExceeded(t *testing.T) {
	f := newFixture(t, alphaSnapshot(), engine.WithMaxSteps(3))
	for i := 0; i < 5; i++ {
		f.surface.Seed(display, testutil.System(fmt.Sprintf("notice %d", i)))
	}

	_, err := f.engine.Reconcile(context.Background(), community)

	require.Error(t, err)
	assert.True(t, engine.IsStepsExceededError(err))
	assert.Equal(t, engine.ErrCodeStepsExceeded, engine.PassErrorCodeOf(err))
}

func TestReconcile_SurfaceInjectingSystemMessages(t *testing.T) {
	f := newFixture(t, alphaSnapshot(), engine.WithMaxSteps(50))

	// Every create provokes a system notice, like a pin announcement.
	f.surface.AfterWrite(func(s *testutil.MemSurface, w testutil.Write) {
		if w.Op == engine.OpCreate {
			s.Seed(display, testutil.System("notice after "+w.MessageID))
		}
	})

	report := f.reconcile(t)

	var owned []string
	for _, m := range f.surface.Messages(display) {
		if m.IsStandard() {
			owned = append(owned, m.Content)
		}
	}
	assert.Equal(t, f.plan(alphaSnapshot()), owned)
	// One notice per create, each stepped over by the next block or by cleanup.
	assert.Equal(t, report.Stats.Blocks, report.Stats.SkippedSystem)
}

func TestReconcile_Timeout(t *testing.T) {
	f := newFixture(t, alphaSnapshot(), engine.WithTimeout(30*time.Millisecond))
	f.surface.SetReadDelay(time.Second)

	start := time.Now()
	_, err := f.engine.Reconcile(context.Background(), community)

	require.Error(t, err)
	assert.True(t, engine.IsTimeout(err), "got %v", err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Len(t, f.notifier.Posts(), 1, "diagnostic is posted after the deadline")
}

func TestReconcile_CallerCancellationIsNotTimeout(t *testing.T) {
	f := newFixture(t, alphaSnapshot())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine.Reconcile(ctx, community)

	require.Error(t, err)
	assert.False(t, engine.IsTimeout(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReconcile_SerializedPerSurface(t *testing.T) {
	snap := alphaSnapshot()
	f := newFixture(t, snap)
	f.surface.SetReadDelay(time.Millisecond)

	const passes = 4
	var wg sync.WaitGroup
	errs := make([]error, passes)
	for i := 0; i < passes; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.Reconcile(context.Background(), community)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	want := f.plan(snap)
	assert.Equal(t, want, f.surface.Contents(display), "no duplicated content")
	assert.Equal(t, len(want), f.surface.WriteCount(engine.OpCreate))
	assert.Zero(t, f.surface.WriteCount(engine.OpDelete))
}

func TestReconcile_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	snap := alphaSnapshot()
	f := newFixture(t, snap, engine.WithMetrics(engine.NewMetrics(reg)))

	f.reconcile(t)
	_, _ = f.engine.Reconcile(context.Background(), "unconfigured")

	expected := fmt.Sprintf(`
# HELP rollcall_reconcile_passes_total Reconciliation passes by outcome.
# TYPE rollcall_reconcile_passes_total counter
rollcall_reconcile_passes_total{outcome="converged"} 1
rollcall_reconcile_passes_total{outcome="skipped"} 1
# HELP rollcall_reconcile_writes_total Writes issued to display surfaces by operation.
# TYPE rollcall_reconcile_writes_total counter
rollcall_reconcile_writes_total{op="create"} %d
`, len(f.plan(snap)))
	require.NoError(t, promtest.GatherAndCompare(reg, strings.NewReader(expected),
		"rollcall_reconcile_passes_total", "rollcall_reconcile_writes_total"))
}

func TestReconcile_WriteRatePacing(t *testing.T) {
	snap := alphaSnapshot()
	f := newFixture(t, snap, engine.WithWriteRate(1000, 1))

	f.reconcile(t)

	assert.Equal(t, f.plan(snap), f.surface.Contents(display))
}

func TestReconcile_PlanLargerThanWindowFailsUpFront(t *testing.T) {
	for _, limit := range []int{5, 7} {
		t.Run(fmt.Sprintf("limit_%d", limit), func(t *testing.T) {
			f := newFixture(t, alphaSnapshot(), engine.WithHistoryLimit(limit))

			_, err := f.engine.Reconcile(context.Background(), community)

			require.Error(t, err)
			assert.True(t, engine.IsWindowSaturated(err), "got %v", err)
			assert.Zero(t, f.surface.Reads(), "nothing is read")
			assert.Empty(t, f.surface.Writes())
			assert.Len(t, f.notifier.Posts(), 1)
		})
	}
}

func TestReconcile_PlanFittingWindowIsIdempotent(t *testing.T) {
	snap := alphaSnapshot()
	f := newFixture(t, snap, engine.WithHistoryLimit(8))

	f.reconcile(t)
	require.Equal(t, f.plan(snap), f.surface.Contents(display))

	f.surface.ResetWrites()
	report := f.reconcile(t)
	assert.Empty(t, f.surface.Writes())
	assert.Equal(t, len(f.plan(snap)), report.Stats.Kept)
}

func TestReconcile_SaturatedWindowRefusesCleanupDeletes(t *testing.T) {
	snap := roster.Snapshot{}
	f := newFixture(t, snap, engine.WithHistoryLimit(5))
	for i := 0; i < 10; i++ {
		f.surface.Seed(display, f.surface.Owned(fmt.Sprintf("old %d", i)))
	}

	report, err := f.engine.Reconcile(context.Background(), community)

	require.Error(t, err)
	assert.True(t, engine.IsWindowSaturated(err), "got %v", err)
	assert.Zero(t, f.surface.WriteCount(engine.OpDelete), "placed blocks are never deleted")
	assert.Equal(t, 3, report.Stats.Edited)

	want := []string{"old 0", "old 1", "old 2", "old 3", "old 4"}
	want = append(want, f.plan(snap)...)
	want = append(want, "old 8", "old 9")
	assert.Equal(t, want, f.surface.Contents(display))
	assert.Len(t, f.notifier.Posts(), 1)
}

func TestReconcile_SaturatedWindowRefusesForeignDelete(t *testing.T) {
	f := newFixture(t, alphaSnapshot(), engine.WithHistoryLimit(10))
	for i := 0; i < 10; i++ {
		f.surface.Seed(display, testutil.Foreign("user-9", fmt.Sprintf("chatter %d", i)))
	}

	_, err := f.engine.Reconcile(context.Background(), community)

	require.Error(t, err)
	var pe *engine.PassError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, engine.ErrCodeWindowSaturated, pe.Code)
	assert.Equal(t, engine.OpDelete, pe.Op)
	assert.Empty(t, f.surface.Writes())
}

func TestReconcile_SaturatedWindowRefusesCreate(t *testing.T) {
	f := newFixture(t, alphaSnapshot(), engine.WithHistoryLimit(8))
	for i := 0; i < 8; i++ {
		f.surface.Seed(display, testutil.System(fmt.Sprintf("notice %d", i)))
	}

	_, err := f.engine.Reconcile(context.Background(), community)

	require.Error(t, err)
	var pe *engine.PassError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, engine.ErrCodeWindowSaturated, pe.Code)
	assert.Equal(t, engine.OpCreate, pe.Op)
	assert.Equal(t, 8, pe.Cursor)
	assert.Empty(t, f.surface.Writes())
}

// stallingSurface blocks its first history read until released, ignoring
// the caller's context, like a hung HTTP request without a client timeout.
type stallingSurface struct {
	*testutil.MemSurface
	once     sync.Once
	entered  chan struct{}
	released chan struct{}
}

func (s *stallingSurface) History(ctx context.Context, surfaceID string, limit int) ([]engine.Message, error) {
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.released
	}
	return s.MemSurface.History(ctx, surfaceID, limit)
}

func TestReconcile_LockWaitCountsAgainstTimeout(t *testing.T) {
	r := testutil.NewStaticRoster()
	r.SetSettings(roster.Settings{CommunityID: community, DisplaySurfaceID: display})
	r.SetSnapshot(community, alphaSnapshot())
	surface := &stallingSurface{
		MemSurface: testutil.NewMemSurface(botID),
		entered:    make(chan struct{}),
		released:   make(chan struct{}),
	}
	eng := engine.New(r, surface, engine.WithTimeout(50*time.Millisecond))

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, _ = eng.Reconcile(context.Background(), community)
	}()
	<-surface.entered

	start := time.Now()
	_, err := eng.Reconcile(context.Background(), community)

	require.Error(t, err)
	assert.True(t, engine.IsTimeout(err), "got %v", err)
	assert.Less(t, time.Since(start), time.Second, "queued pass gives up at its deadline")

	close(surface.released)
	<-firstDone
}

func TestReconcile_LockReleasedAfterAbandonedWait(t *testing.T) {
	r := testutil.NewStaticRoster()
	r.SetSettings(roster.Settings{CommunityID: community, DisplaySurfaceID: display})
	r.SetSnapshot(community, alphaSnapshot())
	surface := &stallingSurface{
		MemSurface: testutil.NewMemSurface(botID),
		entered:    make(chan struct{}),
		released:   make(chan struct{}),
	}
	eng := engine.New(r, surface, engine.WithTimeout(time.Minute))

	firstDone := make(chan error, 1)
	go func() {
		_, err := eng.Reconcile(context.Background(), community)
		firstDone <- err
	}()
	<-surface.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := eng.Reconcile(ctx, community)
	require.Error(t, err)

	close(surface.released)
	require.NoError(t, <-firstDone)

	// The abandoned waiter must not keep the surface locked.
	done := make(chan error, 1)
	go func() {
		_, err := eng.Reconcile(context.Background(), community)
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("surface lock was never released")
	}
}
