package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/moby/locker"

	"github.com/roach88/rollcall/internal/roster"
)

// DefaultTimeout bounds the wall time of one pass.
const DefaultTimeout = 2 * time.Minute

// notifyTimeout bounds the diagnostic post sent after a failed pass.
const notifyTimeout = 10 * time.Second

// Engine runs reconciliation passes for communities.
//
// Thread-safety model:
//   - Reconcile(): safe from any goroutine
//   - passes for the same display surface are serialized; passes for
//     different surfaces run concurrently
type Engine struct {
	roster     Roster
	surface    Surface
	planner    *Planner
	reconciler *Reconciler
	notifier   Notifier
	locks      *locker.Locker
	passIDs    PassIDGenerator
	metrics    *Metrics
	logger     *slog.Logger

	layout       Layout
	timeout      time.Duration
	historyLimit int
	maxSteps     int
	writesPerSec float64
	writeBurst   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLayout sets the planner layout.
func WithLayout(layout Layout) Option {
	return func(e *Engine) {
		e.layout = layout
	}
}

// WithTimeout bounds the wall time of one pass. Zero disables the bound.
//
// Default: 2 minutes (DefaultTimeout)
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithHistoryLimit sets the window size.
//
// Default: 500 messages (DefaultHistoryLimit)
func WithHistoryLimit(n int) Option {
	return func(e *Engine) {
		e.historyLimit = n
	}
}

// WithMaxSteps sets the per-block step quota.
//
// Default: 1000 steps (DefaultMaxSteps)
// Use WithMaxSteps(5) for testing quota enforcement.
func WithMaxSteps(n int) Option {
	return func(e *Engine) {
		e.maxSteps = n
	}
}

// WithWriteRate paces writes per surface. rps <= 0 disables pacing.
func WithWriteRate(rps float64, burst int) Option {
	return func(e *Engine) {
		e.writesPerSec = rps
		e.writeBurst = burst
	}
}

// WithNotifier sets where failed-pass diagnostics are posted.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) {
		e.notifier = n
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithPassIDGenerator overrides the pass id generator (for testing).
func WithPassIDGenerator(g PassIDGenerator) Option {
	return func(e *Engine) {
		e.passIDs = g
	}
}

// New creates an Engine reading the roster from r and writing to surface.
func New(r Roster, surface Surface, opts ...Option) *Engine {
	e := &Engine{
		roster:       r,
		surface:      surface,
		locks:        locker.New(),
		passIDs:      UUIDv7Generator{},
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout:      DefaultTimeout,
		historyLimit: DefaultHistoryLimit,
		maxSteps:     DefaultMaxSteps,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.planner = NewPlanner(e.layout, e.logger)
	e.reconciler = NewReconciler(surface, ReconcilerConfig{
		HistoryLimit: e.historyLimit,
		MaxSteps:     e.maxSteps,
		Pacer:        NewPacer(e.writesPerSec, e.writeBurst),
		Metrics:      e.metrics,
		Logger:       e.logger,
	})

	return e
}

// Planner returns the engine's planner.
func (e *Engine) Planner() *Planner {
	return e.planner
}

// Report summarizes one pass.
type Report struct {
	PassID      string
	CommunityID string
	SurfaceID   string

	// Skipped is true when the community has no display surface configured.
	Skipped bool

	Stats    Stats
	Cursor   int
	Duration time.Duration
}

// Reconcile runs one pass for a community.
//
// A community without a display surface is a no-op: the report has Skipped
// set and the error is nil. Any failure aborts the pass, is logged, and is
// posted once to the community's log surface when one is configured.
func (e *Engine) Reconcile(ctx context.Context, communityID string) (Report, error) {
	report := Report{PassID: e.passIDs.Generate(), CommunityID: communityID}
	logger := e.logger.With("pass", report.PassID, "community", communityID)

	settings, err := e.roster.GetSettings(ctx, communityID)
	if err != nil {
		err = &PassError{Code: ErrCodeRosterUnavailable, Message: "settings lookup failed", Err: err}
		logger.Error("reconcile failed", "error", err)
		e.metrics.observePass(outcomeFailed, 0)
		return report, err
	}
	if !settings.HasDisplay() {
		report.Skipped = true
		logger.Debug("no display surface configured, skipping")
		e.metrics.observePass(outcomeSkipped, 0)
		return report, nil
	}
	report.SurfaceID = settings.DisplaySurfaceID
	logger = logger.With("surface", settings.DisplaySurfaceID)

	// The deadline covers waiting for the surface lock too.
	passCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		passCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	var st *PassState
	if err = e.lockSurface(passCtx, settings.DisplaySurfaceID); err != nil {
		err = e.deadlineError(passCtx, settings.DisplaySurfaceID, nil, err)
	} else {
		st, err = e.run(passCtx, communityID, settings.DisplaySurfaceID)
		e.locks.Unlock(settings.DisplaySurfaceID)
	}
	report.Duration = time.Since(start)
	if st != nil {
		report.Stats = st.Stats()
		report.Cursor = st.Cursor()
	}

	if err != nil {
		logger.Error("reconcile failed",
			"error", err,
			"cursor", report.Cursor,
			"writes", report.Stats.Writes())
		e.metrics.observePass(outcomeFailed, report.Duration)
		e.notify(ctx, settings, report, err)
		return report, err
	}

	logger.Info("reconcile converged",
		"blocks", report.Stats.Blocks,
		"created", report.Stats.Created,
		"edited", report.Stats.Edited,
		"deleted", report.Stats.Deleted,
		"duration", report.Duration)
	e.metrics.observePass(outcomeConverged, report.Duration)
	return report, nil
}

// lockSurface takes the per-surface lock, giving up when ctx ends. A lock
// acquired after giving up is released in the background.
func (e *Engine) lockSurface(ctx context.Context, surfaceID string) error {
	acquired := make(chan struct{})
	go func() {
		e.locks.Lock(surfaceID)
		close(acquired)
	}()

	select {
	case <-acquired:
		return nil
	case <-ctx.Done():
		go func() {
			<-acquired
			e.locks.Unlock(surfaceID)
		}()
		return ctx.Err()
	}
}

// run executes plan, placement and cleanup. passCtx carries the pass deadline.
func (e *Engine) run(passCtx context.Context, communityID, surfaceID string) (*PassState, error) {
	snap, err := e.roster.Snapshot(passCtx, communityID)
	if err != nil {
		return nil, &PassError{
			Code:      ErrCodeRosterUnavailable,
			Message:   "snapshot failed",
			SurfaceID: surfaceID,
			Err:       err,
		}
	}

	blocks := e.planner.Plan(snap)
	if limit := e.reconciler.WindowLimit(); len(blocks) >= limit {
		return nil, &PassError{
			Code:      ErrCodeWindowSaturated,
			Message:   fmt.Sprintf("plan has %d blocks, history limit is %d", len(blocks), limit),
			SurfaceID: surfaceID,
		}
	}

	st := NewPassState(blocks)

	for st.Pending() {
		if err := e.reconciler.PlaceNext(passCtx, surfaceID, st); err != nil {
			return st, e.deadlineError(passCtx, surfaceID, st, err)
		}
	}

	if err := e.reconciler.Cleanup(passCtx, surfaceID, st); err != nil {
		return st, e.deadlineError(passCtx, surfaceID, st, err)
	}

	return st, nil
}

// deadlineError reclassifies failures caused by the pass deadline.
// st is nil when the deadline expired before placement started.
func (e *Engine) deadlineError(passCtx context.Context, surfaceID string, st *PassState, err error) error {
	if errors.Is(passCtx.Err(), context.DeadlineExceeded) {
		pe := &PassError{
			Code:      ErrCodeTimeout,
			Message:   fmt.Sprintf("pass exceeded %s", e.timeout),
			SurfaceID: surfaceID,
			Err:       err,
		}
		if st != nil {
			pe.Cursor = st.Cursor()
		}
		return pe
	}
	return err
}

// notify posts a single diagnostic line to the log surface, if configured.
// Notification failures are logged and otherwise ignored.
func (e *Engine) notify(ctx context.Context, settings roster.Settings, report Report, passErr error) {
	if e.notifier == nil || !settings.HasLog() {
		return
	}

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	text := fmt.Sprintf("Roster display sync failed (pass %s, %d writes before abort): %v",
		report.PassID, report.Stats.Writes(), passErr)
	if err := e.notifier.Notify(nctx, settings.LogSurfaceID, text); err != nil {
		e.logger.Warn("failed to post diagnostic to log surface",
			"pass", report.PassID,
			"log_surface", settings.LogSurfaceID,
			"error", err)
	}
}
