package engine

import (
	"context"
	"io"
	"log/slog"
)

// ReconcilerConfig configures a Reconciler.
type ReconcilerConfig struct {
	// HistoryLimit caps the window size. Default: DefaultHistoryLimit.
	HistoryLimit int

	// MaxSteps bounds the checks spent per block and on cleanup.
	// Default: DefaultMaxSteps.
	MaxSteps int

	// Pacer spaces out writes. Nil means unpaced.
	Pacer *Pacer

	// Metrics records writes. Nil records nothing.
	Metrics *Metrics

	// Logger receives per-write debug records. Nil discards.
	Logger *slog.Logger
}

// Reconciler converges a surface's window onto render blocks.
//
// Every step re-reads the window, decides one action for the slot under the
// cursor and applies it. Nothing is cached between steps.
type Reconciler struct {
	surface  Surface
	reader   *WindowReader
	maxSteps int
	pacer    *Pacer
	metrics  *Metrics
	logger   *slog.Logger
}

// NewReconciler creates a reconciler writing to surface.
func NewReconciler(surface Surface, cfg ReconcilerConfig) *Reconciler {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reconciler{
		surface:  surface,
		reader:   NewWindowReader(surface, cfg.HistoryLimit),
		maxSteps: cfg.MaxSteps,
		pacer:    cfg.Pacer,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
	}
}

// PlaceNext places the next pending block of st, repeating steps until the
// block is consumed. Returns StepsExceededError if the block cannot be placed
// within the step quota.
func (r *Reconciler) PlaceNext(ctx context.Context, surfaceID string, st *PassState) error {
	quota := NewStepQuota(r.maxSteps)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := quota.Check(surfaceID, st.cursor); err != nil {
			return err
		}

		placed, err := r.Step(ctx, surfaceID, st)
		if err != nil {
			return err
		}
		if placed {
			return nil
		}
	}
}

// Step performs one transition for the next pending block of st: read the
// window, decide, apply. Returns true once the block is placed.
//
// After deleting a foreign message the cursor stays put: the log shifted
// down, so the reclaimed slot is examined again on the next step.
//
// Creates and deletes are refused with WINDOW_SATURATED once the window is
// full. Edits never change the message count and are always allowed.
func (r *Reconciler) Step(ctx context.Context, surfaceID string, st *PassState) (bool, error) {
	window, err := r.reader.Read(ctx, surfaceID)
	if err != nil {
		return false, newUnreachableError(surfaceID, st.cursor, err)
	}

	block := st.Next()
	action := Decide(window, st.cursor, block, r.surface.Self())

	switch action {
	case ActionSkipSystem:
		st.stats.SkippedSystem++
		st.advance()
		return false, nil

	case ActionCreate:
		if r.saturated(window) {
			return false, newSaturatedError(surfaceID, OpCreate, st.cursor, r.reader.Limit())
		}
		if err := r.write(ctx, surfaceID, OpCreate, st.cursor, func() error {
			_, err := r.surface.Send(ctx, surfaceID, block.Content, block.Attachment)
			return err
		}); err != nil {
			return false, err
		}
		st.stats.Created++
		st.place()
		return true, nil

	case ActionDeleteForeign:
		if r.saturated(window) {
			return false, newSaturatedError(surfaceID, OpDelete, st.cursor, r.reader.Limit())
		}
		msg := window[st.cursor]
		if err := r.write(ctx, surfaceID, OpDelete, st.cursor, func() error {
			return r.surface.Delete(ctx, surfaceID, msg.ID)
		}); err != nil {
			return false, err
		}
		st.stats.Deleted++
		return false, nil

	case ActionEdit:
		msg := window[st.cursor]
		if err := r.write(ctx, surfaceID, OpEdit, st.cursor, func() error {
			_, err := r.surface.Edit(ctx, surfaceID, msg.ID, block.Content, block.Attachment)
			return err
		}); err != nil {
			return false, err
		}
		st.stats.Edited++
		st.place()
		return true, nil

	default: // ActionKeep
		st.stats.Kept++
		st.place()
		return true, nil
	}
}

// Cleanup deletes every standard message at or after the cursor, stepping
// over system messages. Runs after all blocks are placed.
func (r *Reconciler) Cleanup(ctx context.Context, surfaceID string, st *PassState) error {
	quota := NewStepQuota(r.maxSteps)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		window, err := r.reader.Read(ctx, surfaceID)
		if err != nil {
			return newUnreachableError(surfaceID, st.cursor, err)
		}

		action, ok := DecideCleanup(window, st.cursor)
		if !ok {
			return nil
		}
		if err := quota.Check(surfaceID, st.cursor); err != nil {
			return err
		}

		if action == ActionSkipSystem {
			st.stats.SkippedSystem++
			st.advance()
			continue
		}

		if r.saturated(window) {
			return newSaturatedError(surfaceID, OpDelete, st.cursor, r.reader.Limit())
		}
		msg := window[st.cursor]
		if err := r.write(ctx, surfaceID, OpDelete, st.cursor, func() error {
			return r.surface.Delete(ctx, surfaceID, msg.ID)
		}); err != nil {
			return err
		}
		st.stats.Deleted++
	}
}

// WindowLimit returns the number of messages one window read covers.
func (r *Reconciler) WindowLimit() int {
	return r.reader.Limit()
}

// saturated reports whether the window may be hiding older messages. A create
// or delete on a full window slides it by one message and every position the
// cursor has walked past moves with it.
func (r *Reconciler) saturated(window []Message) bool {
	return len(window) >= r.reader.Limit()
}

// write paces, issues and records one write.
func (r *Reconciler) write(ctx context.Context, surfaceID string, op Op, cursor int, fn func() error) error {
	if err := r.pacer.Wait(ctx, surfaceID); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return newWriteError(surfaceID, op, cursor, err)
	}
	r.metrics.observeWrite(op)
	r.logger.Debug("surface write", "surface", surfaceID, "op", op, "cursor", cursor)
	return nil
}
