// Package scheduler triggers periodic reconciliation passes on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/roach88/rollcall/internal/engine"
	"github.com/roach88/rollcall/internal/logging"
	"github.com/roach88/rollcall/internal/roster"
)

// retryDelay is how long the loop waits after the cron expression fails to
// yield a next tick.
const retryDelay = 30 * time.Second

// Reconciler runs one pass for a community.
type Reconciler interface {
	Reconcile(ctx context.Context, communityID string) (engine.Report, error)
}

// SettingsLister lists communities with a configured display surface.
type SettingsLister interface {
	ListSettings(ctx context.Context) ([]roster.Settings, error)
}

// Scheduler resyncs every configured community on each cron tick.
type Scheduler struct {
	cron       string
	settings   SettingsLister
	reconciler Reconciler
	logger     *slog.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	mu      sync.Mutex
	running bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithClock overrides the time source and timer (for testing).
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
		s.after = after
	}
}

// New creates a Scheduler. The cron expression must be valid gronx syntax.
func New(cron string, settings SettingsLister, r Reconciler, opts ...Option) (*Scheduler, error) {
	if !gronx.New().IsValid(cron) {
		return nil, fmt.Errorf("invalid cron expression: %q", cron)
	}

	s := &Scheduler{
		cron:       cron,
		settings:   settings,
		reconciler: r,
		logger:     logging.Discard(),
		now:        time.Now,
		after:      time.After,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run blocks, firing a resync on every tick until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "cron", s.cron)
	defer s.logger.Info("scheduler stopped")

	for {
		next, err := gronx.NextTickAfter(s.cron, s.now(), false)
		if err != nil {
			s.logger.Error("next tick failed", "cron", s.cron, "error", err)
			select {
			case <-s.after(retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		wait := next.Sub(s.now())
		if wait < 0 {
			wait = 0
		}

		select {
		case <-s.after(wait):
			s.RunOnce(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Summary counts the outcomes of one resync.
type Summary struct {
	Communities int
	Converged   int
	Failed      int
}

// RunOnce reconciles every configured community once. A resync already in
// progress makes this call a no-op. Per-community failures are logged by
// the engine and counted here; they never stop the remaining communities.
func (s *Scheduler) RunOnce(ctx context.Context) Summary {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("previous resync still running, skipping tick")
		return Summary{}
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	all, err := s.settings.ListSettings(ctx)
	if err != nil {
		s.logger.Error("list settings failed", "error", err)
		return Summary{}
	}

	var sum Summary
	for _, st := range all {
		if ctx.Err() != nil {
			break
		}
		sum.Communities++
		if _, err := s.reconciler.Reconcile(ctx, st.CommunityID); err != nil {
			sum.Failed++
			continue
		}
		sum.Converged++
	}

	s.logger.Info("scheduled resync finished",
		"communities", sum.Communities,
		"converged", sum.Converged,
		"failed", sum.Failed)
	return sum
}
