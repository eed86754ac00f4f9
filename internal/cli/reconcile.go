package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/rollcall/internal/config"
	"github.com/roach88/rollcall/internal/discord"
	"github.com/roach88/rollcall/internal/engine"
	"github.com/roach88/rollcall/internal/store"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions

	// SurfaceFactory builds the surface and notifier (for testing).
	// If nil, a Discord REST session is used.
	SurfaceFactory func(ctx context.Context, cfg *config.Config) (engine.Surface, engine.Notifier, error)

	// PassIDs overrides the pass id generator (for testing).
	PassIDs engine.PassIDGenerator
}

// PassSummary is the output of a reconcile command.
type PassSummary struct {
	PassID      string        `json:"pass_id"`
	CommunityID string        `json:"community_id"`
	SurfaceID   string        `json:"surface_id,omitempty"`
	Skipped     bool          `json:"skipped"`
	Blocks      int           `json:"blocks"`
	Created     int           `json:"created"`
	Edited      int           `json:"edited"`
	Kept        int           `json:"kept"`
	Deleted     int           `json:"deleted"`
	SkippedSys  int           `json:"skipped_system"`
	Duration    time.Duration `json:"duration_ns"`
}

// Text renders the summary for humans.
func (p PassSummary) Text() string {
	if p.Skipped {
		return fmt.Sprintf("Community %s has no display surface configured; nothing to do.\n", p.CommunityID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Pass %s converged %s in %s\n", p.PassID, p.SurfaceID, p.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "  blocks=%d created=%d edited=%d kept=%d deleted=%d skipped_system=%d\n",
		p.Blocks, p.Created, p.Edited, p.Kept, p.Deleted, p.SkippedSys)
	return b.String()
}

func summarize(r engine.Report) PassSummary {
	return PassSummary{
		PassID:      r.PassID,
		CommunityID: r.CommunityID,
		SurfaceID:   r.SurfaceID,
		Skipped:     r.Skipped,
		Blocks:      r.Stats.Blocks,
		Created:     r.Stats.Created,
		Edited:      r.Stats.Edited,
		Kept:        r.Stats.Kept,
		Deleted:     r.Stats.Deleted,
		SkippedSys:  r.Stats.SkippedSystem,
		Duration:    r.Duration,
	}
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile <community-id>",
		Short: "Run one reconciliation pass",
		Long: `Run one reconciliation pass for a community over the Discord REST API.

The display channel is brought in line with the roster: messages are edited
in place where they differ, missing ones are appended, foreign and surplus
messages are deleted and system messages are left alone.

Exit codes:
  0 - Display converged (or no display configured)
  1 - Pass aborted (see error code)
  2 - Command error

Examples:
  rollcall reconcile 123456789012345678
  rollcall reconcile 123456789012345678 --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, args[0], cmd)
		},
	}

	return cmd
}

func runReconcile(opts *ReconcileOptions, communityID string, cmd *cobra.Command) error {
	out := formatter(cmd, opts.RootOptions)

	return withStore(opts.RootOptions, func(cfg *config.Config, st *store.Store) error {
		logger := newLogger(cmd, opts.RootOptions, cfg)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		factory := opts.SurfaceFactory
		if factory == nil {
			factory = discordSurface
		}
		surface, notifier, err := factory(ctx, cfg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to connect to discord", err)
		}

		engineOpts := append(cfg.EngineOptions(),
			engine.WithNotifier(notifier),
			engine.WithLogger(logger),
		)
		if opts.PassIDs != nil {
			engineOpts = append(engineOpts, engine.WithPassIDGenerator(opts.PassIDs))
		}
		eng := engine.New(st, surface, engineOpts...)

		out.VerboseLog("reconciling community %s", communityID)
		report, err := eng.Reconcile(ctx, communityID)
		if err != nil {
			code := engine.PassErrorCodeOf(err)
			_ = out.Error(CodePassFailed, err.Error(), map[string]any{
				"pass_id":   report.PassID,
				"code":      string(code),
				"cursor":    report.Cursor,
				"writes":    report.Stats.Writes(),
				"surface":   report.SurfaceID,
				"community": communityID,
			})
			return WrapExitError(ExitFailure, "reconciliation failed", err)
		}

		return out.SuccessWithPass(summarize(report), report.PassID)
	})
}

// discordSurface opens a REST-only session acting as the bot user.
func discordSurface(ctx context.Context, cfg *config.Config) (engine.Surface, engine.Notifier, error) {
	if err := cfg.RequireToken(); err != nil {
		return nil, nil, err
	}
	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return nil, nil, err
	}
	self, err := discord.SelfID(ctx, session)
	if err != nil {
		return nil, nil, err
	}
	return discord.NewSurface(session, self), discord.NewNotifier(session), nil
}
