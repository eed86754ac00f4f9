package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/roach88/rollcall/internal/discord"
	"github.com/roach88/rollcall/internal/engine"
	"github.com/roach88/rollcall/internal/scheduler"
	"github.com/roach88/rollcall/internal/store"
)

// shutdownTimeout bounds the metrics server shutdown.
const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions

	// SkipRegister leaves slash commands as they are.
	SkipRegister bool

	// InitialSync reconciles every configured community at startup.
	InitialSync bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot",
		Long: `Connect to Discord and serve slash commands.

Every roster change made through a slash command triggers a reconciliation
pass for that server's display channel. When schedule.cron is set, every
configured server is also resynced on that schedule. When metrics.listen is
set, Prometheus metrics are served on /metrics.

Example:
  rollcall serve --config rollcall.yaml
  ROLLCALL_DISCORD_TOKEN=... rollcall serve --db ./roster.db --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.SkipRegister, "skip-register", false, "do not (re)register slash commands")
	cmd.Flags().BoolVar(&opts.InitialSync, "initial-sync", true, "reconcile every configured server at startup")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if err := cfg.RequireToken(); err != nil {
		return WrapExitError(ExitCommandError, "missing credentials", err)
	}
	logger := newLogger(cmd, opts.RootOptions, cfg)

	logger.Info("opening database", "path", cfg.Database)
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	session, err := discord.NewSession(cfg.Discord.Token)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create session", err)
	}
	if err := session.Open(); err != nil {
		return WrapExitError(ExitFailure, "failed to connect to discord", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			logger.Error("error closing session", "error", closeErr)
		}
	}()
	self := session.State.User.ID
	logger.Info("connected", "user", self)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	engineOpts := append(cfg.EngineOptions(),
		engine.WithNotifier(discord.NewNotifier(session)),
		engine.WithMetrics(engine.NewMetrics(reg)),
		engine.WithLogger(logger),
	)
	eng := engine.New(st, discord.NewSurface(session, self), engineOpts...)

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	commands := discord.NewCommands(st, eng, discord.NewNotifier(session), logger).
		WithDirectMessages(session)
	removeHandler := session.AddHandler(commands.Handler(ctx))
	defer removeHandler()

	if !opts.SkipRegister {
		if err := discord.RegisterCommands(ctx, session, self, cfg.Discord.GuildID); err != nil {
			return WrapExitError(ExitFailure, "failed to register commands", err)
		}
		logger.Info("slash commands registered", "guild", cfg.Discord.GuildID)
	}

	if cfg.Metrics.Listen != "" {
		stop := serveMetrics(cfg.Metrics.Listen, reg, logger)
		defer stop()
	}

	var sched *scheduler.Scheduler
	if cfg.Schedule.Cron != "" {
		sched, err = scheduler.New(cfg.Schedule.Cron, st, eng, scheduler.WithLogger(logger))
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid schedule", err)
		}
		go func() {
			_ = sched.Run(ctx)
		}()
	}

	if opts.InitialSync {
		go initialSync(ctx, st, eng, logger)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "rollcall is running. Press Ctrl-C to stop.")
	<-ctx.Done()

	logger.Info("rollcall stopped gracefully")
	return nil
}

// initialSync reconciles every configured community once.
func initialSync(ctx context.Context, st *store.Store, eng *engine.Engine, logger *slog.Logger) {
	all, err := st.ListSettings(ctx)
	if err != nil {
		logger.Error("initial sync: list settings failed", "error", err)
		return
	}
	for _, s := range all {
		if ctx.Err() != nil {
			return
		}
		_, _ = eng.Reconcile(ctx, s.CommunityID)
	}
}

// serveMetrics starts the Prometheus endpoint and returns a stop function.
func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("metrics shutdown failed", "error", err)
		}
	}
}
