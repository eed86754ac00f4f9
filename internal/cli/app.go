package cli

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/rollcall/internal/config"
	"github.com/roach88/rollcall/internal/logging"
	"github.com/roach88/rollcall/internal/store"
)

// loadConfig reads the config file named by the global flags.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path, opts.configExplicit)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	return cfg, nil
}

// openStore opens the configured database.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.Database, store.WithGroupOrder(cfg.Display.GroupOrder))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// newLogger builds the process logger. Logs go to the command's stderr so
// JSON output on stdout stays parseable.
func newLogger(cmd *cobra.Command, opts *RootOptions, cfg *config.Config) *slog.Logger {
	return logging.Setup(logging.Options{
		Verbose: opts.Verbose,
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Writer:  cmd.ErrOrStderr(),
	})
}

// formatter returns an OutputFormatter writing to the command's streams.
func formatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// withStore loads config, opens the store and runs fn, closing the store after.
func withStore(opts *RootOptions, fn func(cfg *config.Config, st *store.Store) error) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeQuietly(st)
	return fn(cfg, st)
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Error("error closing", "error", err)
	}
}
