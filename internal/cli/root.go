package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/rollcall/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	ConfigPath string
	EnvFile    string
	Database   string // overrides the configured database when set

	// configExplicit is true when --config was given on the command line.
	configExplicit bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rollcall CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rollcall",
		Short: "rollcall - community roster bot",
		Long: `Manage a community roster and keep a Discord channel in sync with it.

The roster (groups and members) lives in SQLite. A display channel shows it
as an ordered series of messages that rollcall reconciles in place after
every change, editing, creating and deleting only what differs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			opts.configExplicit = cmd.Flags().Changed("config")
			if err := config.LoadDotEnv(opts.EnvFile); err != nil {
				return WrapExitError(ExitCommandError, "failed to load env file", err)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath, "path to config file")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "path to .env file")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides config)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewPreviewCommand(opts))
	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewGroupCommand(opts))
	cmd.AddCommand(NewMemberCommand(opts))
	cmd.AddCommand(NewDestinationCommand(opts))
	cmd.AddCommand(NewGrantCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
