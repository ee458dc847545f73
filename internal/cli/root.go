// Package cli implements sigmaxctl, the operator tool for the sigmax bridge.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"signals/internal/app"
	"signals/internal/platform/config"
	"signals/internal/platform/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	EnvFile string
	Format  string // "json" | "text"
	Verbose bool

	config config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the sigmaxctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sigmaxctl",
		Short: "Operate the Sigmax/CityControl handoff",
		Long: `sigmaxctl runs one-off handoff operations against the same stores the
server uses: pushing a signal to CityControl, failing stuck signals,
applying migrations and minting callback tokens.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if err := config.LoadDotEnv(opts.EnvFile); err != nil {
				return WrapExitError(ExitCommandError, "load env file", err)
			}
			opts.config = config.FromEnv()
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at debug level to stderr")

	cmd.AddCommand(NewPushCommand(opts))
	cmd.AddCommand(NewEnqueueCommand(opts))
	cmd.AddCommand(NewSweepCommand(opts))
	cmd.AddCommand(NewParseIDCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))

	return cmd
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := o.config.Log.Level
	if o.Verbose {
		level = "debug"
	}
	return logger.NewWithWriter(cmd.ErrOrStderr(), level, "text")
}

// openApp wires the shared dependencies. Metrics go to a private registry
// since nothing scrapes a one-off command.
func (o *RootOptions) openApp(cmd *cobra.Command, extra ...app.Option) (*app.App, error) {
	opts := append([]app.Option{app.WithRegisterer(prometheus.NewRegistry())}, extra...)
	a, err := app.New(cmd.Context(), o.config, o.logger(cmd), opts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "initialise", err)
	}
	return a, nil
}

// print writes v as JSON, or text as-is, depending on --format.
func (o *RootOptions) print(cmd *cobra.Command, text string, v any) error {
	if o.Format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), text)
	return err
}
