package cli

import (
	"github.com/spf13/cobra"

	"signals/migrations"
)

// NewMigrateCommand applies the embedded schema to DATABASE_URL.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rootOpts.config.Database.URL == "" {
				return NewExitError(ExitCommandError, "DATABASE_URL is not set")
			}
			a, err := rootOpts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			files, err := migrations.Files()
			if err != nil {
				return WrapExitError(ExitFailure, "list migrations", err)
			}
			return rootOpts.print(cmd, "migrations applied", map[string]any{"applied": files})
		},
	}
}
