package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSweepCommand runs one pass of the stuck-sending sweeper.
func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Fail signals stuck in TE_VERZENDEN longer than the send-fail timeout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := rootOpts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := a.Service.FailStuckSending(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "sweep", err)
			}
			if ids == nil {
				ids = []int64{}
			}
			return rootOpts.print(cmd,
				fmt.Sprintf("failed %d stuck signal(s) %v", len(ids), ids),
				map[string]any{"failed": ids},
			)
		},
	}
}
