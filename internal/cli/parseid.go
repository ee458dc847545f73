package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	sigmaxModels "signals/internal/sigmax/models"
)

type parseIDOutput struct {
	SignalID int64  `json:"signal_id"`
	Sequence string `json:"sequence,omitempty"`
	Legacy   bool   `json:"legacy"`
}

// NewParseIDCommand checks a CityControl case identifier.
func NewParseIDCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse-id <case-id>",
		Short: "Parse a SIA-<id>[.<NN>] case identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := sigmaxModels.ParseCaseID(args[0])
			if err != nil {
				return WrapExitError(ExitFailure, "parse-id", err)
			}
			out := parseIDOutput{SignalID: id.SignalID, Sequence: id.SequenceString(), Legacy: !id.HasSequence()}
			text := fmt.Sprintf("signal %d sequence %s", id.SignalID, id.SequenceString())
			if out.Legacy {
				text = fmt.Sprintf("signal %d (legacy, no sequence)", id.SignalID)
			}
			return rootOpts.print(cmd, text, out)
		},
	}
}
