package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"signals/internal/sigmax/trigger"
	dErrors "signals/pkg/domain-errors"
)

type pushOutput struct {
	SignalID int64  `json:"signal_id"`
	Skipped  bool   `json:"skipped"`
	CaseID   string `json:"case_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// NewPushCommand hands one signal to CityControl synchronously.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push <signal-id>",
		Short: "Send a signal in TE_VERZENDEN to CityControl now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseSignalID(args[0])
			if err != nil {
				return err
			}
			a, err := rootOpts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Service.Push(cmd.Context(), id)
			if err != nil {
				if dErrors.CodeOf(err) == dErrors.CodeNotFound {
					return WrapExitError(ExitCommandError, "push", err)
				}
				return WrapExitError(ExitFailure, "push", err)
			}

			out := pushOutput{SignalID: id, Skipped: result.Skipped, Message: result.Message}
			text := fmt.Sprintf("signal %d skipped: %s", id, result.Message)
			if !result.Skipped {
				out.CaseID = result.CaseID.String()
				text = fmt.Sprintf("signal %d sent as %s", id, out.CaseID)
			}
			return rootOpts.print(cmd, text, out)
		},
	}
}

// NewEnqueueCommand publishes a push request for the server's Kafka trigger.
func NewEnqueueCommand(rootOpts *RootOptions) *cobra.Command {
	var ensure bool
	cmd := &cobra.Command{
		Use:   "enqueue <signal-id>...",
		Short: "Publish push requests to the Kafka trigger topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseSignalID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			kafka := rootOpts.config.Kafka
			if len(kafka.Brokers) == 0 {
				return NewExitError(ExitCommandError, "KAFKA_BROKERS is not set")
			}
			producer, err := trigger.NewProducer(kafka.Brokers, kafka.PushTopic)
			if err != nil {
				return WrapExitError(ExitCommandError, "connect to kafka", err)
			}
			defer producer.Close()

			if ensure {
				if err := trigger.EnsureTopic(cmd.Context(), producer.Client(), kafka.PushTopic, 3); err != nil {
					return WrapExitError(ExitCommandError, "ensure topic", err)
				}
			}
			for _, id := range ids {
				if err := producer.Publish(cmd.Context(), id); err != nil {
					return WrapExitError(ExitFailure, "enqueue", err)
				}
			}
			return rootOpts.print(cmd,
				fmt.Sprintf("enqueued %d signal(s) on %s", len(ids), kafka.PushTopic),
				map[string]any{"topic": kafka.PushTopic, "signal_ids": ids},
			)
		},
	}
	cmd.Flags().BoolVar(&ensure, "ensure-topic", false, "create the topic when it does not exist")
	return cmd
}

func parseSignalID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid signal id %q", raw))
	}
	return id, nil
}
