package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/models"
)

func newSendCmd() *cobra.Command {
	var (
		configPath string
		from       string
		to         string
		body       string
		priority   string
		tags       []string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message to an agent",
		Long:  "Routes one message through the full pipeline: write-ahead mailbox persistence, dedup check, and simulated-input delivery to the recipient's screen coordinates. Blocks until the message reaches a terminal state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := buildStack(configPath, nil)
			if err != nil {
				return err
			}
			defer st.rtr.Close()

			result, err := st.rtr.Send(cmd.Context(), from, to, body, models.Priority(priority), tags)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch result.Status {
			case models.StateDelivered:
				fmt.Fprintf(out, "Delivered %s to %s (%d attempt(s))\n", result.EnvelopeID, to, result.Attempts)
			case models.StateDuplicate:
				fmt.Fprintf(out, "Suppressed %s as duplicate: %s\n", result.EnvelopeID, result.Detail)
			default:
				fmt.Fprintf(out, "Send %s ended %s: %s\n", result.EnvelopeID, result.Status, result.Detail)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().StringVar(&from, "from", "", "sender agent ID (required)")
	cmd.Flags().StringVar(&to, "to", "", "recipient agent ID (required)")
	cmd.Flags().StringVar(&body, "body", "", "message body (required)")
	cmd.Flags().StringVar(&priority, "priority", "normal", "message priority (normal, high, urgent)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "classification tag (repeatable)")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	cmd.MarkFlagRequired("body")
	return cmd
}
