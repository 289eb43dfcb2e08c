package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/ledger"
	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/registry"
)

func newAgentsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "agents",
		Short: "List known agents and their status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			reg, err := registry.Load(cfg.CoordsFile)
			if err != nil {
				return err
			}

			agents, err := ledger.New(gormDB).Agents()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(agents) == 0 {
				fmt.Fprintln(out, "No agents in the ledger. Run `swb db init` to seed from the registry.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "AGENT\tSTATUS\tREGISTRY\tLAST ACTIVITY")
			for _, a := range agents {
				inRegistry := "missing"
				if reg.Known(a.ID) {
					inRegistry = "ok"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.ID, a.Status, inRegistry, formatWhen(a.LastActivity))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func newHealthCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "health <agent-id>",
		Short: "Show an agent's delivery health summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			summary, err := ledger.New(gormDB).Health(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Agent:        %s\n", summary.AgentID)
			fmt.Fprintf(out, "Status:       %s\n", summary.Status)
			fmt.Fprintf(out, "Delivered:    %d\n", summary.DeliveredCount)
			fmt.Fprintf(out, "Failed:       %d\n", summary.FailedCount)
			fmt.Fprintf(out, "Duplicates:   %d\n", summary.DuplicateCount)
			fmt.Fprintf(out, "Last success: %s\n", formatWhen(summary.LastSuccessAt))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func newCancelCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cancel <envelope-id>",
		Short: "Cancel a pending envelope",
		Long:  "Marks a still-pending envelope failed so redrive will not deliver it. Envelopes that already reached the recipient (in-flight or terminal) cannot be cancelled.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			return runCancel(cmd, ledger.New(gormDB), args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runCancel(cmd *cobra.Command, led *ledger.Ledger, envelopeID string) error {
	history, err := led.History(envelopeID)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return fmt.Errorf("envelope not found: %s", envelopeID)
	}

	last := history[len(history)-1]
	switch last.State {
	case models.StatePending:
		// Rebuild enough of the envelope for the ledger row from what the
		// ledger already recorded.
		env := &models.Envelope{
			ID:          envelopeID,
			Sender:      last.Sender,
			Recipient:   last.Recipient,
			Fingerprint: last.Fingerprint,
		}
		if err := led.Record(env, models.StateFailed, last.Attempt, "cancelled before delivery"); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s\n", envelopeID)
		return nil
	case models.StateInFlight:
		return fmt.Errorf("envelope %s is in flight and cannot be cancelled", envelopeID)
	default:
		return fmt.Errorf("envelope %s already %s", envelopeID, last.State)
	}
}

// formatWhen renders a timestamp for tables, with "never" for the zero value.
func formatWhen(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}
