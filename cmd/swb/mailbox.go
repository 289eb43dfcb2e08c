package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/mailbox"
)

func newInboxCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "inbox <agent-id>",
		Short: "List an agent's pending envelopes",
		Long:  "Lists envelopes persisted in the agent's inbox that have not yet been marked processed, in FIFO order.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			store := mailbox.NewStore(cfg.MailboxRoot)
			entries, err := store.ListPending(args[0])
			if err != nil {
				return err
			}
			return printEntries(cmd, store, args[0], "inbox", entries)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func newProcessedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "processed",
		Short: "Processed-envelope commands",
	}

	cmd.AddCommand(newProcessedListCmd())
	cmd.AddCommand(newProcessedMarkCmd())
	return cmd
}

func newProcessedListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list <agent-id>",
		Short: "List an agent's processed envelopes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			store := mailbox.NewStore(cfg.MailboxRoot)
			entries, err := store.ListProcessed(args[0])
			if err != nil {
				return err
			}
			return printEntries(cmd, store, args[0], "processed", entries)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func newProcessedMarkCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mark <agent-id> <envelope-id>",
		Short: "Mark an inbox envelope as processed",
		Long:  "Moves an envelope from the agent's inbox to its processed directory. Safe to repeat: marking an already-processed envelope is a no-op.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			store := mailbox.NewStore(cfg.MailboxRoot)
			if err := store.MarkProcessed(args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Marked %s processed for %s\n", args[1], args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

// printEntries renders envelope entries as a table, reading each file for
// sender and body context.
func printEntries(cmd *cobra.Command, store *mailbox.Store, agentID, kind string, entries []mailbox.Entry) error {
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "No %s envelopes for %s\n", kind, agentID)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENVELOPE\tFROM\tPRIORITY\tCREATED\tBODY")
	for _, entry := range entries {
		env, err := store.Read(entry.Path)
		if err != nil {
			fmt.Fprintf(w, "%s\t?\t?\t?\t(unreadable: %v)\n", entry.EnvelopeID, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			env.ID, env.Sender, env.Priority,
			env.CreatedAt.Format("2006-01-02 15:04:05"), truncate(env.Body, 48))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
