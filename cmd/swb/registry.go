package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/registry"
)

func newRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Coordinate registry commands",
	}

	cmd.AddCommand(newRegistryShowCmd())
	cmd.AddCommand(newRegistryValidateCmd())
	return cmd
}

func newRegistryShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show registered agents and their screen coordinates",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(configPath)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "AGENT\tCHAT INPUT\tONBOARDING")
			for _, id := range reg.AgentIDs() {
				coords, err := reg.Resolve(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%s\t(%d, %d)\t(%d, %d)\n", id,
					coords.ChatInput.X, coords.ChatInput.Y,
					coords.Onboarding.X, coords.Onboarding.Y)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func newRegistryValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the coordinate registry file",
		Long:  "Loads the coordinate registry and reports whether it parses cleanly. A broken registry stops Switchboard at startup rather than mid-delivery.",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loadRegistry(configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registry OK: %d agent(s)\n", len(reg.AgentIDs()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func loadRegistry(configPath string) (*registry.Registry, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return registry.Load(cfg.CoordsFile)
}
