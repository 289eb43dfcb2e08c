package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/dashboard"
)

func newDashboardCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Run the HTTP API server",
		Long:  "Serves the Switchboard API: send envelopes, inspect per-envelope history, and read per-agent delivery health. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}

			st, err := buildStackWith(cfg, gormDB, nil)
			if err != nil {
				return err
			}
			defer st.rtr.Close()

			if port <= 0 {
				port = cfg.Dashboard.Port
			}
			return dashboard.Start(ctx, dashboard.StartOpts{
				Registry: st.reg,
				Router:   st.rtr,
				Ledger:   st.led,
				Port:     port,
				Out:      cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default: dashboard.port from config)")
	return cmd
}
