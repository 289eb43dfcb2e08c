package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/watchdog"
)

func newWatchCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the watchdog daemon",
		Long:  "Monitors agent health, redrives envelopes stranded by crashes, pushes stale-agent alerts and delivery-failure escalations to the configured relay, and posts the scheduled health digest. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runWatch(cmd *cobra.Command, configPath string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	adapter, err := newRelayAdapter(cfg)
	if err != nil {
		return err
	}
	if adapter != nil {
		if err := adapter.Connect(ctx); err != nil {
			return err
		}
		defer adapter.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "Relay connected (%s)\n", cfg.Relay.Platform)
	}

	st, err := buildStackWith(cfg, gormDB, watchdog.EscalateHook(adapter))
	if err != nil {
		return err
	}
	defer st.rtr.Close()

	return watchdog.RunDaemon(ctx, watchdog.Opts{
		Registry:       st.reg,
		Router:         st.rtr,
		Ledger:         st.led,
		Relay:          adapter,
		PollInterval:   cfg.Watchdog.PollInterval(),
		StaleThreshold: cfg.Watchdog.StaleThreshold(),
		DigestCron:     cfg.Watchdog.DigestCron,
		Out:            cmd.OutOrStdout(),
	})
}
