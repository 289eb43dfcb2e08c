package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/db"
	"github.com/zulandar/switchboard/internal/registry"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Ledger database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Switchboard ledger database",
		Long:  "Creates the ledger database, migrates all tables, and seeds agents from the coordinate registry.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// MySQL/Dolt backends need the database created before connecting to it.
	if cfg.Ledger.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg.Ledger.Host, cfg.Ledger.Port)
		if err != nil {
			return err
		}
		if err := db.CreateDatabase(adminDB, cfg.Ledger.Database); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready at %s:%d\n", cfg.Ledger.Database, cfg.Ledger.Host, cfg.Ledger.Port)
	}

	gormDB, err := db.Connect(cfg.Ledger)
	if err != nil {
		return err
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	reg, err := registry.Load(cfg.CoordsFile)
	if err != nil {
		return err
	}
	if err := db.SeedAgents(gormDB, reg); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d agents:", len(reg.AgentIDs()))
	for _, id := range reg.AgentIDs() {
		fmt.Fprintf(out, " %s", id)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "\nSwitchboard ledger initialized successfully.")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the Switchboard ledger",
		Long:  "Drops the ledger database (the SQLite file, or the MySQL database) and re-initializes it from config. Mailbox files on disk are left untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to Switchboard config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	target := cfg.Ledger.Path
	if cfg.Ledger.Driver == "mysql" {
		target = fmt.Sprintf("%s at %s:%d", cfg.Ledger.Database, cfg.Ledger.Host, cfg.Ledger.Port)
	}

	if !skipConfirm {
		fmt.Fprintf(out, "This will DROP the ledger (%s) and all delivery history. Continue? [y/N] ", target)
		reader := bufio.NewReader(cmd.InOrStdin())
		answer, _ := reader.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	switch cfg.Ledger.Driver {
	case "mysql":
		adminDB, err := db.ConnectAdmin(cfg.Ledger.Host, cfg.Ledger.Port)
		if err != nil {
			return err
		}
		if err := db.DropDatabase(adminDB, cfg.Ledger.Database); err != nil {
			return err
		}
	default:
		if err := os.Remove(cfg.Ledger.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove ledger file %s: %w", cfg.Ledger.Path, err)
		}
	}
	fmt.Fprintf(out, "Dropped ledger (%s)\n", target)

	return runDBInit(cmd, configPath)
}
