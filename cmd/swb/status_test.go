package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/ledger"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Agent{}, &models.LedgerEntry{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return ledger.New(db)
}

func testCmd() (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	return cmd, buf
}

func recordedEnvelope(t *testing.T, led *ledger.Ledger, states ...models.DeliveryState) *models.Envelope {
	t.Helper()
	env := models.NewEnvelope("Agent-1", "Agent-2", "hello", models.PriorityNormal, nil)
	env.Fingerprint = env.ComputeFingerprint(time.Minute)
	for i, s := range states {
		if err := led.Record(env, s, i, ""); err != nil {
			t.Fatalf("record %s: %v", s, err)
		}
	}
	return env
}

func TestRunCancel_PendingEnvelope(t *testing.T) {
	led := openTestLedger(t)
	env := recordedEnvelope(t, led, models.StatePending)

	cmd, buf := testCmd()
	if err := runCancel(cmd, led, env.ID); err != nil {
		t.Fatalf("runCancel: %v", err)
	}
	if !strings.Contains(buf.String(), "Cancelled") {
		t.Errorf("output = %q", buf.String())
	}

	state, err := led.CurrentState(env.ID)
	if err != nil {
		t.Fatalf("CurrentState: %v", err)
	}
	if state != models.StateFailed {
		t.Errorf("state = %s, want failed", state)
	}
}

func TestRunCancel_InFlightRefused(t *testing.T) {
	led := openTestLedger(t)
	env := recordedEnvelope(t, led, models.StatePending, models.StateInFlight)

	cmd, _ := testCmd()
	if err := runCancel(cmd, led, env.ID); err == nil {
		t.Error("expected error for in-flight envelope")
	}
}

func TestRunCancel_AlreadyDelivered(t *testing.T) {
	led := openTestLedger(t)
	env := recordedEnvelope(t, led, models.StatePending, models.StateInFlight, models.StateDelivered)

	cmd, _ := testCmd()
	err := runCancel(cmd, led, env.ID)
	if err == nil || !strings.Contains(err.Error(), "already delivered") {
		t.Errorf("err = %v, want already delivered", err)
	}
}

func TestRunCancel_UnknownEnvelope(t *testing.T) {
	led := openTestLedger(t)

	cmd, _ := testCmd()
	if err := runCancel(cmd, led, "no-such-id"); err == nil {
		t.Error("expected error for unknown envelope")
	}
}

func TestAgentsCmd_AfterInit(t *testing.T) {
	configPath := writeTestConfig(t)

	if out, err := runCLI(t, "db", "init", "--config", configPath); err != nil {
		t.Fatalf("db init: %v\n%s", err, out)
	}

	out, err := runCLI(t, "agents", "--config", configPath)
	if err != nil {
		t.Fatalf("agents: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Agent-1") || !strings.Contains(out, "Agent-2") {
		t.Errorf("output missing seeded agents:\n%s", out)
	}
}

func TestHealthCmd_UnseededAgent(t *testing.T) {
	configPath := writeTestConfig(t)

	if out, err := runCLI(t, "db", "init", "--config", configPath); err != nil {
		t.Fatalf("db init: %v\n%s", err, out)
	}

	out, err := runCLI(t, "health", "Agent-1", "--config", configPath)
	if err != nil {
		t.Fatalf("health: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Agent:        Agent-1") {
		t.Errorf("output = %q", out)
	}
	if !strings.Contains(out, "Last success: never") {
		t.Errorf("expected no deliveries yet:\n%s", out)
	}
}
