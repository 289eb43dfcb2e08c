package main

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/zulandar/switchboard/internal/mailbox"
	"github.com/zulandar/switchboard/internal/models"
)

func enqueueTestEnvelope(t *testing.T, configPath, sender, recipient, body string) *models.Envelope {
	t.Helper()
	root := filepath.Join(filepath.Dir(configPath), "mailboxes")
	store := mailbox.NewStore(root)
	env := models.NewEnvelope(sender, recipient, body, models.PriorityNormal, nil)
	if err := store.Enqueue(env); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return env
}

func TestInboxCmd_Empty(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCLI(t, "inbox", "Agent-1", "--config", configPath)
	if err != nil {
		t.Fatalf("inbox: %v\n%s", err, out)
	}
	if !strings.Contains(out, "No inbox envelopes for Agent-1") {
		t.Errorf("output = %q", out)
	}
}

func TestInboxCmd_ListsPending(t *testing.T) {
	configPath := writeTestConfig(t)
	env := enqueueTestEnvelope(t, configPath, "Agent-1", "Agent-2", "check the build")

	out, err := runCLI(t, "inbox", "Agent-2", "--config", configPath)
	if err != nil {
		t.Fatalf("inbox: %v\n%s", err, out)
	}
	if !strings.Contains(out, env.ID) {
		t.Errorf("output missing envelope ID:\n%s", out)
	}
	if !strings.Contains(out, "check the build") {
		t.Errorf("output missing body:\n%s", out)
	}
}

func TestProcessedMark_MovesEnvelope(t *testing.T) {
	configPath := writeTestConfig(t)
	env := enqueueTestEnvelope(t, configPath, "Agent-1", "Agent-2", "ship it")

	out, err := runCLI(t, "processed", "mark", "Agent-2", env.ID, "--config", configPath)
	if err != nil {
		t.Fatalf("processed mark: %v\n%s", err, out)
	}

	out, err = runCLI(t, "inbox", "Agent-2", "--config", configPath)
	if err != nil {
		t.Fatalf("inbox: %v\n%s", err, out)
	}
	if strings.Contains(out, env.ID) {
		t.Errorf("envelope still in inbox:\n%s", out)
	}

	out, err = runCLI(t, "processed", "list", "Agent-2", "--config", configPath)
	if err != nil {
		t.Fatalf("processed list: %v\n%s", err, out)
	}
	if !strings.Contains(out, env.ID) {
		t.Errorf("envelope missing from processed:\n%s", out)
	}
}

func TestProcessedMark_Repeatable(t *testing.T) {
	configPath := writeTestConfig(t)
	env := enqueueTestEnvelope(t, configPath, "Agent-1", "Agent-2", "ship it")

	for i := 0; i < 2; i++ {
		if out, err := runCLI(t, "processed", "mark", "Agent-2", env.ID, "--config", configPath); err != nil {
			t.Fatalf("mark %d: %v\n%s", i, err, out)
		}
	}
}

func TestProcessedMark_UnknownEnvelope(t *testing.T) {
	configPath := writeTestConfig(t)

	if _, err := runCLI(t, "processed", "mark", "Agent-2", "no-such-id", "--config", configPath); err == nil {
		t.Error("expected error for unknown envelope")
	}
}
