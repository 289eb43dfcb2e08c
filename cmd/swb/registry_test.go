package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRegistryValidate_OK(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCLI(t, "registry", "validate", "--config", configPath)
	if err != nil {
		t.Fatalf("registry validate: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Registry OK: 2 agent(s)") {
		t.Errorf("output = %q", out)
	}
}

func TestRegistryValidate_Malformed(t *testing.T) {
	dir := t.TempDir()
	coordsPath := filepath.Join(dir, "agent_coords.json")
	if err := os.WriteFile(coordsPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write coords: %v", err)
	}
	configPath := filepath.Join(dir, "switchboard.yaml")
	cfg := fmt.Sprintf("coords_file: %s\n", coordsPath)
	if err := os.WriteFile(configPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := runCLI(t, "registry", "validate", "--config", configPath); err == nil {
		t.Error("expected error for malformed registry")
	}
}

func TestRegistryValidate_MissingFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "switchboard.yaml")
	cfg := fmt.Sprintf("coords_file: %s\n", filepath.Join(dir, "no_such.json"))
	if err := os.WriteFile(configPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := runCLI(t, "registry", "validate", "--config", configPath); err == nil {
		t.Error("expected error for missing registry file")
	}
}

func TestRegistryShow_ListsCoordinates(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCLI(t, "registry", "show", "--config", configPath)
	if err != nil {
		t.Fatalf("registry show: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Agent-1") || !strings.Contains(out, "(100, 200)") {
		t.Errorf("output missing Agent-1 coordinates:\n%s", out)
	}
	if !strings.Contains(out, "Agent-2") || !strings.Contains(out, "(500, 200)") {
		t.Errorf("output missing Agent-2 coordinates:\n%s", out)
	}
}
