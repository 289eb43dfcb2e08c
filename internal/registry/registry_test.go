package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleCoords = `{
  "Agent-1": {"chat_input": [100, 200], "onboarding": [100, 400]},
  "Agent-2": {"chat_input": [900, 200], "onboarding": [900, 400]}
}`

func writeCoords(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent_coords.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write coords: %v", err)
	}
	return path
}

func TestLoad_Valid(t *testing.T) {
	reg, err := Load(writeCoords(t, sampleCoords))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	coords, err := reg.Resolve("Agent-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if coords.ChatInput.X != 100 || coords.ChatInput.Y != 200 {
		t.Errorf("chat_input = %+v, want {100 200}", coords.ChatInput)
	}
	if coords.Onboarding.X != 100 || coords.Onboarding.Y != 400 {
		t.Errorf("onboarding = %+v, want {100 400}", coords.Onboarding)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing coordinate file")
	}
	if !errors.Is(err, ErrConfig) {
		t.Errorf("error %v does not match ErrConfig", err)
	}
}

func TestLoad_Malformed(t *testing.T) {
	_, err := Load(writeCoords(t, "{not json"))
	if err == nil {
		t.Fatal("expected error for malformed coordinate file")
	}
	if !errors.Is(err, ErrConfig) {
		t.Errorf("error %v does not match ErrConfig", err)
	}
}

func TestLoad_Empty(t *testing.T) {
	_, err := Load(writeCoords(t, "{}"))
	if err == nil {
		t.Fatal("expected error for empty coordinate file")
	}
}

func TestParse_BadPointShape(t *testing.T) {
	_, err := Parse("test", []byte(`{"Agent-1": {"chat_input": [100], "onboarding": [1, 2]}}`))
	if err == nil {
		t.Fatal("expected error for one-element point")
	}
}

func TestParse_NegativeCoordinate(t *testing.T) {
	_, err := Parse("test", []byte(`{"Agent-1": {"chat_input": [-5, 10], "onboarding": [1, 2]}}`))
	if err == nil {
		t.Fatal("expected error for negative coordinate")
	}
}

func TestResolve_Unknown(t *testing.T) {
	reg, err := Load(writeCoords(t, sampleCoords))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	_, err = reg.Resolve("Agent-99")
	if err == nil {
		t.Fatal("expected error for unknown agent")
	}
	if !IsUnknownAgent(err) {
		t.Errorf("error %v is not an UnknownAgentError", err)
	}
}

func TestKnown(t *testing.T) {
	reg, err := Load(writeCoords(t, sampleCoords))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reg.Known("Agent-2") {
		t.Error("Agent-2 should be known")
	}
	if reg.Known("Agent-99") {
		t.Error("Agent-99 should not be known")
	}
}

func TestAgentIDs_Sorted(t *testing.T) {
	reg, err := Load(writeCoords(t, sampleCoords))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ids := reg.AgentIDs()
	if len(ids) != 2 || ids[0] != "Agent-1" || ids[1] != "Agent-2" {
		t.Errorf("AgentIDs = %v", ids)
	}
}
