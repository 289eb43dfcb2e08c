// Package registry resolves agent IDs to their physical screen coordinates.
//
// The coordinate file is the single source of truth for where each agent's
// IDE window lives on screen. A missing or malformed file is fatal at load:
// delivery against guessed coordinates corrupts the wrong window.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Point is a screen-space coordinate pair.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Coordinates holds the two delivery points registered per agent: the chat
// input box and the onboarding input used for revival prompts.
type Coordinates struct {
	ChatInput  Point `json:"chat_input"`
	Onboarding Point `json:"onboarding"`
}

// Registry is an immutable snapshot of the coordinate file. It is loaded once
// per process and safely shared without locking; live updates require a reload
// (restart or SIGHUP in the daemon).
type Registry struct {
	agents map[string]Coordinates
}

// rawEntry matches the on-disk coordinate file shape: agent id → two [x, y]
// pairs.
type rawEntry struct {
	ChatInput  []int `json:"chat_input"`
	Onboarding []int `json:"onboarding"`
}

// Load reads and parses a coordinate file. Errors wrap ErrConfig so callers
// can distinguish startup-fatal configuration failures.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}
	return Parse(path, data)
}

// Parse builds a Registry from coordinate-file bytes.
func Parse(path string, data []byte) (*Registry, error) {
	var raw map[string]rawEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("parse: %w", err)}
	}
	if len(raw) == 0 {
		return nil, &ConfigError{Path: path, Err: fmt.Errorf("no agents defined")}
	}

	agents := make(map[string]Coordinates, len(raw))
	for id, entry := range raw {
		if id == "" {
			return nil, &ConfigError{Path: path, Err: fmt.Errorf("empty agent id")}
		}
		chat, err := toPoint(entry.ChatInput)
		if err != nil {
			return nil, &ConfigError{Path: path, Err: fmt.Errorf("agent %s: chat_input: %w", id, err)}
		}
		onboarding, err := toPoint(entry.Onboarding)
		if err != nil {
			return nil, &ConfigError{Path: path, Err: fmt.Errorf("agent %s: onboarding: %w", id, err)}
		}
		agents[id] = Coordinates{ChatInput: chat, Onboarding: onboarding}
	}
	return &Registry{agents: agents}, nil
}

// toPoint validates a two-element [x, y] array from the coordinate file.
func toPoint(xy []int) (Point, error) {
	if len(xy) != 2 {
		return Point{}, fmt.Errorf("want [x, y], got %d values", len(xy))
	}
	if xy[0] < 0 || xy[1] < 0 {
		return Point{}, fmt.Errorf("negative coordinate [%d, %d]", xy[0], xy[1])
	}
	return Point{X: xy[0], Y: xy[1]}, nil
}

// Resolve returns the coordinates registered for an agent.
func (r *Registry) Resolve(agentID string) (Coordinates, error) {
	coords, ok := r.agents[agentID]
	if !ok {
		return Coordinates{}, &UnknownAgentError{AgentID: agentID}
	}
	return coords, nil
}

// Known reports whether agentID is present in the registry.
func (r *Registry) Known(agentID string) bool {
	_, ok := r.agents[agentID]
	return ok
}

// AgentIDs returns all registered agent IDs in sorted order.
func (r *Registry) AgentIDs() []string {
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
