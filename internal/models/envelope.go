// Package models defines the core Switchboard data types: envelopes,
// agents, and ledger entries.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority classifies a message's urgency. Priority is display/escalation
// metadata only; the router never reorders queues by it.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ValidPriority reports whether p is a recognized priority value.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// DeliveryState tracks an envelope through the routing pipeline.
type DeliveryState string

const (
	StatePending   DeliveryState = "pending"
	StateInFlight  DeliveryState = "in_flight"
	StateDelivered DeliveryState = "delivered"
	StateFailed    DeliveryState = "failed"
	StateDuplicate DeliveryState = "duplicate"
)

// Terminal reports whether s is a terminal delivery state.
func (s DeliveryState) Terminal() bool {
	switch s {
	case StateDelivered, StateFailed, StateDuplicate:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows moving from s to next.
// Transitions are monotonic forward: pending → in_flight → {delivered, failed},
// with duplicate reachable only from pending.
func (s DeliveryState) CanTransition(next DeliveryState) bool {
	switch s {
	case StatePending:
		return next == StateInFlight || next == StateDuplicate || next == StateFailed
	case StateInFlight:
		return next == StateDelivered || next == StateFailed
	}
	return false
}

// Envelope is one unit of agent-to-agent communication. It is the unit
// persisted as a single mailbox file, so it carries JSON tags.
type Envelope struct {
	ID          string        `json:"id"`
	Sender      string        `json:"sender"`
	Recipient   string        `json:"recipient"`
	Priority    Priority      `json:"priority"`
	Tags        []string      `json:"tags,omitempty"`
	Body        string        `json:"body"`
	CreatedAt   time.Time     `json:"created_at"`
	State       DeliveryState `json:"state"`
	Fingerprint string        `json:"fingerprint,omitempty"`
}

// NewEnvelope creates a pending envelope with a fresh ID and creation time.
func NewEnvelope(sender, recipient, body string, priority Priority, tags []string) *Envelope {
	if priority == "" {
		priority = PriorityNormal
	}
	return &Envelope{
		ID:        uuid.NewString(),
		Sender:    sender,
		Recipient: recipient,
		Priority:  priority,
		Tags:      tags,
		Body:      body,
		CreatedAt: time.Now().UTC(),
		State:     StatePending,
	}
}

// Transition moves the envelope to next, rejecting any backward or
// invalid move.
func (e *Envelope) Transition(next DeliveryState) error {
	if !e.State.CanTransition(next) {
		return fmt.Errorf("models: invalid transition %s → %s for envelope %s", e.State, next, e.ID)
	}
	e.State = next
	return nil
}

// ComputeFingerprint derives the dedup key for this envelope: SHA-256 over
// sender, recipient, normalized body, and the creation-time bucket. Two sends
// of the same text to the same recipient within one bucket collide on
// purpose. The router stamps the result onto e.Fingerprint at send time so
// the mailbox file and the ledger agree on the key.
func (e *Envelope) ComputeFingerprint(bucket time.Duration) string {
	if bucket <= 0 {
		bucket = time.Minute
	}
	slot := e.CreatedAt.UnixNano() / int64(bucket)
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d", e.Sender, e.Recipient, NormalizeBody(e.Body), slot)
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeBody canonicalizes a message body for fingerprinting: lowercased
// with all runs of whitespace collapsed to single spaces.
func NormalizeBody(body string) string {
	return strings.ToLower(strings.Join(strings.Fields(body), " "))
}
