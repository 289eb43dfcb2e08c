// Package relay pushes Switchboard events (delivery failures, stale agents,
// health digests) to chat platforms. Send-only: command handling stays in the
// external bot, Switchboard just posts.
package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/zulandar/switchboard/internal/ledger"
	"github.com/zulandar/switchboard/internal/models"
)

// Severity classifies an event for display.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// Field is a key-value pair displayed alongside an event.
type Field struct {
	Name  string
	Value string
	Short bool // hint: render side-by-side with another field
}

// Event is one structured notification pushed to a chat platform.
type Event struct {
	Title    string
	Body     string
	Severity Severity
	Fields   []Field
}

// Adapter is the interface platform implementations satisfy. Each adapter
// owns connection management and message formatting for one platform.
type Adapter interface {
	// Connect establishes the platform connection.
	Connect(ctx context.Context) error
	// Post delivers an event to the configured channel.
	Post(ctx context.Context, evt Event) error
	// Close gracefully shuts down the connection.
	Close() error
}

// SeverityColor maps a severity to the sidebar color both platforms use.
func SeverityColor(s Severity) string {
	switch s {
	case SeveritySuccess:
		return "#36a64f"
	case SeverityWarning:
		return "#ecb22e"
	case SeverityError:
		return "#e01e5a"
	default:
		return "#4a90d9"
	}
}

// DeliveryFailureEvent formats a retry-exhaustion escalation.
func DeliveryFailureEvent(env *models.Envelope, detail string) Event {
	return Event{
		Title:    fmt.Sprintf("Delivery to %s failed", env.Recipient),
		Body:     detail,
		Severity: SeverityError,
		Fields: []Field{
			{Name: "Envelope", Value: env.ID, Short: true},
			{Name: "Sender", Value: env.Sender, Short: true},
			{Name: "Priority", Value: string(env.Priority), Short: true},
		},
	}
}

// StaleAgentEvent formats a watchdog staleness alert.
func StaleAgentEvent(agent models.Agent, threshold time.Duration) Event {
	last := "never"
	if !agent.LastActivity.IsZero() {
		last = agent.LastActivity.Format(time.RFC3339)
	}
	return Event{
		Title:    fmt.Sprintf("Agent %s is stale", agent.ID),
		Body:     fmt.Sprintf("No confirmed activity within %s.", threshold),
		Severity: SeverityWarning,
		Fields: []Field{
			{Name: "Last activity", Value: last, Short: true},
			{Name: "Status", Value: string(agent.Status), Short: true},
		},
	}
}

// DigestEvent formats the periodic health digest across all agents.
func DigestEvent(summaries []*ledger.HealthSummary) Event {
	evt := Event{
		Title:    "Delivery health digest",
		Severity: SeverityInfo,
	}
	for _, s := range summaries {
		last := "never"
		if !s.LastSuccessAt.IsZero() {
			last = s.LastSuccessAt.Format("2006-01-02 15:04")
		}
		evt.Fields = append(evt.Fields, Field{
			Name: s.AgentID,
			Value: fmt.Sprintf("%s · %d delivered, %d failed, last success %s",
				s.Status, s.DeliveredCount, s.FailedCount, last),
		})
	}
	if len(summaries) == 0 {
		evt.Body = "No agents registered."
	}
	return evt
}
