package models

import "time"

// AgentStatus describes an agent's last-known liveness.
type AgentStatus string

const (
	AgentActive  AgentStatus = "active"
	AgentReset   AgentStatus = "reset"
	AgentStalled AgentStatus = "stalled"
	AgentUnknown AgentStatus = "unknown"
)

// Agent represents one coordination participant. Agents are seeded from the
// coordinate registry at db init and are never deleted during a session, only
// marked inactive by status changes.
type Agent struct {
	ID           string      `gorm:"primaryKey;size:64"`
	Status       AgentStatus `gorm:"size:16;index"`
	LastActivity time.Time   `gorm:"index"`
	RegisteredAt time.Time
}
