// Package ledger maintains the durable per-envelope delivery record used for
// dedup, audit, and health reporting.
package ledger

import (
	"fmt"
	"time"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

// Ledger is the append-only record of delivery-state changes. Safe for
// concurrent use; the database serializes writers.
type Ledger struct {
	db *gorm.DB
}

// New creates a Ledger over an open database connection.
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Record appends one state-change row for an envelope. Delivered outcomes
// also refresh the recipient's activity and mark it active.
func (l *Ledger) Record(env *models.Envelope, state models.DeliveryState, attempt int, detail string) error {
	if env == nil {
		return fmt.Errorf("ledger: envelope is required")
	}

	entry := models.LedgerEntry{
		EnvelopeID:  env.ID,
		Sender:      env.Sender,
		Recipient:   env.Recipient,
		State:       state,
		Fingerprint: env.Fingerprint,
		Attempt:     attempt,
		Detail:      detail,
		CreatedAt:   time.Now().UTC(),
	}
	if err := l.db.Create(&entry).Error; err != nil {
		return fmt.Errorf("ledger: record %s %s: %w", env.ID, state, err)
	}

	if state == models.StateDelivered {
		if err := l.touchAgent(env.Recipient); err != nil {
			return err
		}
	}
	return nil
}

// Claim appends the in-flight row for an envelope, but only if the latest
// recorded state is still pending (or the envelope is unknown to the ledger).
// The check and the insert run in one transaction, so when a live lane and a
// redrive race over the same envelope exactly one of them claims it and the
// other reports false. Callers must not deliver without a successful claim.
func (l *Ledger) Claim(env *models.Envelope, detail string) (bool, error) {
	if env == nil {
		return false, fmt.Errorf("ledger: envelope is required")
	}

	claimed := false
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var last models.LedgerEntry
		err := tx.Where("envelope_id = ?", env.ID).
			Order("id DESC").First(&last).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return err
		}
		if err == nil && last.State != models.StatePending {
			return nil
		}
		claimed = true
		return tx.Create(&models.LedgerEntry{
			EnvelopeID:  env.ID,
			Sender:      env.Sender,
			Recipient:   env.Recipient,
			State:       models.StateInFlight,
			Fingerprint: env.Fingerprint,
			Detail:      detail,
			CreatedAt:   time.Now().UTC(),
		}).Error
	})
	if err != nil {
		return false, fmt.Errorf("ledger: claim %s: %w", env.ID, err)
	}
	return claimed, nil
}

// touchAgent refreshes an agent's last-activity timestamp and marks it active.
func (l *Ledger) touchAgent(agentID string) error {
	err := l.db.Model(&models.Agent{}).Where("id = ?", agentID).
		Updates(map[string]interface{}{
			"status":        models.AgentActive,
			"last_activity": time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("ledger: touch agent %s: %w", agentID, err)
	}
	return nil
}

// History returns all recorded entries for an envelope, oldest first.
func (l *Ledger) History(envelopeID string) ([]models.LedgerEntry, error) {
	if envelopeID == "" {
		return nil, fmt.Errorf("ledger: envelopeID is required")
	}
	var entries []models.LedgerEntry
	if err := l.db.Where("envelope_id = ?", envelopeID).
		Order("id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("ledger: history %s: %w", envelopeID, err)
	}
	return entries, nil
}

// CurrentState returns the most recently recorded state for an envelope.
// Unknown envelopes report models.DeliveryState("") with no error.
func (l *Ledger) CurrentState(envelopeID string) (models.DeliveryState, error) {
	var entry models.LedgerEntry
	err := l.db.Where("envelope_id = ?", envelopeID).
		Order("id DESC").First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", nil
		}
		return "", fmt.Errorf("ledger: current state %s: %w", envelopeID, err)
	}
	return entry.State, nil
}

// SeenFingerprint reports whether a non-failed entry with the given
// fingerprint was recorded within the window. Failed and duplicate entries
// don't count: a failed send may legitimately be retried by the sender, and
// a duplicate verdict must not shadow the original it duplicated.
func (l *Ledger) SeenFingerprint(fingerprint string, window time.Duration) (bool, error) {
	if fingerprint == "" {
		return false, fmt.Errorf("ledger: fingerprint is required")
	}
	cutoff := time.Now().UTC().Add(-window)
	var count int64
	err := l.db.Model(&models.LedgerEntry{}).
		Where("fingerprint = ? AND created_at >= ? AND state IN ?",
			fingerprint, cutoff,
			[]models.DeliveryState{models.StatePending, models.StateInFlight, models.StateDelivered}).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("ledger: fingerprint lookup: %w", err)
	}
	return count > 0, nil
}

// HealthSummary aggregates an agent's delivery outcomes for monitoring.
type HealthSummary struct {
	AgentID        string             `json:"agent_id"`
	Status         models.AgentStatus `json:"status"`
	DeliveredCount int64              `json:"delivered_count"`
	FailedCount    int64              `json:"failed_count"`
	DuplicateCount int64              `json:"duplicate_count"`
	LastSuccessAt  time.Time          `json:"last_success_at"`
}

// Health returns the delivery health summary for one agent.
func (l *Ledger) Health(agentID string) (*HealthSummary, error) {
	if agentID == "" {
		return nil, fmt.Errorf("ledger: agentID is required")
	}

	summary := &HealthSummary{AgentID: agentID, Status: models.AgentUnknown}

	var agent models.Agent
	if err := l.db.First(&agent, "id = ?", agentID).Error; err == nil {
		summary.Status = agent.Status
	}

	counts := []struct {
		state models.DeliveryState
		dst   *int64
	}{
		{models.StateDelivered, &summary.DeliveredCount},
		{models.StateFailed, &summary.FailedCount},
		{models.StateDuplicate, &summary.DuplicateCount},
	}
	for _, c := range counts {
		err := l.db.Model(&models.LedgerEntry{}).
			Where("recipient = ? AND state = ?", agentID, c.state).
			Count(c.dst).Error
		if err != nil {
			return nil, fmt.Errorf("ledger: health %s: %w", agentID, err)
		}
	}

	var last models.LedgerEntry
	err := l.db.Where("recipient = ? AND state = ?", agentID, models.StateDelivered).
		Order("created_at DESC").First(&last).Error
	if err == nil {
		summary.LastSuccessAt = last.CreatedAt
	} else if err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("ledger: health %s: %w", agentID, err)
	}

	return summary, nil
}

// SetAgentStatus records a monitoring verdict for an agent.
func (l *Ledger) SetAgentStatus(agentID string, status models.AgentStatus) error {
	result := l.db.Model(&models.Agent{}).Where("id = ?", agentID).
		Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("ledger: set status %s: %w", agentID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("ledger: agent not found: %s", agentID)
	}
	return nil
}

// DefaultStaleThreshold is the default time after which an agent with no
// confirmed delivery activity is considered stale.
const DefaultStaleThreshold = 5 * time.Minute

// StaleAgents returns agents with no confirmed activity since the cutoff,
// excluding those already marked stalled.
func (l *Ledger) StaleAgents(threshold time.Duration) ([]models.Agent, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("ledger: threshold must be positive")
	}
	cutoff := time.Now().UTC().Add(-threshold)
	var agents []models.Agent
	err := l.db.Where("last_activity < ? AND status != ?", cutoff, models.AgentStalled).
		Find(&agents).Error
	if err != nil {
		return nil, fmt.Errorf("ledger: stale agents: %w", err)
	}
	return agents, nil
}

// Agents returns all known agents in ID order.
func (l *Ledger) Agents() ([]models.Agent, error) {
	var agents []models.Agent
	if err := l.db.Order("id ASC").Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("ledger: agents: %w", err)
	}
	return agents, nil
}
