package models

import "time"

// LedgerEntry is one durable record of a delivery-state change. The ledger is
// append-only: an envelope accumulates one row per transition and retry
// attempt, giving a full audit trail and the recency index dedup relies on.
type LedgerEntry struct {
	ID          uint          `gorm:"primaryKey;autoIncrement"`
	EnvelopeID  string        `gorm:"size:64;index"`
	Sender      string        `gorm:"size:64"`
	Recipient   string        `gorm:"size:64;index"`
	State       DeliveryState `gorm:"size:16;index"`
	Fingerprint string        `gorm:"size:64;index"`
	Attempt     int
	Detail      string    `gorm:"type:text"`
	CreatedAt   time.Time `gorm:"index"`
}
