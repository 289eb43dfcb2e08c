package db

import (
	"fmt"
	"time"

	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/registry"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Agent{},
		&models.LedgerEntry{},
	}
}

// AutoMigrate creates or updates all ledger tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedAgents upserts an Agent row for every agent known to the coordinate
// registry. Existing rows keep their status and activity; new rows start
// with unknown status.
func SeedAgents(db *gorm.DB, reg *registry.Registry) error {
	now := time.Now().UTC()
	for _, id := range reg.AgentIDs() {
		agent := models.Agent{
			ID:           id,
			Status:       models.AgentUnknown,
			RegisteredAt: now,
		}
		result := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&agent)
		if result.Error != nil {
			return fmt.Errorf("db: seed agent %q: %w", id, result.Error)
		}
	}
	return nil
}
