package db

import (
	"fmt"

	"github.com/zulandar/motorlot/internal/config"
	"github.com/zulandar/motorlot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Part{},
		&models.LedgerEntry{},
		&models.Vehicle{},
		&models.RepairCase{},
		&models.RepairStep{},
		&models.TransitionHistory{},
		&models.DealershipConfig{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedConfig writes or updates the DealershipConfig row for this dealership.
func SeedConfig(db *gorm.DB, cfg *config.Config) error {
	dc := models.DealershipConfig{
		Name:      cfg.Dealership,
		LaborRate: cfg.LaborRateDecimal(),
		Currency:  cfg.Currency,
		Settings:  "{}",
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"labor_rate", "currency"}),
	}).Create(&dc)
	if result.Error != nil {
		return fmt.Errorf("db: seed config for %q: %w", cfg.Dealership, result.Error)
	}
	return nil
}
