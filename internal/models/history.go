package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransitionHistory is an append-only audit record of one status change
// on a vehicle. Rows are never edited or removed; corrections are new
// compensating rows.
type TransitionHistory struct {
	ID            uint            `gorm:"primaryKey;autoIncrement"`
	VehicleVIN    string          `gorm:"size:17;not null;index"`
	Axis          string          `gorm:"size:12;not null;index"`
	FromState     string          `gorm:"size:20;not null"`
	ToState       string          `gorm:"size:20;not null"`
	ChangedBy     string          `gorm:"size:64;not null"`
	Notes         string          `gorm:"type:text"`
	SkippedStages string          `gorm:"size:128"`
	RepairID      string          `gorm:"size:40"`
	PartsCost     decimal.Decimal `gorm:"type:decimal(12,2)"`
	CreatedAt     time.Time       `gorm:"index"`
}
