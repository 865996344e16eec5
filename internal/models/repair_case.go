package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RepairCase groups everything spent on one repair: parts (via ledger
// entries), labor, and the write-up. Closed cases only accept follow-up
// notes.
type RepairCase struct {
	RepairID            string          `gorm:"primaryKey;size:40"`
	VehicleVIN          string          `gorm:"size:17;not null;index"`
	ClientName          string          `gorm:"size:128"`
	Technician          string          `gorm:"size:64;not null"`
	IssueDescription    string          `gorm:"type:text"`
	SolutionDescription string          `gorm:"type:text"`
	LaborHours          decimal.Decimal `gorm:"type:decimal(8,2)"`
	TotalCost           decimal.Decimal `gorm:"type:decimal(12,2)"`
	DifficultyLevel     int
	QualityRating       int
	ClientSatisfaction  int
	WarrantyMonths      int
	FollowUpNotes       string `gorm:"type:text"`
	Closed              bool   `gorm:"default:false;index"`
	CreatedAt           time.Time
	ClosedAt            *time.Time

	Steps   []RepairStep  `gorm:"foreignKey:RepairID"`
	Entries []LedgerEntry `gorm:"foreignKey:RepairID;references:RepairID"`
}

// RepairStep is one ordered step of a repair case.
type RepairStep struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	RepairID    string `gorm:"size:40;not null;index"`
	Seq         int    `gorm:"not null"`
	Description string `gorm:"type:text"`
	CreatedAt   time.Time
}
