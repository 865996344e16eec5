package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is one signed, immutable change to a part's stock count.
// Negative delta = use, positive delta = refund. Entries are never
// updated or deleted; corrections are new compensating entries. Cost is
// the part's unit price at operation time multiplied by the quantity,
// denormalized so billing survives later price changes.
type LedgerEntry struct {
	ID             uint            `gorm:"primaryKey;autoIncrement"`
	PartNumber     string          `gorm:"size:64;not null;index"`
	QuantityDelta  int             `gorm:"not null"`
	Cost           decimal.Decimal `gorm:"type:decimal(12,2)"`
	VehicleVIN     string          `gorm:"size:17;index"`
	RepairID       string          `gorm:"size:40;index"`
	Technician     string          `gorm:"size:64"`
	Context        string          `gorm:"size:32;not null"`
	IdempotencyKey *string         `gorm:"size:64;uniqueIndex"`
	CreatedAt      time.Time

	Part Part `gorm:"foreignKey:PartNumber;references:PartNumber"`
}
