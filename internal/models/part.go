package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Part is a catalog row for one stockable part.
// QuantityOnHand is only ever mutated through ledger operations.
type Part struct {
	PartNumber     string          `gorm:"primaryKey;size:64"`
	PartName       string          `gorm:"not null"`
	QuantityOnHand int             `gorm:"not null;default:0"`
	InitialStock   int             `gorm:"not null;default:0"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(12,2)"`
	Location       string          `gorm:"size:64"`
	Supplier       string          `gorm:"size:128"`
	Removed        bool            `gorm:"default:false;index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time

	Entries []LedgerEntry `gorm:"foreignKey:PartNumber;references:PartNumber"`
}
