package models

import "github.com/shopspring/decimal"

// DealershipConfig stores instance-level settings, one row per dealership.
type DealershipConfig struct {
	ID        uint            `gorm:"primaryKey;autoIncrement"`
	Name      string          `gorm:"size:128;uniqueIndex"`
	LaborRate decimal.Decimal `gorm:"type:decimal(8,2)"`
	Currency  string          `gorm:"size:8;default:USD"`
	Settings  string          `gorm:"type:json"`
}
