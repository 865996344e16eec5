package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Vehicle is a car on the lot. The three status columns are independent
// axes: a vehicle can be sold commercially and still sit in the garage
// as in_repair.
type Vehicle struct {
	VIN           string `gorm:"primaryKey;size:17"`
	Model         string `gorm:"size:64;not null"`
	Brand         string `gorm:"size:64;not null"`
	Year          int
	Color         string `gorm:"size:32"`
	Status        string `gorm:"size:16;default:in_stock;index"`
	GarageStatus  string `gorm:"size:20;default:stored;index"`
	WorkTypeStage string `gorm:"size:20;default:in_diagnosis"`

	ClientName         string `gorm:"size:128"`
	ClientPhone        string `gorm:"size:32"`
	ClientEmail        string `gorm:"size:128"`
	ClientLicensePlate string `gorm:"size:16"`

	SellingPrice    decimal.Decimal `gorm:"type:decimal(12,2)"`
	ReservationDate *time.Time
	SaleDate        *time.Time

	Archived  bool `gorm:"default:false;index"`
	CreatedAt time.Time
	UpdatedAt time.Time

	History []TransitionHistory `gorm:"foreignKey:VehicleVIN"`
}
