package dashboard

import (
	"github.com/zulandar/motorlot/internal/models"
	"gorm.io/gorm"
)

// LotCounts holds vehicle counts by commercial status.
type LotCounts struct {
	InStock  int `json:"in_stock"`
	Reserved int `json:"reserved"`
	Sold     int `json:"sold"`
	Total    int `json:"total"`
}

// GarageCounts holds vehicle counts by garage status.
type GarageCounts struct {
	Stored         int `json:"stored"`
	InRepair       int `json:"in_repair"`
	AwaitingParts  int `json:"awaiting_parts"`
	ReadyForPickup int `json:"ready_for_pickup"`
	Completed      int `json:"completed"`
}

// LowStockRow is a part at or below the low-stock threshold.
type LowStockRow struct {
	PartNumber string `json:"part_number"`
	PartName   string `json:"part_name"`
	OnHand     int    `json:"on_hand"`
}

// lowStockThreshold flags parts worth reordering.
const lowStockThreshold = 3

// LotSummary is the front-page aggregate view.
type LotSummary struct {
	Lot         LotCounts     `json:"lot"`
	Garage      GarageCounts  `json:"garage"`
	OpenRepairs int64         `json:"open_repairs"`
	PartCount   int64         `json:"part_count"`
	LowStock    []LowStockRow `json:"low_stock"`
}

// Summary aggregates lot, garage, repair, and stock counts in one pass.
func Summary(db *gorm.DB) (*LotSummary, error) {
	summary := &LotSummary{LowStock: []LowStockRow{}}

	type statusCount struct {
		Status string
		Count  int
	}
	var byStatus []statusCount
	if err := db.Model(&models.Vehicle{}).
		Select("status, count(*) as count").
		Where("archived = ?", false).
		Group("status").
		Find(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, r := range byStatus {
		summary.Lot.Total += r.Count
		switch r.Status {
		case "in_stock":
			summary.Lot.InStock = r.Count
		case "reserved":
			summary.Lot.Reserved = r.Count
		case "sold":
			summary.Lot.Sold = r.Count
		}
	}

	var byGarage []statusCount
	if err := db.Model(&models.Vehicle{}).
		Select("garage_status as status, count(*) as count").
		Where("archived = ?", false).
		Group("garage_status").
		Find(&byGarage).Error; err != nil {
		return nil, err
	}
	for _, r := range byGarage {
		switch r.Status {
		case "stored":
			summary.Garage.Stored = r.Count
		case "in_repair":
			summary.Garage.InRepair = r.Count
		case "awaiting_parts":
			summary.Garage.AwaitingParts = r.Count
		case "ready_for_pickup":
			summary.Garage.ReadyForPickup = r.Count
		case "completed":
			summary.Garage.Completed = r.Count
		}
	}

	if err := db.Model(&models.RepairCase{}).
		Where("closed = ?", false).
		Count(&summary.OpenRepairs).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Part{}).
		Where("removed = ?", false).
		Count(&summary.PartCount).Error; err != nil {
		return nil, err
	}

	var low []models.Part
	if err := db.Where("removed = ? AND quantity_on_hand <= ?", false, lowStockThreshold).
		Order("quantity_on_hand ASC, part_number ASC").
		Find(&low).Error; err != nil {
		return nil, err
	}
	for _, p := range low {
		summary.LowStock = append(summary.LowStock, LowStockRow{
			PartNumber: p.PartNumber,
			PartName:   p.PartName,
			OnHand:     p.QuantityOnHand,
		})
	}

	return summary, nil
}
