// Package vehicle provides vehicle lifecycle operations across three
// independent status axes: commercial, garage, and work-type stage.
package vehicle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/motorlot/internal/models"
	"gorm.io/gorm"
)

// Status axes. Each axis moves independently: a sold vehicle can still
// be in_repair in the garage.
const (
	AxisCommercial = "commercial"
	AxisGarage     = "garage"
	AxisWorkType   = "work_type"
)

// Commercial statuses.
const (
	StatusInStock  = "in_stock"
	StatusReserved = "reserved"
	StatusSold     = "sold"
)

// Garage statuses.
const (
	GarageStored         = "stored"
	GarageInRepair       = "in_repair"
	GarageAwaitingParts  = "awaiting_parts"
	GarageReadyForPickup = "ready_for_pickup"
	GarageCompleted      = "completed"
)

// Work-type stages, in canonical order.
const (
	StageInDiagnosis    = "in_diagnosis"
	StageInRepair       = "in_repair"
	StageInQualityCheck = "in_quality_check"
	StageReady          = "ready"
	StageDelivered      = "delivered"
)

// WorkTypeOrder is the canonical stage sequence. Jumps are allowed but
// recorded as skipped stages in the history entry.
var WorkTypeOrder = []string{
	StageInDiagnosis,
	StageInRepair,
	StageInQualityCheck,
	StageReady,
	StageDelivered,
}

// ValidGarageTransitions maps each garage status to its valid next
// statuses. The special case "any → in_repair" (re-opening for more
// work) is handled in isValidGarageTransition; completed is terminal
// and only leaves via ReopenCompleted.
var ValidGarageTransitions = map[string][]string{
	GarageStored:         {GarageInRepair},
	GarageInRepair:       {GarageStored, GarageAwaitingParts, GarageReadyForPickup},
	GarageAwaitingParts:  {GarageInRepair, GarageReadyForPickup},
	GarageReadyForPickup: {GarageAwaitingParts, GarageCompleted},
	GarageCompleted:      {},
}

var commercialStatuses = []string{StatusInStock, StatusReserved, StatusSold}

// Sentinel errors. Validation errors are surfaced verbatim to the caller
// for correction; state is never partially mutated on failure.
var (
	ErrVehicleNotFound     = errors.New("vehicle: not found")
	ErrMissingClientInfo   = errors.New("vehicle: client name and phone are required")
	ErrMissingSellingPrice = errors.New("vehicle: selling price must be greater than zero")
	ErrMissingSaleDate     = errors.New("vehicle: sale date is required")
	ErrMissingReason       = errors.New("vehicle: reopen requires a reason")
	ErrInvalidTransition   = errors.New("vehicle: invalid transition")
	ErrUnknownState        = errors.New("vehicle: unknown state")
)

// CreateOpts holds parameters for registering a vehicle on arrival.
type CreateOpts struct {
	VIN   string
	Model string
	Brand string
	Year  int
	Color string
}

// ListFilters holds optional filters for listing vehicles.
type ListFilters struct {
	Status       string
	GarageStatus string
	Brand        string
	Archived     bool
}

// Create registers a new vehicle in stock.
func Create(db *gorm.DB, opts CreateOpts) (*models.Vehicle, error) {
	vin := strings.ToUpper(strings.TrimSpace(opts.VIN))
	if len(vin) != 17 {
		return nil, fmt.Errorf("vehicle: vin %q must be 17 characters", vin)
	}
	if opts.Model == "" {
		return nil, fmt.Errorf("vehicle: model is required")
	}
	if opts.Brand == "" {
		return nil, fmt.Errorf("vehicle: brand is required")
	}

	v := models.Vehicle{
		VIN:           vin,
		Model:         opts.Model,
		Brand:         opts.Brand,
		Year:          opts.Year,
		Color:         opts.Color,
		Status:        StatusInStock,
		GarageStatus:  GarageStored,
		WorkTypeStage: StageInDiagnosis,
	}
	if err := db.Create(&v).Error; err != nil {
		return nil, fmt.Errorf("vehicle: create %s: %w", vin, err)
	}
	return &v, nil
}

// Get retrieves a vehicle by VIN.
func Get(db *gorm.DB, vin string) (*models.Vehicle, error) {
	var v models.Vehicle
	if err := db.Where("vin = ?", strings.ToUpper(strings.TrimSpace(vin))).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrVehicleNotFound, vin)
		}
		return nil, fmt.Errorf("vehicle: get %s: %w", vin, err)
	}
	return &v, nil
}

// List returns vehicles matching the given filters, newest first.
func List(db *gorm.DB, filters ListFilters) ([]models.Vehicle, error) {
	q := db.Model(&models.Vehicle{}).Where("archived = ?", filters.Archived)

	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.GarageStatus != "" {
		q = q.Where("garage_status = ?", filters.GarageStatus)
	}
	if filters.Brand != "" {
		q = q.Where("brand = ?", filters.Brand)
	}

	var vehicles []models.Vehicle
	if err := q.Order("created_at DESC").Find(&vehicles).Error; err != nil {
		return nil, fmt.Errorf("vehicle: list: %w", err)
	}
	return vehicles, nil
}

// Archive marks a vehicle archived. Only vehicles that are sold and
// fully delivered may be archived; nothing is ever hard-deleted.
func Archive(db *gorm.DB, vin string) error {
	v, err := Get(db, vin)
	if err != nil {
		return err
	}
	if v.Status != StatusSold || v.WorkTypeStage != StageDelivered {
		return fmt.Errorf("vehicle: archive %s: must be sold and delivered, have %s/%s",
			v.VIN, v.Status, v.WorkTypeStage)
	}
	if err := db.Model(&models.Vehicle{}).Where("vin = ?", v.VIN).
		Update("archived", true).Error; err != nil {
		return fmt.Errorf("vehicle: archive %s: %w", v.VIN, err)
	}
	return nil
}

// Label maps an internal status value to its display form. Business
// logic must branch on the constants, never on this string.
func Label(state string) string {
	return strings.ReplaceAll(state, "_", " ")
}

// isValidGarageTransition checks a garage axis move. Any status except
// completed may re-enter in_repair.
func isValidGarageTransition(from, to string) bool {
	if to == GarageInRepair && from != GarageCompleted && from != GarageInRepair {
		return true
	}
	valid, ok := ValidGarageTransitions[from]
	if !ok {
		return false
	}
	for _, v := range valid {
		if v == to {
			return true
		}
	}
	return false
}

// stageIndex returns the position of a work-type stage, or -1.
func stageIndex(stage string) int {
	for i, s := range WorkTypeOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

// isCommercialStatus reports whether s names a commercial status.
func isCommercialStatus(s string) bool {
	for _, v := range commercialStatuses {
		if v == s {
			return true
		}
	}
	return false
}
