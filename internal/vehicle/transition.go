package vehicle

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zulandar/motorlot/internal/identity"
	"github.com/zulandar/motorlot/internal/keylock"
	"github.com/zulandar/motorlot/internal/models"
	"gorm.io/gorm"
)

// Fields carries the optional data a transition may need. Client and
// price fields merge over what the vehicle already has, so a sale after
// a reservation does not have to repeat the client details.
type Fields struct {
	ClientName         string
	ClientPhone        string
	ClientEmail        string
	ClientLicensePlate string
	SellingPrice       decimal.Decimal
	ReservationDate    *time.Time
	SaleDate           *time.Time
	Notes              string
	RepairID           string
	PartsCost          decimal.Decimal
}

var garageStatuses = []string{
	GarageStored, GarageInRepair, GarageAwaitingParts, GarageReadyForPickup, GarageCompleted,
}

// Transition moves one axis of a vehicle to a new state. Preconditions
// are validated before any mutation; on success the state change and
// exactly one history entry commit in the same transaction, serialized
// per VIN.
func Transition(db *gorm.DB, locks *keylock.Locker, vin, axis, to string, fields Fields, user identity.User) (*models.TransitionHistory, error) {
	vin = strings.ToUpper(strings.TrimSpace(vin))

	locks.Lock(vin)
	defer locks.Unlock(vin)

	return TransitionLocked(db, vin, axis, to, fields, user)
}

// TransitionLocked is Transition without the per-VIN lock. Composite
// operations that already hold the VIN lock across a wider transaction
// call this directly.
func TransitionLocked(db *gorm.DB, vin, axis, to string, fields Fields, user identity.User) (*models.TransitionHistory, error) {
	vin = strings.ToUpper(strings.TrimSpace(vin))

	var entry *models.TransitionHistory
	err := db.Transaction(func(tx *gorm.DB) error {
		v, err := Get(tx, vin)
		if err != nil {
			return err
		}

		var (
			from    string
			updates map[string]interface{}
			skipped []string
		)
		switch axis {
		case AxisCommercial:
			from = v.Status
			updates, err = commercialUpdates(v, to, fields)
		case AxisGarage:
			from = v.GarageStatus
			updates, err = garageUpdates(v, to)
		case AxisWorkType:
			from = v.WorkTypeStage
			updates, skipped, err = workTypeUpdates(v, to)
		default:
			return fmt.Errorf("%w: axis %q", ErrUnknownState, axis)
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&models.Vehicle{}).Where("vin = ?", vin).Updates(updates).Error; err != nil {
			return fmt.Errorf("vehicle: transition %s: %w", vin, err)
		}

		entry = &models.TransitionHistory{
			VehicleVIN:    vin,
			Axis:          axis,
			FromState:     from,
			ToState:       to,
			ChangedBy:     user.AttributionName(),
			Notes:         fields.Notes,
			SkippedStages: strings.Join(skipped, ","),
			RepairID:      fields.RepairID,
			PartsCost:     fields.PartsCost,
			CreatedAt:     time.Now(),
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("vehicle: record transition %s: %w", vin, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ReopenCompleted moves a completed vehicle back to in_repair. This is
// a distinct audited action, not a normal garage transition; the reason
// is mandatory and lands in the history entry.
func ReopenCompleted(db *gorm.DB, locks *keylock.Locker, vin string, user identity.User, reason string) (*models.TransitionHistory, error) {
	if reason == "" {
		return nil, ErrMissingReason
	}
	vin = strings.ToUpper(strings.TrimSpace(vin))

	locks.Lock(vin)
	defer locks.Unlock(vin)

	var entry *models.TransitionHistory
	err := db.Transaction(func(tx *gorm.DB) error {
		v, err := Get(tx, vin)
		if err != nil {
			return err
		}
		if v.GarageStatus != GarageCompleted {
			return fmt.Errorf("%w: reopen %s: garage status is %q, want completed",
				ErrInvalidTransition, vin, v.GarageStatus)
		}

		if err := tx.Model(&models.Vehicle{}).Where("vin = ?", vin).
			Update("garage_status", GarageInRepair).Error; err != nil {
			return fmt.Errorf("vehicle: reopen %s: %w", vin, err)
		}

		entry = &models.TransitionHistory{
			VehicleVIN: vin,
			Axis:       AxisGarage,
			FromState:  GarageCompleted,
			ToState:    GarageInRepair,
			ChangedBy:  user.AttributionName(),
			Notes:      "reopened: " + reason,
			CreatedAt:  time.Now(),
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("vehicle: record reopen %s: %w", vin, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// commercialUpdates validates a commercial axis move and returns the
// column updates to apply. Entering in_stock is an explicit reset of
// all client, price, and date fields.
func commercialUpdates(v *models.Vehicle, to string, fields Fields) (map[string]interface{}, error) {
	if !isCommercialStatus(to) {
		return nil, fmt.Errorf("%w: commercial status %q", ErrUnknownState, to)
	}
	if v.Status == to {
		return nil, fmt.Errorf("%w: %s is already %s", ErrInvalidTransition, v.VIN, to)
	}

	switch to {
	case StatusInStock:
		return map[string]interface{}{
			"status":               StatusInStock,
			"client_name":          "",
			"client_phone":         "",
			"client_email":         "",
			"client_license_plate": "",
			"selling_price":        decimal.Zero,
			"reservation_date":     nil,
			"sale_date":            nil,
		}, nil

	case StatusReserved:
		name := firstNonEmpty(fields.ClientName, v.ClientName)
		phone := firstNonEmpty(fields.ClientPhone, v.ClientPhone)
		if name == "" || phone == "" {
			return nil, fmt.Errorf("%w: entering reserved on %s", ErrMissingClientInfo, v.VIN)
		}
		when := time.Now()
		if fields.ReservationDate != nil {
			when = *fields.ReservationDate
		}
		return map[string]interface{}{
			"status":               StatusReserved,
			"client_name":          name,
			"client_phone":         phone,
			"client_email":         firstNonEmpty(fields.ClientEmail, v.ClientEmail),
			"client_license_plate": firstNonEmpty(fields.ClientLicensePlate, v.ClientLicensePlate),
			"reservation_date":     when,
		}, nil

	case StatusSold:
		name := firstNonEmpty(fields.ClientName, v.ClientName)
		phone := firstNonEmpty(fields.ClientPhone, v.ClientPhone)
		if name == "" || phone == "" {
			return nil, fmt.Errorf("%w: entering sold on %s", ErrMissingClientInfo, v.VIN)
		}
		price := fields.SellingPrice
		if !price.IsPositive() {
			price = v.SellingPrice
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("%w: on %s", ErrMissingSellingPrice, v.VIN)
		}
		when := time.Now()
		if fields.SaleDate != nil {
			if fields.SaleDate.IsZero() {
				return nil, fmt.Errorf("%w: on %s", ErrMissingSaleDate, v.VIN)
			}
			when = *fields.SaleDate
		}
		return map[string]interface{}{
			"status":               StatusSold,
			"client_name":          name,
			"client_phone":         phone,
			"client_email":         firstNonEmpty(fields.ClientEmail, v.ClientEmail),
			"client_license_plate": firstNonEmpty(fields.ClientLicensePlate, v.ClientLicensePlate),
			"selling_price":        price,
			"sale_date":            when,
		}, nil
	}
	return nil, fmt.Errorf("%w: commercial status %q", ErrUnknownState, to)
}

// garageUpdates validates a garage axis move.
func garageUpdates(v *models.Vehicle, to string) (map[string]interface{}, error) {
	known := false
	for _, s := range garageStatuses {
		if s == to {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("%w: garage status %q", ErrUnknownState, to)
	}
	if !isValidGarageTransition(v.GarageStatus, to) {
		valid := ValidGarageTransitions[v.GarageStatus]
		return nil, fmt.Errorf("%w: garage %s from %q to %q; valid transitions: %v",
			ErrInvalidTransition, v.VIN, v.GarageStatus, to, valid)
	}
	return map[string]interface{}{"garage_status": to}, nil
}

// workTypeUpdates validates a work-type stage move. Out-of-order jumps
// are allowed but the skipped stages are named in the history entry:
// the system favors recording over blocking.
func workTypeUpdates(v *models.Vehicle, to string) (map[string]interface{}, []string, error) {
	toIdx := stageIndex(to)
	if toIdx < 0 {
		return nil, nil, fmt.Errorf("%w: work-type stage %q", ErrUnknownState, to)
	}
	fromIdx := stageIndex(v.WorkTypeStage)
	if v.WorkTypeStage == to {
		return nil, nil, fmt.Errorf("%w: %s is already %s", ErrInvalidTransition, v.VIN, to)
	}

	var skipped []string
	if fromIdx >= 0 && toIdx > fromIdx+1 {
		skipped = append(skipped, WorkTypeOrder[fromIdx+1:toIdx]...)
	}
	return map[string]interface{}{"work_type_stage": to}, skipped, nil
}

// firstNonEmpty returns a if non-empty, else b.
func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
