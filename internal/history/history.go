// Package history reads and appends the audit trail: transition history
// rows and ledger entries, keyed by VIN. Rows are never edited or
// removed; corrections are new compensating rows.
package history

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zulandar/motorlot/internal/models"
	"gorm.io/gorm"
)

// ErrStorageUnavailable wraps storage failures that survived the retry
// budget. Surfaced as fatal to the caller, never swallowed.
var ErrStorageUnavailable = errors.New("history: storage unavailable")

// appendBackoff is the initial retry backoff; it doubles per attempt.
const appendBackoff = 50 * time.Millisecond

// Append writes one history entry, retrying up to retries times on
// storage errors with doubling backoff.
func Append(db *gorm.DB, entry *models.TransitionHistory, retries int) error {
	if entry.VehicleVIN == "" {
		return fmt.Errorf("history: vehicle vin is required")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	backoff := appendBackoff
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		if lastErr = db.Create(entry).Error; lastErr == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: append for %s after %d retries: %v",
		ErrStorageUnavailable, entry.VehicleVIN, retries, lastErr)
}

// QueryByVIN returns the transition history of a vehicle in append order.
// The VIN is normalized the same way writes normalize it.
func QueryByVIN(db *gorm.DB, vin string) ([]models.TransitionHistory, error) {
	vin = strings.ToUpper(strings.TrimSpace(vin))
	var entries []models.TransitionHistory
	if err := db.Where("vehicle_vin = ?", vin).
		Order("id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("history: query %s: %w", vin, err)
	}
	return entries, nil
}

// QueryByAxis returns all transition history for one axis, newest first.
func QueryByAxis(db *gorm.DB, axis string) ([]models.TransitionHistory, error) {
	var entries []models.TransitionHistory
	if err := db.Where("axis = ?", axis).
		Order("id DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("history: query axis %s: %w", axis, err)
	}
	return entries, nil
}

// QueryRecent returns the latest transitions across all vehicles.
func QueryRecent(db *gorm.DB, limit int) ([]models.TransitionHistory, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []models.TransitionHistory
	if err := db.Order("id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("history: query recent: %w", err)
	}
	return entries, nil
}

// Event is one step of a vehicle's replayed service timeline: either a
// status transition or a parts ledger operation.
type Event struct {
	At         time.Time
	Kind       string // "transition" or "ledger"
	Axis       string
	FromState  string
	ToState    string
	PartNumber string
	Quantity   int
	Cost       decimal.Decimal
	Actor      string
	Notes      string
}

// Timeline replays a vehicle's full service history: transitions and
// ledger operations merged in time order.
func Timeline(db *gorm.DB, vin string) ([]Event, error) {
	vin = strings.ToUpper(strings.TrimSpace(vin))
	transitions, err := QueryByVIN(db, vin)
	if err != nil {
		return nil, err
	}
	var ledgerEntries []models.LedgerEntry
	if err := db.Where("vehicle_vin = ?", vin).
		Order("id ASC").Find(&ledgerEntries).Error; err != nil {
		return nil, fmt.Errorf("history: ledger entries for %s: %w", vin, err)
	}

	events := make([]Event, 0, len(transitions)+len(ledgerEntries))
	for _, tr := range transitions {
		events = append(events, Event{
			At:        tr.CreatedAt,
			Kind:      "transition",
			Axis:      tr.Axis,
			FromState: tr.FromState,
			ToState:   tr.ToState,
			Cost:      tr.PartsCost,
			Actor:     tr.ChangedBy,
			Notes:     tr.Notes,
		})
	}
	for _, le := range ledgerEntries {
		events = append(events, Event{
			At:         le.CreatedAt,
			Kind:       "ledger",
			PartNumber: le.PartNumber,
			Quantity:   le.QuantityDelta,
			Cost:       le.Cost,
			Actor:      le.Technician,
			Notes:      le.Context,
		})
	}

	// Stable merge by timestamp; equal stamps keep source order.
	sortEventsByTime(events)
	return events, nil
}

// sortEventsByTime is an insertion sort: timelines are short and the
// two inputs are already sorted, so this stays near linear.
func sortEventsByTime(events []Event) {
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && events[j].At.Before(events[j-1].At); j-- {
			events[j], events[j-1] = events[j-1], events[j]
		}
	}
}
