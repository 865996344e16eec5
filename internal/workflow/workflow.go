// Package workflow composes the ledger, state machine, repair cases,
// and history recorder into the operations callers actually invoke.
// It is the only package allowed to drive the state machine and the
// ledger together, so multi-step operations look all-or-nothing from
// the caller's side.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zulandar/motorlot/internal/history"
	"github.com/zulandar/motorlot/internal/identity"
	"github.com/zulandar/motorlot/internal/keylock"
	"github.com/zulandar/motorlot/internal/ledger"
	"github.com/zulandar/motorlot/internal/models"
	"github.com/zulandar/motorlot/internal/notify"
	"github.com/zulandar/motorlot/internal/repaircase"
	"github.com/zulandar/motorlot/internal/vehicle"
	"gorm.io/gorm"
)

// storageBackoff is the initial backoff between storage retries.
const storageBackoff = 100 * time.Millisecond

// Orchestrator holds the shared handles every operation needs. Stores
// are injected, never global.
type Orchestrator struct {
	db             *gorm.DB
	partLocks      *keylock.Locker
	vinLocks       *keylock.Locker
	notifier       notify.Notifier
	laborRate      decimal.Decimal
	storageRetries int
}

// Opts holds parameters for creating an Orchestrator.
type Opts struct {
	Notifier       notify.Notifier // defaults to notify.Log
	LaborRate      decimal.Decimal
	StorageRetries int // defaults to 3
}

// New creates an Orchestrator over the given database handle.
func New(db *gorm.DB, opts Opts) *Orchestrator {
	n := opts.Notifier
	if n == nil {
		n = notify.Log{}
	}
	retries := opts.StorageRetries
	if retries <= 0 {
		retries = 3
	}
	return &Orchestrator{
		db:             db,
		partLocks:      keylock.New(),
		vinLocks:       keylock.New(),
		notifier:       n,
		laborRate:      opts.LaborRate,
		storageRetries: retries,
	}
}

// PartUse names one part and quantity for a multi-part operation.
type PartUse struct {
	PartNumber string
	Quantity   int
}

// UsePart consumes stock and announces it. The technician defaults to
// the calling user.
func (o *Orchestrator) UsePart(ctx context.Context, partNumber string, qty int, opctx ledger.OpContext, user identity.User) (*models.LedgerEntry, error) {
	if opctx.Technician == "" {
		opctx.Technician = user.AttributionName()
	}
	var entry *models.LedgerEntry
	err := o.retryStorage(func() error {
		var err error
		entry, err = ledger.Use(o.db, o.partLocks, partNumber, qty, opctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	o.notifier.Notify(ctx, notify.Event{
		Kind:       notify.KindPartUse,
		VIN:        entry.VehicleVIN,
		PartNumber: entry.PartNumber,
		Summary:    fmt.Sprintf("used %d × %s (%s)", qty, entry.PartNumber, entry.Context),
	})
	return entry, nil
}

// RefundPart returns stock and announces it.
func (o *Orchestrator) RefundPart(ctx context.Context, partNumber string, qty int, opctx ledger.OpContext, user identity.User) (*models.LedgerEntry, error) {
	if opctx.Technician == "" {
		opctx.Technician = user.AttributionName()
	}
	var entry *models.LedgerEntry
	err := o.retryStorage(func() error {
		var err error
		entry, err = ledger.Refund(o.db, o.partLocks, partNumber, qty, opctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	o.notifier.Notify(ctx, notify.Event{
		Kind:       notify.KindPartRefund,
		VIN:        entry.VehicleVIN,
		PartNumber: entry.PartNumber,
		Summary:    fmt.Sprintf("refunded %d × %s (%s)", qty, entry.PartNumber, entry.Context),
	})
	return entry, nil
}

// TransitionVehicle moves one axis of a vehicle, with bounded retry on
// storage failures. Validation errors surface verbatim for correction.
func (o *Orchestrator) TransitionVehicle(ctx context.Context, vin, axis, to string, fields vehicle.Fields, user identity.User) (*models.TransitionHistory, error) {
	var entry *models.TransitionHistory
	err := o.retryStorage(func() error {
		var err error
		entry, err = vehicle.Transition(o.db, o.vinLocks, vin, axis, to, fields, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	o.notifier.Notify(ctx, notify.Event{
		Kind:    notify.KindTransition,
		VIN:     entry.VehicleVIN,
		Summary: fmt.Sprintf("%s: %s %s → %s", entry.VehicleVIN, axis, vehicle.Label(entry.FromState), vehicle.Label(entry.ToState)),
	})
	return entry, nil
}

// SellVehicle marks a vehicle sold.
func (o *Orchestrator) SellVehicle(ctx context.Context, vin string, fields vehicle.Fields, user identity.User) (*models.TransitionHistory, error) {
	return o.TransitionVehicle(ctx, vin, vehicle.AxisCommercial, vehicle.StatusSold, fields, user)
}

// ReserveVehicle marks a vehicle reserved for a client.
func (o *Orchestrator) ReserveVehicle(ctx context.Context, vin string, fields vehicle.Fields, user identity.User) (*models.TransitionHistory, error) {
	return o.TransitionVehicle(ctx, vin, vehicle.AxisCommercial, vehicle.StatusReserved, fields, user)
}

// CancelReservation returns a reserved vehicle to stock, clearing all
// client fields.
func (o *Orchestrator) CancelReservation(ctx context.Context, vin string, user identity.User) (*models.TransitionHistory, error) {
	return o.TransitionVehicle(ctx, vin, vehicle.AxisCommercial, vehicle.StatusInStock, vehicle.Fields{}, user)
}

// MarkReadyForPickup consumes any final parts, attributes them to the
// repair case, and moves the garage axis to ready_for_pickup — one
// transaction, so a failure at any step leaves nothing behind. Every
// part lock and the VIN lock are held until the transaction resolves;
// releasing them mid-flight would let a racing Use read stock this
// transaction has not yet committed.
func (o *Orchestrator) MarkReadyForPickup(ctx context.Context, vin, repairID string, finalParts []PartUse, user identity.User) (*models.TransitionHistory, error) {
	vin = strings.ToUpper(strings.TrimSpace(vin))

	// Sorted, deduplicated lock order keeps concurrent pickups from
	// deadlocking on overlapping part sets.
	seen := make(map[string]bool, len(finalParts))
	var partKeys []string
	for _, p := range finalParts {
		pn := ledger.NormalizePartNumber(p.PartNumber)
		if !seen[pn] {
			seen[pn] = true
			partKeys = append(partKeys, pn)
		}
	}
	sort.Strings(partKeys)
	for _, pn := range partKeys {
		o.partLocks.Lock(pn)
		defer o.partLocks.Unlock(pn)
	}
	o.vinLocks.Lock(vin)
	defer o.vinLocks.Unlock(vin)

	var entry *models.TransitionHistory
	err := o.retryStorage(func() error {
		return o.db.Transaction(func(tx *gorm.DB) error {
			partsCost := decimal.Zero
			for _, p := range finalParts {
				le, err := ledger.UseLocked(tx, p.PartNumber, p.Quantity, ledger.OpContext{
					Kind:       ledger.KindRepair,
					VehicleVIN: vin,
					RepairID:   repairID,
					Technician: user.AttributionName(),
				})
				if err != nil {
					return err
				}
				partsCost = partsCost.Add(le.Cost)
			}

			var err error
			entry, err = vehicle.TransitionLocked(tx, vin, vehicle.AxisGarage, vehicle.GarageReadyForPickup, vehicle.Fields{
				RepairID:  repairID,
				PartsCost: partsCost,
			}, user)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	o.notifier.Notify(ctx, notify.Event{
		Kind:    notify.KindTransition,
		VIN:     entry.VehicleVIN,
		Summary: fmt.Sprintf("%s ready for pickup (parts %s)", entry.VehicleVIN, entry.PartsCost),
	})
	return entry, nil
}

// ReopenVehicle reopens a completed vehicle for more garage work.
func (o *Orchestrator) ReopenVehicle(ctx context.Context, vin, reason string, user identity.User) (*models.TransitionHistory, error) {
	var entry *models.TransitionHistory
	err := o.retryStorage(func() error {
		var err error
		entry, err = vehicle.ReopenCompleted(o.db, o.vinLocks, vin, user, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	o.notifier.Notify(ctx, notify.Event{
		Kind:    notify.KindTransition,
		VIN:     entry.VehicleVIN,
		Summary: fmt.Sprintf("%s reopened for repair: %s", entry.VehicleVIN, reason),
	})
	return entry, nil
}

// CloseRepair seals a repair case, defaulting the labor rate to the
// dealership's configured rate.
func (o *Orchestrator) CloseRepair(ctx context.Context, repairID string, opts repaircase.CloseOpts) (*models.RepairCase, error) {
	if opts.LaborRate.IsZero() {
		opts.LaborRate = o.laborRate
	}
	var rc *models.RepairCase
	err := o.retryStorage(func() error {
		var err error
		rc, err = repaircase.Close(o.db, repairID, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	o.notifier.Notify(ctx, notify.Event{
		Kind:    notify.KindRepairClosed,
		VIN:     rc.VehicleVIN,
		Summary: fmt.Sprintf("repair %s closed at %s", rc.RepairID, rc.TotalCost),
		Fields:  []notify.Field{{Name: "Total", Value: rc.TotalCost.StringFixed(2)}},
	})
	return rc, nil
}

// AnnotateVehicle appends a compensating audit note to a vehicle's
// history. History is never edited; corrections land as new entries.
func (o *Orchestrator) AnnotateVehicle(vin, note string, user identity.User) error {
	if _, err := vehicle.Get(o.db, vin); err != nil {
		return err
	}
	return history.Append(o.db, &models.TransitionHistory{
		VehicleVIN: vin,
		Axis:       "audit",
		FromState:  "-",
		ToState:    "-",
		ChangedBy:  user.AttributionName(),
		Notes:      note,
	}, o.storageRetries)
}

// GetVehicleHistory returns a vehicle's transition history in append order.
func (o *Orchestrator) GetVehicleHistory(vin string) ([]models.TransitionHistory, error) {
	return history.QueryByVIN(o.db, vin)
}

// GetTimeline replays a vehicle's full service timeline.
func (o *Orchestrator) GetTimeline(vin string) ([]history.Event, error) {
	return history.Timeline(o.db, vin)
}

// GetPartStock returns the current catalog row for a part.
func (o *Orchestrator) GetPartStock(partNumber string) (*models.Part, error) {
	return ledger.FindPart(o.db, partNumber)
}

// retryStorage runs fn, retrying with doubling backoff when the error
// is a storage failure rather than a domain error. Domain errors are
// the caller's to fix; retrying them would just repeat the answer.
func (o *Orchestrator) retryStorage(fn func() error) error {
	backoff := storageBackoff
	var err error
	for attempt := 0; attempt <= o.storageRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		err = fn()
		if err == nil || isDomainErr(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", history.ErrStorageUnavailable, err)
}

// isDomainErr reports whether err is a typed domain error that must
// surface verbatim instead of being retried.
func isDomainErr(err error) bool {
	for _, sentinel := range []error{
		ledger.ErrPartNotFound,
		ledger.ErrInsufficientStock,
		ledger.ErrInvalidQuantity,
		ledger.ErrCaseNotFound,
		ledger.ErrCaseClosed,
		vehicle.ErrVehicleNotFound,
		vehicle.ErrMissingClientInfo,
		vehicle.ErrMissingSellingPrice,
		vehicle.ErrMissingSaleDate,
		vehicle.ErrMissingReason,
		vehicle.ErrInvalidTransition,
		vehicle.ErrUnknownState,
		repaircase.ErrCaseNotFound,
		repaircase.ErrCaseClosed,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
