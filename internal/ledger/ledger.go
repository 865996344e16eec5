// Package ledger provides atomic part stock operations. Stock is only
// ever changed through Use and Refund, each of which appends one
// immutable ledger entry, so the signed sum of entries plus initial
// stock always equals quantity on hand.
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zulandar/motorlot/internal/keylock"
	"github.com/zulandar/motorlot/internal/models"
	"gorm.io/gorm"
)

// Sentinel errors surfaced to callers for correction, never retried.
var (
	ErrPartNotFound      = errors.New("ledger: part not found")
	ErrInsufficientStock = errors.New("ledger: insufficient stock")
	ErrInvalidQuantity   = errors.New("ledger: quantity must be a positive integer")
	ErrCaseNotFound      = errors.New("ledger: repair case not found")
	ErrCaseClosed        = errors.New("ledger: repair case is closed")
)

// Operation context kinds.
const (
	KindManual           = "manual"
	KindScan             = "scan"
	KindAIRecommendation = "ai_recommendation"
	KindRepair           = "repair"
	KindRepairRefund     = "repair_refund"
)

// OpContext says why a ledger operation happened and who asked for it.
type OpContext struct {
	Kind           string // manual, scan, ai_recommendation, repair, repair_refund
	VehicleVIN     string
	RepairID       string
	Technician     string
	IdempotencyKey string // optional; repeating a key returns the original entry
}

// CreateOpts holds parameters for adding a part to the catalog.
type CreateOpts struct {
	PartNumber   string
	PartName     string
	InitialStock int
	UnitPrice    decimal.Decimal
	Location     string
	Supplier     string
}

// ListFilters holds optional filters for listing parts.
type ListFilters struct {
	Location       string
	Supplier       string
	IncludeRemoved bool
}

// NormalizePartNumber canonicalizes a human-typed part number.
func NormalizePartNumber(pn string) string {
	return strings.ToUpper(strings.TrimSpace(pn))
}

// Use consumes qty units of a part. It serializes per part number, so
// two racing calls can never both pass the stock check, and appends a
// negative-delta ledger entry inside the same transaction as the
// decrement.
func Use(db *gorm.DB, locks *keylock.Locker, partNumber string, qty int, ctx OpContext) (*models.LedgerEntry, error) {
	pn := NormalizePartNumber(partNumber)

	locks.Lock(pn)
	defer locks.Unlock(pn)

	return UseLocked(db, pn, qty, ctx)
}

// UseLocked is Use without the per-part lock. Composite operations that
// must hold several locks across one transaction acquire them up front
// and call this directly; everyone else goes through Use.
func UseLocked(db *gorm.DB, partNumber string, qty int, ctx OpContext) (*models.LedgerEntry, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuantity, qty)
	}
	pn := NormalizePartNumber(partNumber)

	if entry, ok, err := findByIdempotencyKey(db, ctx.IdempotencyKey); err != nil {
		return nil, err
	} else if ok {
		return entry, nil
	}

	entry := &models.LedgerEntry{
		PartNumber:    pn,
		QuantityDelta: -qty,
		VehicleVIN:    ctx.VehicleVIN,
		RepairID:      ctx.RepairID,
		Technician:    ctx.Technician,
		Context:       kindOrDefault(ctx.Kind, KindManual),
		CreatedAt:     time.Now(),
	}
	if ctx.IdempotencyKey != "" {
		key := ctx.IdempotencyKey
		entry.IdempotencyKey = &key
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		part, err := lookupPart(tx, pn)
		if err != nil {
			return err
		}
		if qty > part.QuantityOnHand {
			return fmt.Errorf("%w: part %s has %d, requested %d",
				ErrInsufficientStock, pn, part.QuantityOnHand, qty)
		}
		if err := assertCaseOpen(tx, ctx.RepairID); err != nil {
			return err
		}
		entry.Cost = part.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
		// The WHERE guard backstops the check above: under snapshot
		// isolation a stale read must not turn into a negative count.
		result := tx.Model(&models.Part{}).
			Where("part_number = ? AND quantity_on_hand >= ?", pn, qty).
			Update("quantity_on_hand", gorm.Expr("quantity_on_hand - ?", qty))
		if result.Error != nil {
			return fmt.Errorf("ledger: decrement %s: %w", pn, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: part %s", ErrInsufficientStock, pn)
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("ledger: append entry for %s: %w", pn, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Refund returns qty units of a part to stock. Refund is unconditional
// additive credit: it never checks prior consumption, and its repair
// context is recorded as given, not validated against open cases —
// reconcile reports refunds that do not match prior use.
func Refund(db *gorm.DB, locks *keylock.Locker, partNumber string, qty int, ctx OpContext) (*models.LedgerEntry, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidQuantity, qty)
	}
	pn := NormalizePartNumber(partNumber)

	locks.Lock(pn)
	defer locks.Unlock(pn)

	if entry, ok, err := findByIdempotencyKey(db, ctx.IdempotencyKey); err != nil {
		return nil, err
	} else if ok {
		return entry, nil
	}

	entry := &models.LedgerEntry{
		PartNumber:    pn,
		QuantityDelta: qty,
		VehicleVIN:    ctx.VehicleVIN,
		RepairID:      ctx.RepairID,
		Technician:    ctx.Technician,
		Context:       kindOrDefault(ctx.Kind, KindRepairRefund),
		CreatedAt:     time.Now(),
	}
	if ctx.IdempotencyKey != "" {
		key := ctx.IdempotencyKey
		entry.IdempotencyKey = &key
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		part, err := lookupPart(tx, pn)
		if err != nil {
			return err
		}
		entry.Cost = part.UnitPrice.Mul(decimal.NewFromInt(int64(qty)))
		if err := tx.Model(&models.Part{}).Where("part_number = ?", pn).
			Update("quantity_on_hand", gorm.Expr("quantity_on_hand + ?", qty)).Error; err != nil {
			return fmt.Errorf("ledger: increment %s: %w", pn, err)
		}
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("ledger: append entry for %s: %w", pn, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// CreatePart adds a part to the catalog. Initial stock seeds both
// InitialStock and QuantityOnHand; everything after goes through the ledger.
func CreatePart(db *gorm.DB, opts CreateOpts) (*models.Part, error) {
	pn := NormalizePartNumber(opts.PartNumber)
	if pn == "" {
		return nil, fmt.Errorf("ledger: part number is required")
	}
	if opts.PartName == "" {
		return nil, fmt.Errorf("ledger: part name is required")
	}
	if opts.InitialStock < 0 {
		return nil, fmt.Errorf("%w: initial stock %d", ErrInvalidQuantity, opts.InitialStock)
	}

	part := models.Part{
		PartNumber:     pn,
		PartName:       opts.PartName,
		QuantityOnHand: opts.InitialStock,
		InitialStock:   opts.InitialStock,
		UnitPrice:      opts.UnitPrice,
		Location:       opts.Location,
		Supplier:       opts.Supplier,
	}
	if err := db.Create(&part).Error; err != nil {
		return nil, fmt.Errorf("ledger: create part %s: %w", pn, err)
	}
	return &part, nil
}

// FindPart retrieves a part by normalized part number. Soft-removed
// parts are reported as not found.
func FindPart(db *gorm.DB, partNumber string) (*models.Part, error) {
	return lookupPart(db, NormalizePartNumber(partNumber))
}

// RemovePart soft-removes a part from the catalog. The row stays
// because ledger entries reference it.
func RemovePart(db *gorm.DB, partNumber string) error {
	pn := NormalizePartNumber(partNumber)
	result := db.Model(&models.Part{}).
		Where("part_number = ? AND removed = ?", pn, false).
		Update("removed", true)
	if result.Error != nil {
		return fmt.Errorf("ledger: remove part %s: %w", pn, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrPartNotFound, pn)
	}
	return nil
}

// AdjustLocation moves a part to a new storage location. Location is
// catalog metadata; no ledger entry is written.
func AdjustLocation(db *gorm.DB, partNumber, location string) error {
	pn := NormalizePartNumber(partNumber)
	result := db.Model(&models.Part{}).
		Where("part_number = ? AND removed = ?", pn, false).
		Update("location", location)
	if result.Error != nil {
		return fmt.Errorf("ledger: relocate part %s: %w", pn, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrPartNotFound, pn)
	}
	return nil
}

// ListParts returns catalog parts matching the given filters, ordered
// by part number.
func ListParts(db *gorm.DB, filters ListFilters) ([]models.Part, error) {
	q := db.Model(&models.Part{})

	if !filters.IncludeRemoved {
		q = q.Where("removed = ?", false)
	}
	if filters.Location != "" {
		q = q.Where("location = ?", filters.Location)
	}
	if filters.Supplier != "" {
		q = q.Where("supplier = ?", filters.Supplier)
	}

	var parts []models.Part
	if err := q.Order("part_number ASC").Find(&parts).Error; err != nil {
		return nil, fmt.Errorf("ledger: list parts: %w", err)
	}
	return parts, nil
}

// EntriesForPart returns the full ledger for a part in append order.
func EntriesForPart(db *gorm.DB, partNumber string) ([]models.LedgerEntry, error) {
	pn := NormalizePartNumber(partNumber)
	var entries []models.LedgerEntry
	if err := db.Where("part_number = ?", pn).
		Order("id ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("ledger: entries for %s: %w", pn, err)
	}
	return entries, nil
}

// lookupPart fetches a live (non-removed) part row.
func lookupPart(db *gorm.DB, pn string) (*models.Part, error) {
	var part models.Part
	if err := db.Where("part_number = ? AND removed = ?", pn, false).First(&part).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPartNotFound, pn)
		}
		return nil, fmt.Errorf("ledger: find part %s: %w", pn, err)
	}
	return &part, nil
}

// assertCaseOpen rejects attribution to a closed repair case.
func assertCaseOpen(db *gorm.DB, repairID string) error {
	if repairID == "" {
		return nil
	}
	var rc models.RepairCase
	if err := db.Select("closed").Where("repair_id = ?", repairID).First(&rc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrCaseNotFound, repairID)
		}
		return fmt.Errorf("ledger: check repair case %s: %w", repairID, err)
	}
	if rc.Closed {
		return fmt.Errorf("%w: %s", ErrCaseClosed, repairID)
	}
	return nil
}

// findByIdempotencyKey returns the prior entry for a repeated key, if any.
func findByIdempotencyKey(db *gorm.DB, key string) (*models.LedgerEntry, bool, error) {
	if key == "" {
		return nil, false, nil
	}
	var entry models.LedgerEntry
	err := db.Where("idempotency_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ledger: idempotency lookup: %w", err)
	}
	return &entry, true, nil
}

// kindOrDefault falls back when the caller left the context kind empty.
func kindOrDefault(kind, def string) string {
	if kind == "" {
		return def
	}
	return kind
}
