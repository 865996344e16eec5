// Package repaircase groups parts and labor spent on one repair, so
// every consumed part is traceable to why it was consumed.
package repaircase

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zulandar/motorlot/internal/models"
	"gorm.io/gorm"
)

// Sentinel errors.
var (
	ErrCaseNotFound = errors.New("repaircase: not found")
	ErrCaseClosed   = errors.New("repaircase: case is closed")
)

// OpenOpts holds parameters for opening a repair case when diagnosis starts.
type OpenOpts struct {
	VehicleVIN       string
	ClientName       string
	Technician       string
	IssueDescription string
	DifficultyLevel  int
	WarrantyMonths   int
}

// CloseOpts holds parameters for sealing a repair case.
type CloseOpts struct {
	SolutionDescription string
	LaborHours          decimal.Decimal
	LaborRate           decimal.Decimal
	// CallerTotal is the total the caller believes is right. It is
	// compared against the recomputed total, never stored as-is.
	CallerTotal        decimal.Decimal
	QualityRating      int
	ClientSatisfaction int
}

// GenerateID creates a repair case ID in rep-<uuid> format.
func GenerateID() string {
	return "rep-" + uuid.NewString()
}

// Open starts a repair case for a vehicle.
func Open(db *gorm.DB, opts OpenOpts) (*models.RepairCase, error) {
	if opts.VehicleVIN == "" {
		return nil, fmt.Errorf("repaircase: vehicle vin is required")
	}
	if opts.Technician == "" {
		return nil, fmt.Errorf("repaircase: technician is required")
	}

	rc := models.RepairCase{
		RepairID:         GenerateID(),
		VehicleVIN:       opts.VehicleVIN,
		ClientName:       opts.ClientName,
		Technician:       opts.Technician,
		IssueDescription: opts.IssueDescription,
		DifficultyLevel:  opts.DifficultyLevel,
		WarrantyMonths:   opts.WarrantyMonths,
	}
	if err := db.Create(&rc).Error; err != nil {
		return nil, fmt.Errorf("repaircase: open for %s: %w", opts.VehicleVIN, err)
	}
	return &rc, nil
}

// Get retrieves a repair case with its steps and attributed ledger entries.
func Get(db *gorm.DB, repairID string) (*models.RepairCase, error) {
	var rc models.RepairCase
	if err := db.Preload("Steps", func(q *gorm.DB) *gorm.DB { return q.Order("seq ASC") }).
		Preload("Entries").
		Where("repair_id = ?", repairID).First(&rc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, repairID)
		}
		return nil, fmt.Errorf("repaircase: get %s: %w", repairID, err)
	}
	return &rc, nil
}

// ListOpen returns open repair cases, oldest first.
func ListOpen(db *gorm.DB) ([]models.RepairCase, error) {
	var cases []models.RepairCase
	if err := db.Where("closed = ?", false).
		Order("created_at ASC").Find(&cases).Error; err != nil {
		return nil, fmt.Errorf("repaircase: list open: %w", err)
	}
	return cases, nil
}

// AddStep appends the next ordered repair step to an open case.
func AddStep(db *gorm.DB, repairID, description string) (*models.RepairStep, error) {
	if description == "" {
		return nil, fmt.Errorf("repaircase: step description is required")
	}

	var step *models.RepairStep
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := assertOpen(tx, repairID); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.RepairStep{}).Where("repair_id = ?", repairID).Count(&n).Error; err != nil {
			return fmt.Errorf("repaircase: count steps of %s: %w", repairID, err)
		}
		step = &models.RepairStep{
			RepairID:    repairID,
			Seq:         int(n) + 1,
			Description: description,
			CreatedAt:   time.Now(),
		}
		if err := tx.Create(step).Error; err != nil {
			return fmt.Errorf("repaircase: add step to %s: %w", repairID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return step, nil
}

// Attach binds an existing ledger entry to an open case. Entries created
// with a repair context are attributed at creation; Attach covers parts
// consumed before the case was opened. An entry attributes once.
func Attach(db *gorm.DB, repairID string, entryID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := assertOpen(tx, repairID); err != nil {
			return err
		}
		var entry models.LedgerEntry
		if err := tx.Where("id = ?", entryID).First(&entry).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("repaircase: ledger entry not found: %d", entryID)
			}
			return fmt.Errorf("repaircase: find entry %d: %w", entryID, err)
		}
		if entry.RepairID != "" {
			return fmt.Errorf("repaircase: entry %d already attributed to %s", entryID, entry.RepairID)
		}
		if err := tx.Model(&models.LedgerEntry{}).Where("id = ?", entryID).
			Update("repair_id", repairID).Error; err != nil {
			return fmt.Errorf("repaircase: attach entry %d to %s: %w", entryID, repairID, err)
		}
		return nil
	})
}

// Close seals a case. The total is recomputed from attributed ledger
// entries plus labor, never taken from the caller; a caller-supplied
// total that disagrees is logged and discarded.
func Close(db *gorm.DB, repairID string, opts CloseOpts) (*models.RepairCase, error) {
	var rc *models.RepairCase
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := assertOpen(tx, repairID); err != nil {
			return err
		}

		partsCost, err := PartsCost(tx, repairID)
		if err != nil {
			return err
		}
		total := partsCost.Add(opts.LaborHours.Mul(opts.LaborRate))

		if !opts.CallerTotal.IsZero() && opts.CallerTotal.Cmp(total) != 0 {
			log.Printf("repaircase: close %s: caller total %s disagrees with recomputed %s, keeping recomputed",
				repairID, opts.CallerTotal, total)
		}

		now := time.Now()
		updates := map[string]interface{}{
			"solution_description": opts.SolutionDescription,
			"labor_hours":          opts.LaborHours,
			"total_cost":           total,
			"quality_rating":       opts.QualityRating,
			"client_satisfaction":  opts.ClientSatisfaction,
			"closed":               true,
			"closed_at":            now,
		}
		if err := tx.Model(&models.RepairCase{}).Where("repair_id = ?", repairID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("repaircase: close %s: %w", repairID, err)
		}

		rc, err = Get(tx, repairID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// AddFollowUp appends a note to a case. This is the only mutation
// allowed after close.
func AddFollowUp(db *gorm.DB, repairID, note string) error {
	if note == "" {
		return fmt.Errorf("repaircase: follow-up note is required")
	}
	rc, err := Get(db, repairID)
	if err != nil {
		return err
	}
	notes := rc.FollowUpNotes
	if notes != "" {
		notes += "\n"
	}
	notes += note
	if err := db.Model(&models.RepairCase{}).Where("repair_id = ?", repairID).
		Update("follow_up_notes", notes).Error; err != nil {
		return fmt.Errorf("repaircase: add follow-up to %s: %w", repairID, err)
	}
	return nil
}

// PartsCost computes the net parts cost of a case from its attributed
// ledger entries: uses add their cost, refunds subtract theirs.
func PartsCost(db *gorm.DB, repairID string) (decimal.Decimal, error) {
	var entries []models.LedgerEntry
	if err := db.Where("repair_id = ?", repairID).Find(&entries).Error; err != nil {
		return decimal.Zero, fmt.Errorf("repaircase: entries of %s: %w", repairID, err)
	}
	total := decimal.Zero
	for _, e := range entries {
		if e.QuantityDelta < 0 {
			total = total.Add(e.Cost)
		} else {
			total = total.Sub(e.Cost)
		}
	}
	return total, nil
}

// assertOpen fails with ErrCaseClosed on a sealed case.
func assertOpen(db *gorm.DB, repairID string) error {
	var rc models.RepairCase
	if err := db.Select("closed").Where("repair_id = ?", repairID).First(&rc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrCaseNotFound, repairID)
		}
		return fmt.Errorf("repaircase: check %s: %w", repairID, err)
	}
	if rc.Closed {
		return fmt.Errorf("%w: %s", ErrCaseClosed, repairID)
	}
	return nil
}
