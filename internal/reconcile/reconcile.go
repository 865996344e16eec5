// Package reconcile cross-checks the derived columns against the
// append-only ledger and history. Drift is reported, never silently
// repaired.
package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/zulandar/motorlot/internal/models"
	"github.com/zulandar/motorlot/internal/repaircase"
	"gorm.io/gorm"
)

// ConservationAnomaly is a part whose on-hand count disagrees with its
// ledger. Expected is initial stock plus the sum of all deltas.
type ConservationAnomaly struct {
	PartNumber   string
	InitialStock int
	DeltaSum     int
	Expected     int
	OnHand       int
}

// RefundAnomaly is a repair whose refunds for a part exceed what that
// repair ever used. Refunds are unconditional at write time, so excess
// only shows up here.
type RefundAnomaly struct {
	PartNumber string
	RepairID   string
	Used       int
	Refunded   int
}

// DriftAnomaly is a closed repair case whose stored total no longer
// matches the total recomputed from its ledger entries and labor.
type DriftAnomaly struct {
	RepairID   string
	Stored     decimal.Decimal
	Recomputed decimal.Decimal
}

// Report is the outcome of one reconciliation pass.
type Report struct {
	Conservation []ConservationAnomaly
	Refunds      []RefundAnomaly
	Drift        []DriftAnomaly
}

// Empty reports whether the pass found nothing to flag.
func (r *Report) Empty() bool {
	return len(r.Conservation) == 0 && len(r.Refunds) == 0 && len(r.Drift) == 0
}

// Summaries renders one line per anomaly, suitable for notification.
func (r *Report) Summaries() []string {
	var out []string
	for _, a := range r.Conservation {
		out = append(out, fmt.Sprintf("part %s: on hand %d, ledger says %d (initial %d, deltas %+d)",
			a.PartNumber, a.OnHand, a.Expected, a.InitialStock, a.DeltaSum))
	}
	for _, a := range r.Refunds {
		out = append(out, fmt.Sprintf("repair %s: refunded %d × %s but only used %d",
			a.RepairID, a.Refunded, a.PartNumber, a.Used))
	}
	for _, a := range r.Drift {
		out = append(out, fmt.Sprintf("repair %s: stored total %s, recomputed %s",
			a.RepairID, a.Stored.StringFixed(2), a.Recomputed.StringFixed(2)))
	}
	return out
}

// Run executes all three checks in one pass. laborRate is the rate to
// recompute closed-case totals with.
func Run(db *gorm.DB, laborRate decimal.Decimal) (*Report, error) {
	report := &Report{}

	if err := checkConservation(db, report); err != nil {
		return nil, err
	}
	if err := checkRefunds(db, report); err != nil {
		return nil, err
	}
	if err := checkDrift(db, laborRate, report); err != nil {
		return nil, err
	}
	return report, nil
}

func checkConservation(db *gorm.DB, report *Report) error {
	var parts []models.Part
	if err := db.Find(&parts).Error; err != nil {
		return fmt.Errorf("reconcile: load parts: %w", err)
	}
	for _, p := range parts {
		var deltaSum int
		row := db.Model(&models.LedgerEntry{}).
			Where("part_number = ?", p.PartNumber).
			Select("COALESCE(SUM(quantity_delta), 0)").
			Row()
		if err := row.Scan(&deltaSum); err != nil {
			return fmt.Errorf("reconcile: sum deltas for %s: %w", p.PartNumber, err)
		}
		expected := p.InitialStock + deltaSum
		if expected != p.QuantityOnHand {
			report.Conservation = append(report.Conservation, ConservationAnomaly{
				PartNumber:   p.PartNumber,
				InitialStock: p.InitialStock,
				DeltaSum:     deltaSum,
				Expected:     expected,
				OnHand:       p.QuantityOnHand,
			})
		}
	}
	return nil
}

func checkRefunds(db *gorm.DB, report *Report) error {
	type pairSum struct {
		PartNumber string
		RepairID   string
		Used       int
		Refunded   int
	}
	var sums []pairSum
	err := db.Model(&models.LedgerEntry{}).
		Select(`part_number,
			repair_id,
			COALESCE(SUM(CASE WHEN quantity_delta < 0 THEN -quantity_delta ELSE 0 END), 0) AS used,
			COALESCE(SUM(CASE WHEN quantity_delta > 0 THEN quantity_delta ELSE 0 END), 0) AS refunded`).
		Where("repair_id <> ''").
		Group("part_number, repair_id").
		Scan(&sums).Error
	if err != nil {
		return fmt.Errorf("reconcile: refund audit: %w", err)
	}
	for _, s := range sums {
		if s.Refunded > s.Used {
			report.Refunds = append(report.Refunds, RefundAnomaly{
				PartNumber: s.PartNumber,
				RepairID:   s.RepairID,
				Used:       s.Used,
				Refunded:   s.Refunded,
			})
		}
	}
	return nil
}

func checkDrift(db *gorm.DB, laborRate decimal.Decimal, report *Report) error {
	var cases []models.RepairCase
	if err := db.Where("closed = ?", true).Find(&cases).Error; err != nil {
		return fmt.Errorf("reconcile: load closed cases: %w", err)
	}
	for _, rc := range cases {
		partsCost, err := repaircase.PartsCost(db, rc.RepairID)
		if err != nil {
			return err
		}
		recomputed := partsCost.Add(rc.LaborHours.Mul(laborRate))
		if !recomputed.Equal(rc.TotalCost) {
			report.Drift = append(report.Drift, DriftAnomaly{
				RepairID:   rc.RepairID,
				Stored:     rc.TotalCost,
				Recomputed: recomputed,
			})
		}
	}
	return nil
}
