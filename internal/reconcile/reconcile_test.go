package reconcile

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/zulandar/motorlot/internal/keylock"
	"github.com/zulandar/motorlot/internal/ledger"
	"github.com/zulandar/motorlot/internal/models"
	"github.com/zulandar/motorlot/internal/notify"
	"github.com/zulandar/motorlot/internal/repaircase"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var laborRate = decimal.RequireFromString("80.00")

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Part{}, &models.LedgerEntry{}, &models.RepairCase{}, &models.RepairStep{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedPart(t *testing.T, db *gorm.DB, pn string, stock int, price string) {
	t.Helper()
	_, err := ledger.CreatePart(db, ledger.CreateOpts{
		PartNumber:   pn,
		PartName:     "part " + pn,
		InitialStock: stock,
		UnitPrice:    decimal.RequireFromString(price),
	})
	if err != nil {
		t.Fatalf("seed part %s: %v", pn, err)
	}
}

func TestRun_CleanPass(t *testing.T) {
	db := openTestDB(t)
	locks := keylock.New()
	seedPart(t, db, "BRK-100", 10, "50.00")

	if _, err := ledger.Use(db, locks, "BRK-100", 3, ledger.OpContext{}); err != nil {
		t.Fatalf("Use: %v", err)
	}
	if _, err := ledger.Refund(db, locks, "BRK-100", 1, ledger.OpContext{}); err != nil {
		t.Fatalf("Refund: %v", err)
	}

	report, err := Run(db, laborRate)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Empty() {
		t.Errorf("report not empty: %v", report.Summaries())
	}
}

func TestRun_ConservationAnomaly(t *testing.T) {
	db := openTestDB(t)
	locks := keylock.New()
	seedPart(t, db, "BRK-100", 10, "50.00")

	if _, err := ledger.Use(db, locks, "BRK-100", 3, ledger.OpContext{}); err != nil {
		t.Fatalf("Use: %v", err)
	}
	// Corrupt the derived count behind the ledger's back.
	if err := db.Model(&models.Part{}).Where("part_number = ?", "BRK-100").
		Update("quantity_on_hand", 9).Error; err != nil {
		t.Fatalf("tamper: %v", err)
	}

	report, err := Run(db, laborRate)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Conservation) != 1 {
		t.Fatalf("conservation anomalies = %d, want 1", len(report.Conservation))
	}
	a := report.Conservation[0]
	if a.PartNumber != "BRK-100" || a.Expected != 7 || a.OnHand != 9 {
		t.Errorf("anomaly = %+v, want expected 7 / on hand 9", a)
	}
}

func TestRun_RefundExceedsUse(t *testing.T) {
	db := openTestDB(t)
	locks := keylock.New()
	seedPart(t, db, "BRK-100", 10, "50.00")

	rc, err := repaircase.Open(db, repaircase.OpenOpts{VehicleVIN: "1HGBH41JXMN109186", ClientName: "Ana", Technician: "Dana", IssueDescription: "brakes"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	opctx := ledger.OpContext{Kind: ledger.KindRepair, RepairID: rc.RepairID}
	if _, err := ledger.Use(db, locks, "BRK-100", 1, opctx); err != nil {
		t.Fatalf("Use: %v", err)
	}
	opctx.Kind = ledger.KindRepairRefund
	if _, err := ledger.Refund(db, locks, "BRK-100", 3, opctx); err != nil {
		t.Fatalf("Refund: %v", err)
	}

	report, err := Run(db, laborRate)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Refunds) != 1 {
		t.Fatalf("refund anomalies = %d, want 1", len(report.Refunds))
	}
	a := report.Refunds[0]
	if a.RepairID != rc.RepairID || a.Used != 1 || a.Refunded != 3 {
		t.Errorf("anomaly = %+v, want used 1 / refunded 3", a)
	}
}

func TestRun_TotalsDrift(t *testing.T) {
	db := openTestDB(t)
	locks := keylock.New()
	seedPart(t, db, "BRK-100", 10, "50.00")

	rc, err := repaircase.Open(db, repaircase.OpenOpts{VehicleVIN: "1HGBH41JXMN109186", ClientName: "Ana", Technician: "Dana", IssueDescription: "brakes"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := ledger.Use(db, locks, "BRK-100", 2, ledger.OpContext{Kind: ledger.KindRepair, RepairID: rc.RepairID}); err != nil {
		t.Fatalf("Use: %v", err)
	}
	if _, err := repaircase.Close(db, rc.RepairID, repaircase.CloseOpts{
		SolutionDescription: "pads replaced",
		LaborHours:          decimal.RequireFromString("1.0"),
		LaborRate:           laborRate,
	}); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Tamper the stored total: 2×50.00 + 1.0×80.00 = 180.00.
	if err := db.Model(&models.RepairCase{}).Where("repair_id = ?", rc.RepairID).
		Update("total_cost", "500.00").Error; err != nil {
		t.Fatalf("tamper: %v", err)
	}

	report, err := Run(db, laborRate)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Drift) != 1 {
		t.Fatalf("drift anomalies = %d, want 1", len(report.Drift))
	}
	a := report.Drift[0]
	if a.Recomputed.StringFixed(2) != "180.00" {
		t.Errorf("recomputed = %s, want 180.00", a.Recomputed)
	}
}

func TestRunOnce_NotifiesAnomalies(t *testing.T) {
	db := openTestDB(t)
	seedPart(t, db, "BRK-100", 10, "50.00")
	if err := db.Model(&models.Part{}).Where("part_number = ?", "BRK-100").
		Update("quantity_on_hand", 4).Error; err != nil {
		t.Fatalf("tamper: %v", err)
	}

	var events []notify.Event
	s := NewScheduler(db, SchedulerOpts{
		LaborRate:       laborRate,
		Notifier:        notifierFunc(func(_ context.Context, ev notify.Event) error { events = append(events, ev); return nil }),
		Cron:            "0 6 * * *",
		NotifyAnomalies: true,
	})

	report := s.RunOnce(context.Background())
	if report == nil || report.Empty() {
		t.Fatal("expected anomalies")
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	if events[0].Kind != notify.KindReconcileAnomaly {
		t.Errorf("kind = %q, want %q", events[0].Kind, notify.KindReconcileAnomaly)
	}
}

type notifierFunc func(context.Context, notify.Event) error

func (f notifierFunc) Notify(ctx context.Context, ev notify.Event) error { return f(ctx, ev) }

func TestNextCronDuration(t *testing.T) {
	if d := nextCronDuration("* * * * *"); d <= 0 {
		t.Errorf("every-minute expression: duration = %v, want > 0", d)
	}
	if d := nextCronDuration("not a cron"); d != 0 {
		t.Errorf("bad expression: duration = %v, want 0", d)
	}
	if d := nextCronDuration(""); d != 0 {
		t.Errorf("empty expression: duration = %v, want 0", d)
	}
}
