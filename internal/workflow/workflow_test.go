package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/zulandar/motorlot/internal/history"
	"github.com/zulandar/motorlot/internal/identity"
	"github.com/zulandar/motorlot/internal/ledger"
	"github.com/zulandar/motorlot/internal/models"
	"github.com/zulandar/motorlot/internal/notify"
	"github.com/zulandar/motorlot/internal/repaircase"
	"github.com/zulandar/motorlot/internal/vehicle"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testVIN = "1HGBH41JXMN109186"

var testUser = identity.User{ID: "u-7", Name: "Dana", Role: "technician"}

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
	if err := db.AutoMigrate(&models.Part{}, &models.LedgerEntry{}, &models.Vehicle{}, &models.RepairCase{}, &models.RepairStep{}, &models.TransitionHistory{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// recorder captures every event it is asked to deliver.
type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Notify(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *gorm.DB, *recorder) {
	t.Helper()
	db := openTestDB(t)
	rec := &recorder{}
	o := New(db, Opts{
		Notifier:  rec,
		LaborRate: decimal.RequireFromString("80.00"),
	})
	return o, db, rec
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

func seedVehicle(t *testing.T, db *gorm.DB) {
	t.Helper()
	_, err := vehicle.Create(db, vehicle.CreateOpts{
		VIN:   testVIN,
		Model: "Model 3",
		Brand: "Tesla",
		Year:  2021,
	})
	if err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}
}

func TestUsePart_AttributesUserAndNotifies(t *testing.T) {
	o, db, rec := newTestOrchestrator(t)
	seedPart(t, db, "BRK-100", 5, "50.00")

	entry, err := o.UsePart(context.Background(), "BRK-100", 2, ledger.OpContext{}, testUser)
	if err != nil {
		t.Fatalf("UsePart: %v", err)
	}
	if entry.Technician != "Dana" {
		t.Errorf("Technician = %q, want Dana", entry.Technician)
	}
	if got := rec.kinds(); len(got) != 1 || got[0] != notify.KindPartUse {
		t.Errorf("events = %v, want [%s]", got, notify.KindPartUse)
	}
}

func TestUsePart_DomainErrorNotRetriedOrNotified(t *testing.T) {
	o, db, rec := newTestOrchestrator(t)
	seedPart(t, db, "BRK-100", 1, "50.00")

	_, err := o.UsePart(context.Background(), "BRK-100", 3, ledger.OpContext{}, testUser)
	if !errors.Is(err, ledger.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	if got := rec.kinds(); len(got) != 0 {
		t.Errorf("events = %v, want none", got)
	}
}

func TestSellVehicle_RequiresPrice(t *testing.T) {
	o, db, _ := newTestOrchestrator(t)
	seedVehicle(t, db)

	_, err := o.SellVehicle(context.Background(), testVIN, vehicle.Fields{
		ClientName:  "Ana",
		ClientPhone: "555-0101",
	}, testUser)
	if !errors.Is(err, vehicle.ErrMissingSellingPrice) {
		t.Fatalf("err = %v, want ErrMissingSellingPrice", err)
	}
}

func TestSellVehicle_Notifies(t *testing.T) {
	o, db, rec := newTestOrchestrator(t)
	seedVehicle(t, db)

	entry, err := o.SellVehicle(context.Background(), testVIN, vehicle.Fields{
		ClientName:   "Ana",
		ClientPhone:  "555-0101",
		SellingPrice: decimal.RequireFromString("24000.00"),
	}, testUser)
	if err != nil {
		t.Fatalf("SellVehicle: %v", err)
	}
	if entry.ToState != vehicle.StatusSold {
		t.Errorf("ToState = %q, want sold", entry.ToState)
	}
	if got := rec.kinds(); len(got) != 1 || got[0] != notify.KindTransition {
		t.Errorf("events = %v, want [%s]", got, notify.KindTransition)
	}
}

func TestCancelReservation_ClearsClient(t *testing.T) {
	o, db, _ := newTestOrchestrator(t)
	seedVehicle(t, db)
	ctx := context.Background()

	if _, err := o.ReserveVehicle(ctx, testVIN, vehicle.Fields{
		ClientName:  "Ana",
		ClientPhone: "555-0101",
	}, testUser); err != nil {
		t.Fatalf("ReserveVehicle: %v", err)
	}
	if _, err := o.CancelReservation(ctx, testVIN, testUser); err != nil {
		t.Fatalf("CancelReservation: %v", err)
	}

	v, err := vehicle.Get(db, testVIN)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.Status != vehicle.StatusInStock {
		t.Errorf("Status = %q, want in_stock", v.Status)
	}
	if v.ClientName != "" || v.ClientPhone != "" {
		t.Errorf("client fields = %q/%q, want cleared", v.ClientName, v.ClientPhone)
	}
}

func TestMarkReadyForPickup_ConsumesPartsAndTransitions(t *testing.T) {
	o, db, rec := newTestOrchestrator(t)
	seedVehicle(t, db)
	seedPart(t, db, "BRK-100", 10, "50.00")
	seedPart(t, db, "FLT-200", 10, "12.50")
	ctx := context.Background()

	rc, err := repaircase.Open(db, repaircase.OpenOpts{VehicleVIN: testVIN, ClientName: "Ana", Technician: "Dana", IssueDescription: "brakes"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := o.TransitionVehicle(ctx, testVIN, vehicle.AxisGarage, vehicle.GarageInRepair, vehicle.Fields{}, testUser); err != nil {
		t.Fatalf("to in_repair: %v", err)
	}

	entry, err := o.MarkReadyForPickup(ctx, testVIN, rc.RepairID, []PartUse{
		{PartNumber: "BRK-100", Quantity: 2},
		{PartNumber: "FLT-200", Quantity: 1},
	}, testUser)
	if err != nil {
		t.Fatalf("MarkReadyForPickup: %v", err)
	}
	// 2×50.00 + 1×12.50
	if want := "112.50"; entry.PartsCost.StringFixed(2) != want {
		t.Errorf("PartsCost = %s, want %s", entry.PartsCost, want)
	}

	v, err := vehicle.Get(db, testVIN)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.GarageStatus != vehicle.GarageReadyForPickup {
		t.Errorf("GarageStatus = %q, want ready_for_pickup", v.GarageStatus)
	}

	p, err := ledger.FindPart(db, "BRK-100")
	if err != nil {
		t.Fatalf("FindPart: %v", err)
	}
	if p.QuantityOnHand != 8 {
		t.Errorf("QuantityOnHand = %d, want 8", p.QuantityOnHand)
	}
	kinds := rec.kinds()
	if len(kinds) == 0 || kinds[len(kinds)-1] != notify.KindTransition {
		t.Errorf("events = %v, want transition last", kinds)
	}
}

func TestMarkReadyForPickup_RollsBackOnShortStock(t *testing.T) {
	o, db, _ := newTestOrchestrator(t)
	seedVehicle(t, db)
	seedPart(t, db, "BRK-100", 10, "50.00")
	seedPart(t, db, "FLT-200", 0, "12.50")
	ctx := context.Background()

	rc, err := repaircase.Open(db, repaircase.OpenOpts{VehicleVIN: testVIN, ClientName: "Ana", Technician: "Dana", IssueDescription: "brakes"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := o.TransitionVehicle(ctx, testVIN, vehicle.AxisGarage, vehicle.GarageInRepair, vehicle.Fields{}, testUser); err != nil {
		t.Fatalf("to in_repair: %v", err)
	}

	_, err = o.MarkReadyForPickup(ctx, testVIN, rc.RepairID, []PartUse{
		{PartNumber: "BRK-100", Quantity: 2},
		{PartNumber: "FLT-200", Quantity: 1},
	}, testUser)
	if !errors.Is(err, ledger.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}

	// The first use must have rolled back with the rest.
	p, err := ledger.FindPart(db, "BRK-100")
	if err != nil {
		t.Fatalf("FindPart: %v", err)
	}
	if p.QuantityOnHand != 10 {
		t.Errorf("QuantityOnHand = %d, want 10", p.QuantityOnHand)
	}
	var entries int64
	if err := db.Model(&models.LedgerEntry{}).Count(&entries).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if entries != 0 {
		t.Errorf("ledger entries = %d, want 0", entries)
	}
	v, err := vehicle.Get(db, testVIN)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v.GarageStatus != vehicle.GarageInRepair {
		t.Errorf("GarageStatus = %q, want in_repair", v.GarageStatus)
	}
}

func TestMarkReadyForPickup_HoldsPartLocksUntilResolved(t *testing.T) {
	o, db, _ := newTestOrchestrator(t)
	seedVehicle(t, db)
	seedPart(t, db, "BRK-100", 10, "50.00")
	ctx := context.Background()

	rc, err := repaircase.Open(db, repaircase.OpenOpts{VehicleVIN: testVIN, ClientName: "Ana", Technician: "Dana", IssueDescription: "brakes"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := o.TransitionVehicle(ctx, testVIN, vehicle.AxisGarage, vehicle.GarageInRepair, vehicle.Fields{}, testUser); err != nil {
		t.Fatalf("to in_repair: %v", err)
	}

	// Pre-locking the VIN freezes the pickup after it has taken its
	// part locks but before its transaction can run.
	o.vinLocks.Lock(testVIN)

	pickupDone := make(chan error, 1)
	go func() {
		_, err := o.MarkReadyForPickup(ctx, testVIN, rc.RepairID, []PartUse{{PartNumber: "BRK-100", Quantity: 2}}, testUser)
		pickupDone <- err
	}()
	time.Sleep(50 * time.Millisecond)

	// While the pickup is in flight, the part lock must stay held: a
	// racing Use that got it here would read stock the pickup has not
	// yet committed.
	contender := make(chan struct{})
	go func() {
		o.partLocks.Lock("BRK-100")
		o.partLocks.Unlock("BRK-100")
		close(contender)
	}()
	select {
	case <-contender:
		t.Fatal("part lock acquired while the pickup was still in flight")
	case <-time.After(100 * time.Millisecond):
	}

	o.vinLocks.Unlock(testVIN)
	if err := <-pickupDone; err != nil {
		t.Fatalf("MarkReadyForPickup: %v", err)
	}
	select {
	case <-contender:
	case <-time.After(time.Second):
		t.Fatal("part lock never released after the pickup resolved")
	}
}

func TestUsePart_StorageErrorWrapped(t *testing.T) {
	db := openTestDB(t)
	rec := &recorder{}
	o := New(db, Opts{Notifier: rec, StorageRetries: 1})
	seedPart(t, db, "BRK-100", 5, "50.00")

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.Close()

	_, err = o.UsePart(context.Background(), "BRK-100", 1, ledger.OpContext{}, testUser)
	if !errors.Is(err, history.ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
	if got := rec.kinds(); len(got) != 0 {
		t.Errorf("events = %v, want none", got)
	}
}

func TestCloseRepair_DefaultsLaborRate(t *testing.T) {
	o, db, rec := newTestOrchestrator(t)
	seedVehicle(t, db)

	rc, err := repaircase.Open(db, repaircase.OpenOpts{VehicleVIN: testVIN, ClientName: "Ana", Technician: "Dana", IssueDescription: "brakes"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	closed, err := o.CloseRepair(context.Background(), rc.RepairID, repaircase.CloseOpts{
		SolutionDescription: "pads replaced",
		LaborHours:          decimal.RequireFromString("1.5"),
	})
	if err != nil {
		t.Fatalf("CloseRepair: %v", err)
	}
	// 1.5h at the orchestrator's 80.00 rate, no parts.
	if want := "120.00"; closed.TotalCost.StringFixed(2) != want {
		t.Errorf("TotalCost = %s, want %s", closed.TotalCost, want)
	}
	if got := rec.kinds(); len(got) != 1 || got[0] != notify.KindRepairClosed {
		t.Errorf("events = %v, want [%s]", got, notify.KindRepairClosed)
	}
}

func TestAnnotateVehicle_AppendsAuditEntry(t *testing.T) {
	o, db, _ := newTestOrchestrator(t)
	seedVehicle(t, db)

	if err := o.AnnotateVehicle(testVIN, "price corrected after data entry error", testUser); err != nil {
		t.Fatalf("AnnotateVehicle: %v", err)
	}

	entries, err := o.GetVehicleHistory(testVIN)
	if err != nil {
		t.Fatalf("GetVehicleHistory: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Axis != "audit" || entries[0].ChangedBy != "Dana" {
		t.Errorf("entry = %+v, want audit axis by Dana", entries[0])
	}
}

func TestAnnotateVehicle_UnknownVIN(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	err := o.AnnotateVehicle("5YJ3E1EA7KF000000", "note", testUser)
	if !errors.Is(err, vehicle.ErrVehicleNotFound) {
		t.Fatalf("err = %v, want ErrVehicleNotFound", err)
	}
}
