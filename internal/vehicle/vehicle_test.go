package vehicle

import (
	"errors"
	"testing"

	"github.com/zulandar/motorlot/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testVIN = "1HGBH41JXMN109186"

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.Vehicle{}, &models.TransitionHistory{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedVehicle(t *testing.T, db *gorm.DB) *models.Vehicle {
	t.Helper()
	v, err := Create(db, CreateOpts{
		VIN:   testVIN,
		Model: "M3",
		Brand: "BMW",
		Year:  2021,
		Color: "black",
	})
	if err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}
	return v
}

func TestCreate_Defaults(t *testing.T) {
	db := openTestDB(t)
	v := seedVehicle(t, db)

	if v.Status != StatusInStock {
		t.Errorf("Status = %q, want in_stock", v.Status)
	}
	if v.GarageStatus != GarageStored {
		t.Errorf("GarageStatus = %q, want stored", v.GarageStatus)
	}
	if v.WorkTypeStage != StageInDiagnosis {
		t.Errorf("WorkTypeStage = %q, want in_diagnosis", v.WorkTypeStage)
	}
}

func TestCreate_Validation(t *testing.T) {
	db := openTestDB(t)

	tests := []struct {
		name string
		opts CreateOpts
	}{
		{"short vin", CreateOpts{VIN: "ABC123", Model: "M3", Brand: "BMW"}},
		{"missing model", CreateOpts{VIN: testVIN, Brand: "BMW"}},
		{"missing brand", CreateOpts{VIN: testVIN, Model: "M3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Create(db, tt.opts); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestCreate_NormalizesVIN(t *testing.T) {
	db := openTestDB(t)
	v, err := Create(db, CreateOpts{VIN: " 1hgbh41jxmn109186 ", Model: "M3", Brand: "BMW"})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if v.VIN != testVIN {
		t.Errorf("VIN = %q, want %q", v.VIN, testVIN)
	}
}

func TestGet_NotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := Get(db, "00000000000000000")
	if !errors.Is(err, ErrVehicleNotFound) {
		t.Errorf("error = %v, want ErrVehicleNotFound", err)
	}
}

func TestIsValidGarageTransition(t *testing.T) {
	tests := []struct {
		from string
		to   string
		want bool
	}{
		// Chain forward and back
		{GarageStored, GarageInRepair, true},
		{GarageInRepair, GarageStored, true},
		{GarageInRepair, GarageAwaitingParts, true},
		{GarageAwaitingParts, GarageInRepair, true},
		{GarageAwaitingParts, GarageReadyForPickup, true},
		{GarageReadyForPickup, GarageAwaitingParts, true},
		{GarageInRepair, GarageReadyForPickup, true},
		{GarageReadyForPickup, GarageCompleted, true},

		// Any → in_repair, except completed
		{GarageReadyForPickup, GarageInRepair, true},
		{GarageCompleted, GarageInRepair, false},

		// Completed is terminal
		{GarageCompleted, GarageStored, false},
		{GarageCompleted, GarageReadyForPickup, false},

		// Skips
		{GarageStored, GarageReadyForPickup, false},
		{GarageStored, GarageCompleted, false},
		{GarageInRepair, GarageCompleted, false},

		// Self-loops
		{GarageInRepair, GarageInRepair, false},

		// Unknown status
		{"parked", GarageInRepair, true}, // any → in_repair
		{"parked", GarageStored, false},
	}
	for _, tt := range tests {
		if got := isValidGarageTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("isValidGarageTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStageIndex(t *testing.T) {
	for i, stage := range WorkTypeOrder {
		if got := stageIndex(stage); got != i {
			t.Errorf("stageIndex(%q) = %d, want %d", stage, got, i)
		}
	}
	if got := stageIndex("detailing"); got != -1 {
		t.Errorf("stageIndex(unknown) = %d, want -1", got)
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{StatusInStock, "in stock"},
		{GarageReadyForPickup, "ready for pickup"},
		{StageInQualityCheck, "in quality check"},
		{StageReady, "ready"},
	}
	for _, tt := range tests {
		if got := Label(tt.in); got != tt.want {
			t.Errorf("Label(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestArchive_RequiresSoldAndDelivered(t *testing.T) {
	db := openTestDB(t)
	seedVehicle(t, db)

	if err := Archive(db, testVIN); err == nil {
		t.Error("expected error archiving an in-stock vehicle")
	}

	if err := db.Model(&models.Vehicle{}).Where("vin = ?", testVIN).Updates(map[string]interface{}{
		"status":          StatusSold,
		"work_type_stage": StageDelivered,
	}).Error; err != nil {
		t.Fatalf("force state: %v", err)
	}

	if err := Archive(db, testVIN); err != nil {
		t.Fatalf("Archive() error: %v", err)
	}
	v, err := Get(db, testVIN)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if !v.Archived {
		t.Error("Archived = false, want true")
	}
}
