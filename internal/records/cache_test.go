package records

import (
	"context"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/freightops/go-freight-backend/internal/domain"
	"github.com/freightops/go-freight-backend/internal/repo"
)

func rec(kind domain.RecordKind, key, id string) domain.CachedRecord {
	return domain.CachedRecord{Kind: kind, BusinessKey: key, BackendID: id}
}

func TestCache_UpsertRemoveSnapshot(t *testing.T) {
	c := NewCache()
	if c.Len() != 0 {
		t.Fatalf("new cache not empty")
	}

	c.Upsert(rec(domain.KindBilling, "B-1", "id1"))
	c.Upsert(rec(domain.KindChallanBook, "CH-1", "id2"))
	// Same backend ID overwrites, it does not add.
	c.Upsert(rec(domain.KindBilling, "B-1-EDITED", "id1"))
	// Missing backend ID is ignored.
	c.Upsert(rec(domain.KindBilling, "B-X", ""))

	if c.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", c.Len())
	}
	keys := map[string]string{}
	for _, r := range c.Snapshot() {
		keys[r.BackendID] = r.BusinessKey
	}
	if keys["id1"] != "B-1-EDITED" {
		t.Fatalf("upsert did not overwrite: %v", keys)
	}

	c.Remove("id2")
	if c.Len() != 1 {
		t.Fatalf("remove failed, len=%d", c.Len())
	}
}

func TestCache_ReplaceDropsStale(t *testing.T) {
	c := NewCache()
	c.Upsert(rec(domain.KindBilling, "B-1", "stale"))
	c.Replace([]domain.CachedRecord{
		rec(domain.KindChallanBook, "CH-9", "fresh"),
	})
	snap := c.Snapshot()
	if len(snap) != 1 || snap[0].BackendID != "fresh" {
		t.Fatalf("replace left stale state: %+v", snap)
	}
}

func TestWarm_LoadsAllKinds(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.ConsignmentNote{}, &domain.Challan{}, &domain.Bill{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	ctx := context.Background()
	if _, err := repo.CreateConsignment(ctx, db, &domain.ConsignmentNote{
		Kind: domain.ConsignmentKindBooking, LRNumber: "LR-1",
		Consignor: "A", Consignee: "B", FromStation: "X", ToStation: "Y",
	}); err != nil {
		t.Fatalf("seed consignment: %v", err)
	}
	if _, err := repo.CreateChallan(ctx, db, &domain.Challan{
		ChallanNumber: "CH-1", VehicleNumber: "MH12AB1234", DriverName: "D",
	}); err != nil {
		t.Fatalf("seed challan: %v", err)
	}
	if _, err := repo.CreateBill(ctx, db, &domain.Bill{
		BillNumber: "B-1", Party: "P", Amount: 100,
	}); err != nil {
		t.Fatalf("seed bill: %v", err)
	}

	c := NewCache()
	if err := Warm(ctx, db, c); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("expected 3 warmed records, got %d", c.Len())
	}
}
