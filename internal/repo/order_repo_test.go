package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
)

// newRepoDB opens a temp-file database through OpenSQLite (so FK pragmas are
// on for every pooled connection) and migrates the full schema.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), fmt.Sprintf("repo_test_%d.db", time.Now().UnixNano()))
	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)

	// Ensure the file handle is released before TempDir cleanup (Windows needs this).
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedStore(t *testing.T, db *gorm.DB, id string) *domain.Store {
	t.Helper()
	s, err := CreateStore(context.Background(), db, &domain.Store{ID: id, Name: "Shop " + id, BaseURL: "https://" + id, ConsumerKey: "ck", ConsumerSecret: "sealed"})
	if err != nil {
		t.Fatalf("CreateStore: %v", err)
	}
	return s
}

func seedOrder(t *testing.T, db *gorm.DB, storeID, number string) *domain.Order {
	t.Helper()
	o, err := UpsertOrder(context.Background(), db, &domain.Order{StoreID: storeID, ExternalNumber: number, CustomerName: "C " + number, PlacedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("UpsertOrder: %v", err)
	}
	return o
}

func TestUpsertOrder_ReingestUpdatesSingleRow(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedStore(t, db, "s1")

	first, err := UpsertOrder(ctx, db, &domain.Order{StoreID: "s1", ExternalNumber: "1001", CustomerName: "Jana"})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := UpsertOrder(ctx, db, &domain.Order{StoreID: "s1", ExternalNumber: "1001", CustomerName: "Jana Nováková"})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("re-ingest changed id: %s vs %s", first.ID, second.ID)
	}

	var count int64
	if err := db.Model(&domain.Order{}).Where("store_id = ? AND external_number = ?", "s1", "1001").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one order row, got %d", count)
	}
	if second.CustomerName != "Jana Nováková" {
		t.Fatalf("customer name not updated: %q", second.CustomerName)
	}

	// Same external number in another store is a different order.
	seedStore(t, db, "s2")
	other, err := UpsertOrder(ctx, db, &domain.Order{StoreID: "s2", ExternalNumber: "1001"})
	if err != nil || other.ID == first.ID {
		t.Fatalf("expected distinct order for other store, got %+v err=%v", other, err)
	}
}

func TestUpsertOrder_UnknownStore_FKError(t *testing.T) {
	db := newRepoDB(t)
	if _, err := UpsertOrder(context.Background(), db, &domain.Order{StoreID: "nope", ExternalNumber: "1"}); err == nil {
		t.Fatalf("expected FK violation for unknown store")
	}
}

func TestGetOrder_WithItemsAndNotFound(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedStore(t, db, "s1")
	o := seedOrder(t, db, "s1", "7")
	for _, line := range []string{"L1", "L2"} {
		if _, _, err := UpsertOrderItem(ctx, db, &domain.OrderItem{OrderID: o.ID, ExternalLineID: line, Status: domain.ItemAIReady}); err != nil {
			t.Fatalf("UpsertOrderItem: %v", err)
		}
	}

	got, err := GetOrder(ctx, db, o.ID, true)
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if len(got.Items) != 2 {
		t.Fatalf("expected 2 preloaded items, got %d", len(got.Items))
	}
	if _, err := GetOrder(ctx, db, "missing", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCloseOrder_IdempotentAndNotFound(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedStore(t, db, "s1")
	o := seedOrder(t, db, "s1", "9")

	changed, err := CloseOrder(ctx, db, o.ID, time.Now().UTC())
	if err != nil || !changed {
		t.Fatalf("first close: changed=%v err=%v", changed, err)
	}
	changed, err = CloseOrder(ctx, db, o.ID, time.Now().UTC())
	if err != nil || changed {
		t.Fatalf("second close should be a no-op: changed=%v err=%v", changed, err)
	}
	if _, err := CloseOrder(ctx, db, "missing", time.Now().UTC()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkOrderClaimedAndPreview(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedStore(t, db, "s1")
	o := seedOrder(t, db, "s1", "11")

	at := time.Now().UTC()
	if err := MarkOrderClaimed(ctx, db, o.ID, at); err != nil {
		t.Fatalf("MarkOrderClaimed: %v", err)
	}
	if err := SetOrderPreview(ctx, db, o.ID, "/out/11/preview.jpg"); err != nil {
		t.Fatalf("SetOrderPreview: %v", err)
	}
	got, _ := GetOrder(ctx, db, o.ID, false)
	if got.ClaimedAt == nil || got.PreviewRef == nil || *got.PreviewRef != "/out/11/preview.jpg" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if err := MarkOrderClaimed(ctx, db, "missing", at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreDelete_RestrictedByOrders(t *testing.T) {
	db := newRepoDB(t)
	seedStore(t, db, "s1")
	seedOrder(t, db, "s1", "1")
	if err := db.Delete(&domain.Store{}, "id = ?", "s1").Error; err == nil {
		t.Fatalf("expected store delete to fail while orders reference it")
	}
	stores, err := ListStores(context.Background(), db)
	if err != nil || len(stores) != 1 {
		t.Fatalf("ListStores: %v %d", err, len(stores))
	}
}

func TestListOrdersPage_FilterOrderAndWindow(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	seedStore(t, db, "s1")
	seedStore(t, db, "s2")
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	for i, st := range []string{"s1", "s1", "s2", "s1"} {
		if _, err := UpsertOrder(ctx, db, &domain.Order{StoreID: st, ExternalNumber: fmt.Sprint(i), PlacedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	all, err := ListOrdersPage(ctx, db, "", 0, 10)
	if err != nil || len(all) != 4 {
		t.Fatalf("all: %v %d", err, len(all))
	}
	if all[0].ExternalNumber != "3" || all[3].ExternalNumber != "0" {
		t.Fatalf("expected newest first, got %s..%s", all[0].ExternalNumber, all[3].ExternalNumber)
	}

	page, err := ListOrdersPage(ctx, db, "s1", 1, 1)
	if err != nil || len(page) != 1 || page[0].ExternalNumber != "1" {
		t.Fatalf("s1 page 2: %v %+v", err, page)
	}
	if rest, _ := ListOrdersPage(ctx, db, "s1", 3, 10); len(rest) != 0 {
		t.Fatalf("offset past the end should be empty, got %d", len(rest))
	}

	if n, err := CountOrders(ctx, db, "s1"); err != nil || n != 3 {
		t.Fatalf("CountOrders(s1) = %d, %v", n, err)
	}
	if n, _ := CountOrders(ctx, db, ""); n != 4 {
		t.Fatalf("CountOrders() = %d", n)
	}
}
