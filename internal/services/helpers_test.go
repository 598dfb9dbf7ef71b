package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
	"github.com/tbourn/autodesign-coordinator/internal/repo"
)

func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := repo.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Logger = logger.Default.LogMode(logger.Silent)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func mustStore(t *testing.T, db *gorm.DB) *domain.Store {
	t.Helper()
	s, err := repo.CreateStore(context.Background(), db, &domain.Store{
		Name: "Shop", BaseURL: "https://shop.example", ConsumerKey: "ck", ConsumerSecret: "cs",
	})
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	return s
}

func mustOrder(t *testing.T, db *gorm.DB, storeID, number string) *domain.Order {
	t.Helper()
	o, err := repo.UpsertOrder(context.Background(), db, &domain.Order{
		StoreID: storeID, ExternalNumber: number, CustomerName: "Jana", PlacedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("upsert order: %v", err)
	}
	return o
}

// mustItem inserts an item and forces its status directly, bypassing the
// transition table, to set up a scenario.
func mustItem(t *testing.T, db *gorm.DB, orderID, line string, status domain.ItemStatus) *domain.OrderItem {
	t.Helper()
	it, _, err := repo.UpsertOrderItem(context.Background(), db, &domain.OrderItem{
		OrderID: orderID, ExternalLineID: line, ProductName: "Card " + line, Quantity: 1,
	})
	if err != nil {
		t.Fatalf("upsert item: %v", err)
	}
	if status != domain.ItemPending {
		if err := db.Model(&domain.OrderItem{}).Where("id = ?", it.ID).Update("status", status).Error; err != nil {
			t.Fatalf("force status: %v", err)
		}
		it.Status = status
	}
	return it
}

func itemStatus(t *testing.T, db *gorm.DB, id string) domain.ItemStatus {
	t.Helper()
	it, err := repo.GetItem(context.Background(), db, id)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	return it.Status
}

func strp(s string) *string { return &s }
