// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Order model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
)

// UpsertOrder inserts o or, when (store_id, external_number) already exists,
// updates the customer name and placement date in the same statement. It
// returns the row as stored, so the ID is the existing one on conflict.
func UpsertOrder(ctx context.Context, db *gorm.DB, o *domain.Order) (*domain.Order, error) {
	now := time.Now().UTC()
	row := *o
	row.Items = nil
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	row.CreatedAt, row.UpdatedAt = now, now

	err := db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "store_id"}, {Name: "external_number"}},
			DoUpdates: clause.AssignmentColumns([]string{"customer_name", "placed_at", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return nil, err
	}
	return GetOrderByNumber(ctx, db, o.StoreID, o.ExternalNumber)
}

// GetOrderByNumber fetches an order by its natural key.
func GetOrderByNumber(ctx context.Context, db *gorm.DB, storeID, number string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).
		Where("store_id = ? AND external_number = ?", storeID, number).
		First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetOrder fetches an order by ID. withItems preloads its items ordered by
// creation time then id.
func GetOrder(ctx context.Context, db *gorm.DB, id string, withItems bool) (*domain.Order, error) {
	q := db.WithContext(ctx)
	if withItems {
		q = q.Preload("Items", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC, id ASC")
		})
	}
	var o domain.Order
	if err := q.Where("id = ?", id).First(&o).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

// CountOrders returns the number of orders, optionally for one store.
func CountOrders(ctx context.Context, db *gorm.DB, storeID string) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.Order{})
	if storeID != "" {
		q = q.Where("store_id = ?", storeID)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// ListOrdersPage returns one page of orders (optionally for one store) with
// their items preloaded, newest placement first. The order is total, so
// consecutive pages neither overlap nor skip rows. Use CountOrders for the
// pagination total.
func ListOrdersPage(ctx context.Context, db *gorm.DB, storeID string, offset, limit int) ([]domain.Order, error) {
	q := db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC, id ASC")
		}).
		Order("placed_at DESC, id ASC").
		Offset(offset).
		Limit(limit)
	if storeID != "" {
		q = q.Where("store_id = ?", storeID)
	}
	var out []domain.Order
	err := q.Find(&out).Error
	return out, err
}

// MarkOrderClaimed sets the order-level trigger timestamp.
func MarkOrderClaimed(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return updateOrder(ctx, db, id, map[string]any{"claimed_at": at, "updated_at": at})
}

// SetOrderPreview records the preview reference produced by a render.
func SetOrderPreview(ctx context.Context, db *gorm.DB, id, ref string) error {
	return updateOrder(ctx, db, id, map[string]any{"preview_ref": ref, "updated_at": time.Now().UTC()})
}

// CloseOrder applies the operator COMPLETED override. It reports whether the
// order changed; closing an already closed order is a no-op.
func CloseOrder(ctx context.Context, db *gorm.DB, id string, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND closed = ?", id, false).
		Updates(map[string]any{"closed": true, "closed_at": at, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	if _, err := GetOrder(ctx, db, id, false); err != nil {
		return false, err
	}
	return false, nil
}

func updateOrder(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
