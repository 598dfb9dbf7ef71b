// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
)

// OrdersStats returns the number of orders (optionally for one store) and
// the latest UpdatedAt across those orders and their items. Item changes
// do not touch the parent order row, so both tables are consulted.
//
// Return values:
//   - count:        total orders in scope
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func OrdersStats(ctx context.Context, db *gorm.DB, storeID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Order{})
	if storeID != "" {
		q = q.Where("store_id = ?", storeID)
	}

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var orderRow, itemRow struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&orderRow).Error; err != nil {
		return 0, nil, err
	}
	iq := db.WithContext(ctx).Model(&domain.OrderItem{})
	if storeID != "" {
		iq = iq.Where("order_id IN (?)", db.Model(&domain.Order{}).Select("id").Where("store_id = ?", storeID))
	}
	if err = iq.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&itemRow).Error; err != nil {
		return 0, nil, err
	}

	latest := orderRow.UpdatedAt
	if itemRow.UpdatedAt.After(latest) {
		latest = itemRow.UpdatedAt
	}
	return count, &latest, nil
}
