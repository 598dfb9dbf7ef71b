// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the OrderItem
// model, including the status transition chokepoint.
//
// Every status change of an item goes through TransitionItem or
// TransitionOrderItems. Both validate the edge against domain.CanTransition
// and write with a conditional UPDATE guarded by the expected current
// status, so two concurrent writers cannot both move the same item.
//
// Functions:
//
//   - UpsertOrderItem(ctx, db, item) -> *domain.OrderItem, created bool, error
//     Inserts or refreshes an item by (order_id, external_line_id). Status
//     and extracted fields are never touched on conflict.
//
//   - TransitionItem(ctx, db, id, to, patch) -> *domain.OrderItem, error
//     Single-item edge with read, verify, conditional write.
//
//   - TransitionOrderItems(ctx, db, orderID, from, to, patch) -> int64, error
//     Set-wise edge for all items of one order in one statement.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
)

// ItemPatch carries the fields written together with a status change. Nil
// pointers leave the column untouched.
type ItemPatch struct {
	RenderedRef *string
	ErrorDetail *string
	Fields      datatypes.JSONMap
	Degraded    *bool
}

func (p ItemPatch) apply(to domain.ItemStatus, from domain.ItemStatus, now time.Time) map[string]any {
	u := map[string]any{
		"status":            to,
		"status_changed_at": now,
		"updated_at":        now,
	}
	if p.RenderedRef != nil {
		u["rendered_ref"] = *p.RenderedRef
	}
	if p.ErrorDetail != nil {
		u["error_detail"] = *p.ErrorDetail
	}
	if p.Fields != nil {
		u["fields"] = p.Fields
	}
	if p.Degraded != nil {
		u["extraction_degraded"] = *p.Degraded
	}
	switch {
	case from == domain.ItemError && to == domain.ItemAIReady:
		// Reset discards any partial output of the failed render.
		u["rendered_ref"] = nil
		u["error_detail"] = nil
	case to == domain.ItemDone:
		u["error_detail"] = nil
	}
	return u
}

// UpsertOrderItem inserts it or refreshes product name, source text, and
// quantity of the existing row with the same (order_id, external_line_id).
// A template key is only filled in when the stored one is still NULL. The
// returned flag is true when a new row was created.
func UpsertOrderItem(ctx context.Context, db *gorm.DB, it *domain.OrderItem) (*domain.OrderItem, bool, error) {
	now := time.Now().UTC()
	row := *it
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.Status == "" {
		row.Status = domain.ItemPending
	}
	if row.Quantity < 1 {
		row.Quantity = 1
	}
	row.CreatedAt, row.UpdatedAt, row.StatusChangedAt = now, now, now

	err := db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}, {Name: "external_line_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"product_name": gorm.Expr("excluded.product_name"),
				"source_text":  gorm.Expr("excluded.source_text"),
				"quantity":     gorm.Expr("excluded.quantity"),
				"template_key": gorm.Expr("COALESCE(order_items.template_key, excluded.template_key)"),
				"updated_at":   gorm.Expr("excluded.updated_at"),
			}),
		}).
		Create(&row).Error
	if err != nil {
		return nil, false, err
	}

	var got domain.OrderItem
	err = db.WithContext(ctx).
		Where("order_id = ? AND external_line_id = ?", row.OrderID, row.ExternalLineID).
		First(&got).Error
	if err != nil {
		return nil, false, err
	}
	return &got, got.ID == row.ID, nil
}

// GetItem fetches an item by ID.
func GetItem(ctx context.Context, db *gorm.DB, id string) (*domain.OrderItem, error) {
	var it domain.OrderItem
	if err := db.WithContext(ctx).Where("id = ?", id).First(&it).Error; err != nil {
		return nil, err
	}
	return &it, nil
}

// ListItemsByOrder returns the items of one order in creation order.
func ListItemsByOrder(ctx context.Context, db *gorm.DB, orderID string) ([]domain.OrderItem, error) {
	var out []domain.OrderItem
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListItemsByStatus returns every item in status, grouped by order.
func ListItemsByStatus(ctx context.Context, db *gorm.DB, status domain.ItemStatus) ([]domain.OrderItem, error) {
	var out []domain.OrderItem
	err := db.WithContext(ctx).
		Where("status = ?", status).
		Order("order_id ASC, created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListStaleItems returns GENERATING items whose last status change happened
// before cutoff, oldest first.
func ListStaleItems(ctx context.Context, db *gorm.DB, cutoff time.Time) ([]domain.OrderItem, error) {
	var out []domain.OrderItem
	err := db.WithContext(ctx).
		Where("status = ? AND status_changed_at < ?", domain.ItemGenerating, cutoff).
		Order("status_changed_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// ListDoneItems returns DONE items, optionally restricted to orderIDs, in
// deterministic order: order creation time, order id, item id.
func ListDoneItems(ctx context.Context, db *gorm.DB, orderIDs []string) ([]domain.OrderItem, error) {
	q := db.WithContext(ctx).
		Model(&domain.OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("order_items.status = ?", domain.ItemDone)
	if len(orderIDs) > 0 {
		q = q.Where("order_items.order_id IN ?", orderIDs)
	}
	var out []domain.OrderItem
	err := q.Order("orders.created_at ASC, orders.id ASC, order_items.id ASC").
		Find(&out).Error
	return out, err
}

// UpdateItemFields replaces the extracted field map of an item without
// touching its status.
func UpdateItemFields(ctx context.Context, db *gorm.DB, id string, fields datatypes.JSONMap, degraded bool) error {
	res := db.WithContext(ctx).
		Model(&domain.OrderItem{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"fields":              fields,
			"extraction_degraded": degraded,
			"updated_at":          time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetItemTrim stores a per-item trim size override in millimetres.
func SetItemTrim(ctx context.Context, db *gorm.DB, id string, width, height float64) error {
	res := db.WithContext(ctx).
		Model(&domain.OrderItem{}).
		Where("id = ?", id).
		Updates(map[string]any{"trim_width_mm": width, "trim_height_mm": height, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// TransitionItem moves one item to status to. It reads the current status,
// verifies the edge, and writes with WHERE status = <current>. A writer that
// lost a race gets a *domain.TransitionError and the row is left as the
// winner wrote it.
func TransitionItem(ctx context.Context, db *gorm.DB, id string, to domain.ItemStatus, patch ItemPatch) (*domain.OrderItem, error) {
	cur, err := GetItem(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if err := domain.CheckTransition(cur.Status, to); err != nil {
		return nil, err
	}

	res := db.WithContext(ctx).
		Model(&domain.OrderItem{}).
		Where("id = ? AND status = ?", id, cur.Status).
		Updates(patch.apply(to, cur.Status, time.Now().UTC()))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, &domain.TransitionError{From: cur.Status, To: to, Reason: "status changed concurrently"}
	}
	return GetItem(ctx, db, id)
}

// TransitionOrderItems moves every item of orderID currently in from to
// status to with one conditional UPDATE and returns how many rows moved.
// Zero is not an error here; callers decide what an empty set means.
func TransitionOrderItems(ctx context.Context, db *gorm.DB, orderID string, from, to domain.ItemStatus, patch ItemPatch) (int64, error) {
	if err := domain.CheckTransition(from, to); err != nil {
		return 0, err
	}
	res := db.WithContext(ctx).
		Model(&domain.OrderItem{}).
		Where("order_id = ? AND status = ?", orderID, from).
		Updates(patch.apply(to, from, time.Now().UTC()))
	return res.RowsAffected, res.Error
}

// CountItemsByStatus returns per-status item counts for one order.
func CountItemsByStatus(ctx context.Context, db *gorm.DB, orderID string) (map[domain.ItemStatus]int64, error) {
	var rows []struct {
		Status domain.ItemStatus
		N      int64
	}
	err := db.WithContext(ctx).
		Model(&domain.OrderItem{}).
		Select("status, COUNT(*) AS n").
		Where("order_id = ?", orderID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.ItemStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
