// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Store model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a store is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Functions:
//
//   - CreateStore(ctx, db, store) -> *domain.Store, error
//     Inserts a new Store row with UUID primary key and UTC timestamp.
//
//   - ListStores(ctx, db) -> []domain.Store, error
//     Returns all stores ordered by name.
//
//   - GetStore(ctx, db, id) -> *domain.Store, error
//     Fetches a single store by ID, or ErrNotFound if missing.
//
// Credentials arrive here already sealed; see services.StoreService.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateStore inserts s, assigning a UUID when s.ID is empty.
func CreateStore(ctx context.Context, db *gorm.DB, s *domain.Store) (*domain.Store, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// ListStores returns all stores ordered by name, then id.
func ListStores(ctx context.Context, db *gorm.DB) ([]domain.Store, error) {
	var out []domain.Store
	err := db.WithContext(ctx).
		Order("name ASC, id ASC").
		Find(&out).Error
	return out, err
}

// GetStore fetches a single store by its ID.
func GetStore(ctx context.Context, db *gorm.DB, id string) (*domain.Store, error) {
	var s domain.Store
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
