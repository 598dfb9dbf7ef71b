// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// TemplateConfig model.
package repo

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
)

// TemplatePatch carries scan results written with a template status change.
type TemplatePatch struct {
	MasterFile *string
	Assets     []string
	ScanError  *string
}

// UpsertTemplate creates t or updates the operator-owned columns of an
// existing template with the same key. Status and scan results are kept.
func UpsertTemplate(ctx context.Context, db *gorm.DB, t *domain.TemplateConfig) (*domain.TemplateConfig, error) {
	now := time.Now().UTC()
	row := *t
	if row.Status == "" {
		row.Status = domain.TemplateNew
	}
	if row.Assets == nil {
		row.Assets = datatypes.JSONSlice[string]{}
	}
	if row.Mapping == nil {
		row.Mapping = datatypes.JSONMap{}
	}
	row.CreatedAt, row.UpdatedAt = now, now

	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"alias", "folder_path", "mapping", "trim_width_mm", "trim_height_mm", "updated_at",
			}),
		}).
		Create(&row).Error
	if err != nil {
		return nil, err
	}
	return GetTemplate(ctx, db, row.Key)
}

// GetTemplate fetches a template by key.
func GetTemplate(ctx context.Context, db *gorm.DB, key string) (*domain.TemplateConfig, error) {
	var t domain.TemplateConfig
	if err := db.WithContext(ctx).Where("key = ?", key).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTemplates returns all templates ordered by key.
func ListTemplates(ctx context.Context, db *gorm.DB) ([]domain.TemplateConfig, error) {
	var out []domain.TemplateConfig
	err := db.WithContext(ctx).Order("key ASC").Find(&out).Error
	return out, err
}

// ListTemplatesByStatus returns templates in status, ordered by key.
func ListTemplatesByStatus(ctx context.Context, db *gorm.DB, status domain.TemplateStatus) ([]domain.TemplateConfig, error) {
	var out []domain.TemplateConfig
	err := db.WithContext(ctx).Where("status = ?", status).Order("key ASC").Find(&out).Error
	return out, err
}

// GetTemplatesByKeys loads the templates named in keys, indexed by key.
func GetTemplatesByKeys(ctx context.Context, db *gorm.DB, keys []string) (map[string]domain.TemplateConfig, error) {
	out := make(map[string]domain.TemplateConfig, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	var rows []domain.TemplateConfig
	if err := db.WithContext(ctx).Where("key IN ?", keys).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, t := range rows {
		out[t.Key] = t
	}
	return out, nil
}

// TransitionTemplate moves a template from -> to with a conditional UPDATE
// and reports whether the row moved. An illegal edge is an error; a template
// that is simply not in from returns (false, nil).
func TransitionTemplate(ctx context.Context, db *gorm.DB, key string, from, to domain.TemplateStatus, patch TemplatePatch) (bool, error) {
	if !domain.CanTransitionTemplate(from, to) {
		return false, fmt.Errorf("%w: template %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	u := map[string]any{"status": to, "updated_at": time.Now().UTC()}
	if patch.MasterFile != nil {
		u["master_file"] = *patch.MasterFile
	}
	if patch.Assets != nil {
		u["assets"] = datatypes.JSONSlice[string](patch.Assets)
	}
	if patch.ScanError != nil {
		u["scan_error"] = *patch.ScanError
	} else if to == domain.TemplateReady || to == domain.TemplateScanning {
		u["scan_error"] = nil
	}
	res := db.WithContext(ctx).
		Model(&domain.TemplateConfig{}).
		Where("key = ? AND status = ?", key, from).
		Updates(u)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteTemplate removes a template. Items referencing its key keep the
// now-orphaned key.
func DeleteTemplate(ctx context.Context, db *gorm.DB, key string) error {
	res := db.WithContext(ctx).Where("key = ?", key).Delete(&domain.TemplateConfig{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
