// Package domain defines the persistence models for stores, orders, order
// items and template configurations. These types are mapped with GORM and
// form the state store of the print-production coordinator.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Store is a storefront connection (one print shop). It owns its orders and
// cannot be removed while any order references it.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Name: operator-facing display name.
//   - BaseURL: storefront root URL used by the sync collaborator.
//   - ConsumerKey / ConsumerSecret: storefront credential pair. The secret is
//     stored sealed; see internal/secrets.
//   - PluginKey: optional key for the storefront completion plugin.
type Store struct {
	ID             string    `json:"id"         gorm:"type:char(36);primaryKey"`
	Name           string    `json:"name"       gorm:"type:varchar(255);not null"`
	BaseURL        string    `json:"base_url"   gorm:"type:varchar(512);not null"`
	ConsumerKey    string    `json:"-"          gorm:"type:varchar(255);not null"`
	ConsumerSecret string    `json:"-"          gorm:"type:text;not null"`
	PluginKey      string    `json:"-"          gorm:"type:varchar(255)"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for Store.
func (Store) TableName() string { return "stores" }

// Order is one customer purchase from one store. The pair (StoreID,
// ExternalNumber) is unique so that re-ingesting the same storefront order
// updates the row instead of duplicating it.
//
// ClaimedAt is the order-level trigger flag written by a claim. Closed is the
// operator override that projects the order as COMPLETED regardless of item
// state.
type Order struct {
	ID             string     `json:"id"              gorm:"type:char(36);primaryKey"`
	StoreID        string     `json:"store_id"        gorm:"type:char(36);not null;uniqueIndex:ux_orders_store_external,priority:1"`
	ExternalNumber string     `json:"external_number" gorm:"type:varchar(64);not null;uniqueIndex:ux_orders_store_external,priority:2"`
	CustomerName   string     `json:"customer_name"   gorm:"type:varchar(255);not null;default:''"`
	PlacedAt       time.Time  `json:"placed_at"       gorm:"index"`
	PreviewRef     *string    `json:"preview_ref,omitempty"`
	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
	Closed         bool       `json:"closed"          gorm:"not null;default:false"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Items are the line items of this order (loaded on demand). The
	// constraint lives here because GORM folds the reverse belongs-to into it.
	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	// Store is the owning storefront. Deleting a store with orders is refused.
	Store Store `json:"-" gorm:"foreignKey:StoreID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// OrderItem is one line item within an order and the unit of rendering
// work. Its Status is only ever changed through the transition functions in
// the repo package, which validate edges against CanTransition.
//
// TemplateKey is a plain reference (no foreign key): deleting a template
// orphans the reference instead of cascading.
type OrderItem struct {
	ID                 string            `json:"id"                   gorm:"type:char(36);primaryKey"`
	OrderID            string            `json:"order_id"             gorm:"type:char(36);not null;index;uniqueIndex:ux_items_order_line,priority:1"`
	ExternalLineID     string            `json:"external_line_id"     gorm:"type:varchar(64);not null;uniqueIndex:ux_items_order_line,priority:2"`
	ProductName        string            `json:"product_name"         gorm:"type:varchar(512);not null;default:''"`
	TemplateKey        *string           `json:"template_key,omitempty" gorm:"type:varchar(128);index"`
	SourceText         string            `json:"source_text"          gorm:"type:text;not null;default:''"`
	Fields             datatypes.JSONMap `json:"fields,omitempty"`
	ExtractionDegraded bool              `json:"extraction_degraded"  gorm:"not null;default:false"`
	Quantity           int               `json:"quantity"             gorm:"not null;default:1"`
	Status             ItemStatus        `json:"status"               gorm:"type:varchar(16);not null;index;check:status IN ('PENDING','AI_READY','GENERATING','DONE','ERROR')"`
	StatusChangedAt    time.Time         `json:"status_changed_at"    gorm:"index"`
	RenderedRef        *string           `json:"rendered_ref,omitempty"`
	ErrorDetail        *string           `json:"error_detail,omitempty"`
	TrimWidthMM        *float64          `json:"trim_width_mm,omitempty"`
	TrimHeightMM       *float64          `json:"trim_height_mm,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`

	// Order is the owning order. Items are cascade-deleted with it.
	Order Order `json:"-" gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for OrderItem.
func (OrderItem) TableName() string { return "order_items" }

// FieldMap returns the extracted fields as plain strings. Non-string values
// are skipped.
func (i OrderItem) FieldMap() map[string]string {
	out := make(map[string]string, len(i.Fields))
	for k, v := range i.Fields {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// TemplateConfig is a named design asset family. Mapping translates
// extraction field names to design-tool layer names.
type TemplateConfig struct {
	Key          string                      `json:"key"                gorm:"type:varchar(128);primaryKey"`
	Alias        string                      `json:"alias"              gorm:"type:varchar(255);not null;default:''"`
	FolderPath   string                      `json:"folder_path"        gorm:"type:varchar(1024);not null;default:''"`
	MasterFile   string                      `json:"master_file"        gorm:"type:varchar(1024);not null;default:''"`
	Assets       datatypes.JSONSlice[string] `json:"assets"`
	Mapping      datatypes.JSONMap           `json:"mapping"`
	Status       TemplateStatus              `json:"status"             gorm:"type:varchar(16);not null;default:'NEW';index"`
	ScanError    *string                     `json:"scan_error,omitempty"`
	TrimWidthMM  float64                     `json:"trim_width_mm"      gorm:"not null;default:0"`
	TrimHeightMM float64                     `json:"trim_height_mm"     gorm:"not null;default:0"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

// TableName returns the database table name for TemplateConfig.
func (TemplateConfig) TableName() string { return "template_configs" }

// LayerFields translates an extracted field map into design layer names.
// Fields without a mapping keep their extraction name.
func (t TemplateConfig) LayerFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		layer := k
		if m, ok := t.Mapping[k].(string); ok && m != "" {
			layer = m
		}
		out[layer] = v
	}
	return out
}
