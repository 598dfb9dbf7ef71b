// Package handlers wiring.
//
// Handlers are transport-thin: they bind and validate input, call the
// application services through the interfaces below, and translate results
// into HTTP responses (including conditional 304s on the order list).
package handlers

import (
	"context"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
	"github.com/tbourn/autodesign-coordinator/internal/imposition"
	"github.com/tbourn/autodesign-coordinator/internal/jobs"
	"github.com/tbourn/autodesign-coordinator/internal/presence"
	"github.com/tbourn/autodesign-coordinator/internal/services"
	"github.com/tbourn/autodesign-coordinator/internal/storefront"
	"github.com/tbourn/autodesign-coordinator/internal/utils"
)

//
// Service contracts (context-aware)
//

// JobService is the claim/report protocol plus the operator recovery paths.
type JobService interface {
	ListClaimableWork(ctx context.Context) ([]jobs.Descriptor, error)
	Claim(ctx context.Context, orderID string) (*domain.Order, error)
	Report(ctx context.Context, req jobs.ReportRequest) (int64, error)
	ListStale(ctx context.Context, olderThan time.Duration) ([]domain.OrderItem, error)
	Abandon(ctx context.Context, orderID, detail string) (int64, error)
	ResetItem(ctx context.Context, itemID string) (*domain.OrderItem, error)
}

// OrderService covers order listing, closing, ingestion, and item edits.
type OrderService interface {
	List(ctx context.Context, f services.OrderFilter) ([]services.OrderView, int64, error)
	ETag(ctx context.Context, storeID string) (string, error)
	Get(ctx context.Context, id string) (*services.OrderView, error)
	Close(ctx context.Context, id string) (*services.OrderView, error)
	SyncStore(ctx context.Context, storeID string) (*services.SyncResult, error)
	ImportCSV(ctx context.Context, storeID string, r io.Reader, opt storefront.CSVOptions) (*services.ImportResult, error)
	RetryExtraction(ctx context.Context, itemID string) (*domain.OrderItem, error)
	UpdateItem(ctx context.Context, itemID string, u services.ItemUpdate) (*domain.OrderItem, error)
}

// StoreService registers and lists storefronts.
type StoreService interface {
	Create(ctx context.Context, in services.StoreInput) (*domain.Store, error)
	List(ctx context.Context) ([]domain.Store, error)
}

// TemplateService manages template configurations.
type TemplateService interface {
	List(ctx context.Context) ([]domain.TemplateConfig, error)
	Upsert(ctx context.Context, key string, in services.TemplateInput) (*domain.TemplateConfig, error)
	TriggerScan(ctx context.Context, key string) (*domain.TemplateConfig, error)
	Delete(ctx context.Context, key string) error
}

// PlanService computes print plans.
type PlanService interface {
	Sheets() []imposition.Sheet
	Plan(ctx context.Context, sheetName string, orderIDs []string) (*services.PlanView, error)
}

//
// Handler wiring
//

// Deps bundles the services the handlers depend on.
type Deps struct {
	Jobs      JobService
	Orders    OrderService
	Stores    StoreService
	Templates TemplateService
	Plans     PlanService
	Presence  presence.Tracker
}

// Handlers groups every HTTP endpoint of the coordinator.
type Handlers struct {
	jobSvc   JobService
	orderSvc OrderService
	storeSvc StoreService
	tplSvc   TemplateService
	planSvc  PlanService
	presence presence.Tracker
}

// New constructs Handlers bound to the given services.
func New(d Deps) *Handlers {
	return &Handlers{
		jobSvc:   d.Jobs,
		orderSvc: d.Orders,
		storeSvc: d.Stores,
		tplSvc:   d.Templates,
		planSvc:  d.Plans,
		presence: d.Presence,
	}
}

//
// Shared DTOs and helpers
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.ClampInt(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}
