package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
	"github.com/tbourn/autodesign-coordinator/internal/imposition"
	"github.com/tbourn/autodesign-coordinator/internal/http/middleware"
	"github.com/tbourn/autodesign-coordinator/internal/presence"
	"github.com/tbourn/autodesign-coordinator/internal/repo"
	"github.com/tbourn/autodesign-coordinator/internal/services"
)

// ---------- test DB + router ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), fmt.Sprintf("handlers_%d.db", time.Now().UnixNano()))
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
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// realDeps wires the handlers to real services over db.
func realDeps(db *gorm.DB) Deps {
	return Deps{
		Jobs:      services.NewJobService(db, time.Hour),
		Orders:    &services.OrderService{DB: db},
		Stores:    services.NewStoreService(db, storeRepo{}, nil),
		Templates: &services.TemplateService{DB: db},
		Plans:     &services.PlanService{DB: db, Catalog: imposition.DefaultCatalog()},
		Presence:  presence.NewMemory(time.Minute),
	}
}

type storeRepo struct{}

func (storeRepo) CreateStore(ctx context.Context, db *gorm.DB, s *domain.Store) (*domain.Store, error) {
	return repo.CreateStore(ctx, db, s)
}

func (storeRepo) ListStores(ctx context.Context, db *gorm.DB) ([]domain.Store, error) {
	return repo.ListStores(ctx, db)
}

func (storeRepo) GetStore(ctx context.Context, db *gorm.DB, id string) (*domain.Store, error) {
	return repo.GetStore(ctx, db, id)
}

// mount registers every route without auth, mirroring the router's paths.
func mount(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())

	r.GET("/jobs", h.ListJobs)
	r.POST("/jobs/claim", h.ClaimJob)
	r.POST("/jobs/report", h.ReportJob)
	r.GET("/stores", h.ListStores)
	r.POST("/stores", h.CreateStore)
	r.POST("/stores/:id/sync", h.SyncStore)
	r.GET("/orders", h.ListOrders)
	r.POST("/orders/import", h.ImportOrders)
	r.GET("/orders/:id", h.GetOrder)
	r.POST("/orders/:id/complete", h.CompleteOrder)
	r.POST("/orders/:id/abandon", h.AbandonOrder)
	r.GET("/items/stale", h.ListStaleItems)
	r.PATCH("/items/:id", h.UpdateItem)
	r.POST("/items/:id/reset", h.ResetItem)
	r.POST("/items/:id/extract", h.RetryExtraction)
	r.GET("/templates", h.ListTemplates)
	r.PUT("/templates/:key", h.PutTemplate)
	r.DELETE("/templates/:key", h.DeleteTemplate)
	r.POST("/templates/:key/scan", h.ScanTemplate)
	r.GET("/sheets", h.ListSheets)
	r.POST("/plans", h.CreatePlan)
	r.GET("/agents", h.ListAgents)
	return r
}

func do(r http.Handler, method, path string, body any, hdr ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	if buf.Len() > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var er ErrorResponse
	decode(t, w, &er)
	return er.Code
}

// seedOrder creates a store, an order, and one item per status.
func seedOrder(t *testing.T, db *gorm.DB, number string, statuses ...domain.ItemStatus) (*domain.Order, []domain.OrderItem) {
	t.Helper()
	ctx := context.Background()
	st, err := repo.CreateStore(ctx, db, &domain.Store{Name: "S" + number, BaseURL: "https://s", ConsumerKey: "ck", ConsumerSecret: "cs"})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	o, err := repo.UpsertOrder(ctx, db, &domain.Order{StoreID: st.ID, ExternalNumber: number, CustomerName: "Jana", PlacedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("order: %v", err)
	}
	var items []domain.OrderItem
	for i, s := range statuses {
		it, _, err := repo.UpsertOrderItem(ctx, db, &domain.OrderItem{OrderID: o.ID, ExternalLineID: fmt.Sprint(i + 1), ProductName: "Card", Quantity: 1})
		if err != nil {
			t.Fatalf("item: %v", err)
		}
		if s != domain.ItemPending {
			if err := db.Model(&domain.OrderItem{}).Where("id = ?", it.ID).Update("status", s).Error; err != nil {
				t.Fatalf("force status: %v", err)
			}
			it.Status = s
		}
		items = append(items, *it)
	}
	return o, items
}
