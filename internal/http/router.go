// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, worker authentication, idempotency,
// and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Every API route requires the shared worker token
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/autodesign-coordinator/docs"
	"github.com/tbourn/autodesign-coordinator/internal/config"
	"github.com/tbourn/autodesign-coordinator/internal/domain"
	"github.com/tbourn/autodesign-coordinator/internal/http/handlers"
	"github.com/tbourn/autodesign-coordinator/internal/http/middleware"
	"github.com/tbourn/autodesign-coordinator/internal/imposition"
	"github.com/tbourn/autodesign-coordinator/internal/presence"
	"github.com/tbourn/autodesign-coordinator/internal/repo"
	"github.com/tbourn/autodesign-coordinator/internal/services"
)

// Deps are the long-lived collaborators the router builds services from.
// Storefront, Extractor, and Secrets may be nil.
type Deps struct {
	DB         *gorm.DB
	Storefront services.Storefront
	Extractor  services.Extractor
	Secrets    services.Sealer
	Catalog    imposition.Catalog
	Presence   presence.Tracker
}

// storeRepoShim adapts the repository free functions to the
// services.StoreRepo interface expected by the StoreService.
type storeRepoShim struct{}

// CreateStore proxies repo.CreateStore.
func (storeRepoShim) CreateStore(ctx context.Context, db *gorm.DB, s *domain.Store) (*domain.Store, error) {
	return repo.CreateStore(ctx, db, s)
}

// ListStores proxies repo.ListStores.
func (storeRepoShim) ListStores(ctx context.Context, db *gorm.DB) ([]domain.Store, error) {
	return repo.ListStores(ctx, db)
}

// GetStore proxies repo.GetStore.
func (storeRepoShim) GetStore(ctx context.Context, db *gorm.DB, id string) (*domain.Store, error) {
	return repo.GetStore(ctx, db, id)
}

// idempotencyStore persists replayable responses in the idempotency table.
type idempotencyStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// Lookup returns the stored response or nil when none is valid.
func (s idempotencyStore) Lookup(ctx context.Context, agentID, scope, key string, now time.Time) (*middleware.StoredResponse, error) {
	rec, err := repo.GetIdempotency(ctx, s.db, agentID, scope, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &middleware.StoredResponse{Status: rec.Status, Body: rec.Body}, nil
}

// Save stores a response. A concurrent duplicate keeps the first one.
func (s idempotencyStore) Save(ctx context.Context, agentID, scope, key string, status int, body []byte) error {
	_, err := repo.CreateIdempotency(ctx, s.db, agentID, scope, key, status, body, s.ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with credential scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Compression
//  8. CORS and Security headers
//
// API group only:
//  9. Bearer auth (also records worker presence)
//  10. Idempotency on claim/report (before the limiter so replays bypass it)
//  11. Rate limiter (per agent/IP, bypass on replay)
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Gzip large JSON bodies (order lists, plans)
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/swagger"})))

	// 8) CORS posture (safe defaults: allow all if none configured)
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderAgentID, middleware.HeaderIdempotencyKey},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", middleware.HeaderIdempotentReplay},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      true,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) {
		if sqlDB, err := d.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/collaborators
	if d.Presence == nil {
		d.Presence = presence.NewMemory(cfg.PresenceTTL)
	}
	orderSvc := &services.OrderService{
		DB:         d.DB,
		Storefront: d.Storefront,
		Extractor:  d.Extractor,
		Secrets:    d.Secrets,
		Threshold:  cfg.Threshold,
	}
	h := handlers.New(handlers.Deps{
		Jobs:      services.NewJobService(d.DB, cfg.StaleAfter),
		Orders:    orderSvc,
		Stores:    services.NewStoreService(d.DB, storeRepoShim{}, d.Secrets),
		Templates: &services.TemplateService{DB: d.DB},
		Plans:     &services.PlanService{DB: d.DB, Catalog: d.Catalog},
		Presence:  d.Presence,
	})

	idem := idempotencyStore{db: d.DB, ttl: cfg.IdempotencyTTL}
	idemOpts := middleware.IdempotencyOptions{MaxLen: 200}
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByAgentOrIP())

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath) // e.g. "/api/v1"
	api.Use(middleware.BearerAuth(cfg.AgentToken, d.Presence))
	{
		// Worker protocol
		api.GET("/jobs", rl.Handler(), h.ListJobs)
		api.POST("/jobs/claim", middleware.Idempotency(idemOpts, idem, "claim"), rl.Handler(), h.ClaimJob)
		api.POST("/jobs/report", middleware.Idempotency(idemOpts, idem, "report"), rl.Handler(), h.ReportJob)

		// Operator surface
		ops := api.Group("", rl.Handler())
		ops.GET("/stores", h.ListStores)
		ops.POST("/stores", h.CreateStore)
		ops.POST("/stores/:id/sync", h.SyncStore)

		ops.GET("/orders", h.ListOrders)
		ops.POST("/orders/import", h.ImportOrders)
		ops.GET("/orders/:id", h.GetOrder)
		ops.POST("/orders/:id/complete", h.CompleteOrder)
		ops.POST("/orders/:id/abandon", h.AbandonOrder)

		ops.GET("/items/stale", h.ListStaleItems)
		ops.PATCH("/items/:id", h.UpdateItem)
		ops.POST("/items/:id/reset", h.ResetItem)
		ops.POST("/items/:id/extract", h.RetryExtraction)

		ops.GET("/templates", h.ListTemplates)
		ops.PUT("/templates/:key", h.PutTemplate)
		ops.DELETE("/templates/:key", h.DeleteTemplate)
		ops.POST("/templates/:key/scan", h.ScanTemplate)

		ops.GET("/sheets", h.ListSheets)
		ops.POST("/plans", h.CreatePlan)
		ops.GET("/agents", h.ListAgents)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
