// Command server runs the AutoDesign coordinator: the HTTP API that ingests
// storefront orders, hands render work to worker agents, and plans sheets.
//
//	@title						AutoDesign Coordinator API
//	@version					1.0
//	@description				Print-production coordinator: order ingestion, the worker claim/report protocol, templates, and sheet planning.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Shared worker token: "Bearer {token}"
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/autodesign-coordinator/internal/config"
	"github.com/tbourn/autodesign-coordinator/internal/extract"
	httpapi "github.com/tbourn/autodesign-coordinator/internal/http"
	"github.com/tbourn/autodesign-coordinator/internal/imposition"
	"github.com/tbourn/autodesign-coordinator/internal/observability"
	"github.com/tbourn/autodesign-coordinator/internal/presence"
	"github.com/tbourn/autodesign-coordinator/internal/repo"
	"github.com/tbourn/autodesign-coordinator/internal/secrets"
	"github.com/tbourn/autodesign-coordinator/internal/services"
	"github.com/tbourn/autodesign-coordinator/internal/storefront"
	"github.com/tbourn/autodesign-coordinator/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		sysutil.SetupLogger(nil, "info", false, "server")
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.SetupLogger(nil, cfg.LogLevel, cfg.LogPretty, "server")
	if envErr != nil {
		log.Debug().Msg(".env file not found, relying on environment")
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTEL, observability.RoleServer, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath, repo.WithTracing())
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	if n, err := repo.PurgeExpiredIdempotency(ctx, db, time.Now().UTC()); err != nil {
		log.Warn().Err(err).Msg("purge idempotency records")
	} else if n > 0 {
		log.Info().Int64("removed", n).Msg("purged expired idempotency records")
	}

	box, err := secrets.NewBox(cfg.CredentialsKey)
	if err != nil {
		log.Fatal().Err(err).Msg("credentials key")
	}

	catalog, err := imposition.LoadCatalog(cfg.SheetsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.SheetsFile).Msg("load sheet catalog")
	}

	var tracker presence.Tracker = presence.NewMemory(cfg.PresenceTTL)
	if cfg.RedisURL != "" {
		r, err := presence.NewRedis(ctx, cfg.RedisURL, cfg.PresenceTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect redis")
		}
		tracker = r
	}

	// A nil extractor sends every new item down the degraded path.
	var extractor services.Extractor
	if cfg.Extractor.APIKey != "" {
		extractor = extract.New(cfg.Extractor.APIKey, cfg.Extractor.BaseURL, cfg.Extractor.Model, cfg.Extractor.Timeout)
	} else {
		log.Warn().Msg("OPENAI_API_KEY not set; field extraction disabled")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:         db,
		Storefront: storefront.New(cfg.Storefront.Timeout, cfg.Storefront.PageSize),
		Extractor:  extractor,
		Secrets:    box,
		Catalog:    catalog,
		Presence:   tracker,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Str("sheets", sheetNames(catalog)).Msg("coordinator listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped unexpectedly")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func sheetNames(c imposition.Catalog) string {
	names := make([]string, 0, len(c.Sheets))
	for _, s := range c.Sheets {
		names = append(names, s.Name)
	}
	return strings.Join(names, ",")
}
