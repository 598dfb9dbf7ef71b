package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/autodesign-coordinator/internal/repo"
	"github.com/tbourn/autodesign-coordinator/internal/storefront"
)

// ImportResult summarizes one CSV import. Rows that carry no usable order
// are listed in Skipped; a product export only counts its rows in Products.
type ImportResult struct {
	SyncResult
	Rows     int      `json:"rows"`
	Products int      `json:"products"`
	Skipped  []string `json:"skipped,omitempty"`
}

// ImportCSV ingests a storefront CSV export for an existing store. Orders go
// through the same upserts, template matching and extraction as SyncStore,
// so importing a file twice updates rows instead of duplicating them.
func (s *OrderService) ImportCSV(ctx context.Context, storeID string, r io.Reader, opt storefront.CSVOptions) (*ImportResult, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "ImportCSV",
		trace.WithAttributes(attribute.String("store.id", storeID)),
	)
	defer span.End()

	store, err := repo.GetStore(ctx, s.DB, storeID)
	if err != nil {
		return nil, mapRepoErr(err, "store", storeID)
	}
	export, err := storefront.ParseCSVExport(r, opt)
	if err != nil {
		if errors.Is(err, storefront.ErrCSV) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, err
	}

	templates, err := repo.ListTemplates(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	matcher := NewTemplateMatcher(templates, s.Threshold)

	now := time.Now().UTC()
	for i := range export.Orders {
		if export.Orders[i].PlacedAt.IsZero() {
			export.Orders[i].PlacedAt = now
		}
	}

	res := &ImportResult{
		SyncResult: SyncResult{Orders: len(export.Orders)},
		Rows:       export.Rows,
		Products:   export.Products,
		Skipped:    export.Skipped,
	}
	errs := s.ingestAll(ctx, store.ID, export.Orders, matcher, &res.SyncResult)

	span.SetAttributes(
		attribute.Int("rows", res.Rows),
		attribute.Int("orders", res.Orders),
		attribute.Int("orders_failed", res.Failed),
	)
	ev := log.Ctx(ctx).Info()
	if errs != nil {
		ev = log.Ctx(ctx).Warn().Err(errs)
	}
	ev.Str("store_id", storeID).
		Int("rows", res.Rows).
		Int("orders", res.Orders).
		Int("created", res.Created).
		Int("degraded", res.Degraded).
		Int("skipped", len(res.Skipped)).
		Msg("csv imported")
	return res, nil
}
