// Package services – ingestion
//
// SyncStore pulls open orders from a storefront and writes them through the
// natural-key upserts, so re-running a sync updates rows instead of
// duplicating them. Each new or still-PENDING line item is matched to a
// template and sent to the extractor. A failed extraction is not an error:
// the item keeps a degraded field map (the whole source text under
// BODY_FULL) and stays PENDING for the operator.
//
// One failing order does not stop its siblings; failures are aggregated
// with multierr and reported in the SyncResult.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"gorm.io/datatypes"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
	"github.com/tbourn/autodesign-coordinator/internal/extract"
	"github.com/tbourn/autodesign-coordinator/internal/observability"
	"github.com/tbourn/autodesign-coordinator/internal/repo"
	"github.com/tbourn/autodesign-coordinator/internal/storefront"
)

// SyncResult summarizes one storefront sync.
type SyncResult struct {
	Orders   int      `json:"orders"`
	Created  int      `json:"items_created"`
	Updated  int      `json:"items_updated"`
	Ready    int      `json:"items_ready"`
	Degraded int      `json:"items_degraded"`
	Failed   int      `json:"orders_failed"`
	Errors   []string `json:"errors,omitempty"`
}

// internalMetaKeys are storefront plugin bookkeeping entries that carry no
// customer input.
var internalMetaKeys = map[string]struct{}{
	"gtm4wp_product_data": {},
	"tcaddtocart":         {},
	"item_meta":           {},
}

// BuildSourceText renders the extraction input for one line item: the
// customer note, the product name, and every customer-facing option as
// "key: value" lines. Keys starting with '_' are plugin internals and are
// skipped.
func BuildSourceText(note string, li storefront.RawLineItem) string {
	var b strings.Builder
	if n := strings.TrimSpace(note); n != "" {
		b.WriteString("Note: ")
		b.WriteString(n)
		b.WriteByte('\n')
	}
	b.WriteString("Product: ")
	b.WriteString(strings.TrimSpace(li.Name))
	for _, m := range li.Meta {
		k, v := strings.TrimSpace(m.Key), strings.TrimSpace(m.Value)
		if k == "" || v == "" || strings.HasPrefix(k, "_") {
			continue
		}
		if _, skip := internalMetaKeys[k]; skip {
			continue
		}
		b.WriteByte('\n')
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
	}
	return b.String()
}

// SyncStore fetches the store's open orders and ingests them. A storefront
// failure fails the whole sync with ErrUpstreamUnavailable; per-order
// failures are counted and listed in the result.
func (s *OrderService) SyncStore(ctx context.Context, storeID string) (*SyncResult, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "SyncStore",
		trace.WithAttributes(attribute.String("store.id", storeID)),
	)
	defer span.End()

	store, err := repo.GetStore(ctx, s.DB, storeID)
	if err != nil {
		return nil, mapRepoErr(err, "store", storeID)
	}
	if s.Storefront == nil {
		return nil, fmt.Errorf("%w: no storefront client configured", ErrUpstreamUnavailable)
	}
	creds, err := s.credentials(store)
	if err != nil {
		return nil, fmt.Errorf("store %s credentials: %w", storeID, err)
	}
	raw, err := s.Storefront.FetchOrders(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch orders: %v", ErrUpstreamUnavailable, err)
	}

	templates, err := repo.ListTemplates(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	matcher := NewTemplateMatcher(templates, s.Threshold)

	res := &SyncResult{Orders: len(raw)}
	errs := s.ingestAll(ctx, store.ID, raw, matcher, res)

	span.SetAttributes(
		attribute.Int("orders", res.Orders),
		attribute.Int("orders_failed", res.Failed),
	)
	ev := log.Ctx(ctx).Info()
	if errs != nil {
		ev = log.Ctx(ctx).Warn().Err(errs)
	}
	ev.Str("store_id", storeID).
		Int("orders", res.Orders).
		Int("created", res.Created).
		Int("ready", res.Ready).
		Int("degraded", res.Degraded).
		Int("failed", res.Failed).
		Msg("store synced")
	return res, nil
}

// ingestAll ingests every order, counting and collecting per-order failures
// in res. The combined error is returned for logging only.
func (s *OrderService) ingestAll(ctx context.Context, storeID string, raw []storefront.RawOrder, m *TemplateMatcher, res *SyncResult) error {
	var errs error
	for _, ro := range raw {
		if err := s.ingestOrder(ctx, storeID, ro, m, res); err != nil {
			res.Failed++
			observability.Ingested.WithLabelValues("failed").Inc()
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", ro.Number, err))
		}
	}
	for _, e := range multierr.Errors(errs) {
		res.Errors = append(res.Errors, e.Error())
	}
	return errs
}

func (s *OrderService) ingestOrder(ctx context.Context, storeID string, ro storefront.RawOrder, m *TemplateMatcher, res *SyncResult) error {
	if strings.TrimSpace(ro.Number) == "" {
		return invalid("order without a number")
	}
	o, err := repo.UpsertOrder(ctx, s.DB, &domain.Order{
		StoreID:        storeID,
		ExternalNumber: ro.Number,
		CustomerName:   ro.CustomerName,
		PlacedAt:       ro.PlacedAt,
	})
	if err != nil {
		return err
	}

	var errs error
	for _, li := range ro.LineItems {
		it, created, err := repo.UpsertOrderItem(ctx, s.DB, &domain.OrderItem{
			OrderID:        o.ID,
			ExternalLineID: li.ID,
			ProductName:    li.Name,
			TemplateKey:    m.Match(li.Name),
			SourceText:     BuildSourceText(ro.Note, li),
			Quantity:       li.Quantity,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("line %s: %w", li.ID, err))
			continue
		}
		if created {
			res.Created++
			observability.Ingested.WithLabelValues("created").Inc()
		} else {
			res.Updated++
			observability.Ingested.WithLabelValues("updated").Inc()
		}

		// Items past PENDING, and PENDING items the operator already
		// edited, keep their fields.
		if it.Status != domain.ItemPending || (!created && !it.ExtractionDegraded && it.Fields != nil) {
			continue
		}
		ready, err := s.extractItem(ctx, it)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("line %s: %w", li.ID, err))
			continue
		}
		if ready {
			res.Ready++
		} else {
			res.Degraded++
			observability.Ingested.WithLabelValues("degraded").Inc()
		}
	}
	return errs
}

// extractItem runs extraction for a PENDING item. On success the item moves
// to AI_READY with the extracted fields; on failure it keeps the degraded
// map and stays PENDING. The bool reports which happened. Only database
// errors are returned.
func (s *OrderService) extractItem(ctx context.Context, it *domain.OrderItem) (bool, error) {
	fields, xerr := s.extract(ctx, it)
	if xerr != nil {
		log.Ctx(ctx).Warn().Err(xerr).Str("item_id", it.ID).Msg("extraction degraded")
		return false, repo.UpdateItemFields(ctx, s.DB, it.ID, toJSONMap(extract.Degraded(it.SourceText)), true)
	}

	degraded := false
	if _, err := repo.TransitionItem(ctx, s.DB, it.ID, domain.ItemAIReady, repo.ItemPatch{
		Fields:   toJSONMap(fields),
		Degraded: &degraded,
	}); err != nil {
		return false, err
	}
	observability.CountTransition(string(domain.ItemPending), string(domain.ItemAIReady), 1)
	return true, nil
}

func (s *OrderService) extract(ctx context.Context, it *domain.OrderItem) (map[string]string, error) {
	if s.Extractor == nil {
		return nil, extract.ErrNotConfigured
	}
	key := ""
	if it.TemplateKey != nil {
		key = *it.TemplateKey
	}
	return s.Extractor.ExtractFields(ctx, it.SourceText, key)
}

// RetryExtraction re-runs extraction for a PENDING item. Unlike sync, a
// failed extraction here is reported as ErrUpstreamUnavailable.
func (s *OrderService) RetryExtraction(ctx context.Context, itemID string) (*domain.OrderItem, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "RetryExtraction",
		trace.WithAttributes(attribute.String("item.id", itemID)),
	)
	defer span.End()

	it, err := repo.GetItem(ctx, s.DB, itemID)
	if err != nil {
		return nil, mapRepoErr(err, "item", itemID)
	}
	if it.Status != domain.ItemPending {
		return nil, &domain.TransitionError{From: it.Status, To: domain.ItemAIReady, Reason: "only PENDING items are re-extracted"}
	}

	fields, err := s.extract(ctx, it)
	if err != nil {
		return nil, fmt.Errorf("%w: extraction: %v", ErrUpstreamUnavailable, err)
	}
	degraded := false
	out, err := repo.TransitionItem(ctx, s.DB, itemID, domain.ItemAIReady, repo.ItemPatch{
		Fields:   toJSONMap(fields),
		Degraded: &degraded,
	})
	if err != nil {
		return nil, err
	}
	observability.CountTransition(string(domain.ItemPending), string(domain.ItemAIReady), 1)
	return out, nil
}

// ItemUpdate is an operator edit of one item. Nil members are left alone.
type ItemUpdate struct {
	Fields       map[string]string
	Approve      bool
	TrimWidthMM  *float64
	TrimHeightMM *float64
}

// UpdateItem applies an operator edit. Fields and trim size can only change
// while the item is PENDING, AI_READY, or ERROR. Approve advances a PENDING
// item to AI_READY and is a no-op in any other state.
func (s *OrderService) UpdateItem(ctx context.Context, itemID string, u ItemUpdate) (*domain.OrderItem, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "UpdateItem",
		trace.WithAttributes(
			attribute.String("item.id", itemID),
			attribute.Bool("approve", u.Approve),
		),
	)
	defer span.End()

	if (u.TrimWidthMM == nil) != (u.TrimHeightMM == nil) {
		return nil, invalid("trim width and height must be set together")
	}
	if u.TrimWidthMM != nil && (*u.TrimWidthMM <= 0 || *u.TrimHeightMM <= 0) {
		return nil, invalid("trim size must be positive")
	}

	it, err := repo.GetItem(ctx, s.DB, itemID)
	if err != nil {
		return nil, mapRepoErr(err, "item", itemID)
	}
	switch it.Status {
	case domain.ItemGenerating, domain.ItemDone:
		if u.Fields != nil || u.TrimWidthMM != nil {
			return nil, &domain.TransitionError{From: it.Status, To: it.Status, Reason: "item is locked while " + string(it.Status)}
		}
	}

	if u.TrimWidthMM != nil {
		if err := repo.SetItemTrim(ctx, s.DB, itemID, *u.TrimWidthMM, *u.TrimHeightMM); err != nil {
			return nil, mapRepoErr(err, "item", itemID)
		}
	}

	if u.Approve && it.Status == domain.ItemPending {
		patch := repo.ItemPatch{}
		if u.Fields != nil {
			degraded := false
			patch.Fields, patch.Degraded = toJSONMap(u.Fields), &degraded
		}
		out, err := repo.TransitionItem(ctx, s.DB, itemID, domain.ItemAIReady, patch)
		if err != nil {
			return nil, err
		}
		observability.CountTransition(string(domain.ItemPending), string(domain.ItemAIReady), 1)
		return out, nil
	}

	if u.Fields != nil {
		if err := repo.UpdateItemFields(ctx, s.DB, itemID, toJSONMap(u.Fields), false); err != nil {
			return nil, mapRepoErr(err, "item", itemID)
		}
	}
	out, err := repo.GetItem(ctx, s.DB, itemID)
	return out, mapRepoErr(err, "item", itemID)
}

func toJSONMap(m map[string]string) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
