// Package services – OrderService
//
// This file implements the operator-facing order operations: listing with
// the projected display status, fetching one order with its items, and the
// COMPLETED override. Ingestion (storefront sync and extraction) lives in
// ingest.go on the same type.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
	"github.com/tbourn/autodesign-coordinator/internal/repo"
	"github.com/tbourn/autodesign-coordinator/internal/storefront"
)

// OrderService coordinates orders and their items.
type OrderService struct {
	DB         *gorm.DB
	Storefront Storefront
	Extractor  Extractor
	Secrets    Sealer

	// Threshold is the minimum template match score for ingestion.
	Threshold float64
}

// OrderView is an order with its derived display status.
type OrderView struct {
	domain.Order
	Status domain.OrderStatus `json:"status"`
}

func viewOf(o domain.Order) OrderView {
	return OrderView{Order: o, Status: domain.ProjectOrderStatus(o.Closed, o.Items)}
}

// OrderFilter narrows List. An empty Status matches every order.
type OrderFilter struct {
	StoreID  string
	Status   domain.OrderStatus
	Page     int
	PageSize int
}

// List returns one page of orders whose projected status matches the
// filter, newest placement first, plus the total number of matches.
func (s *OrderService) List(ctx context.Context, f OrderFilter) ([]OrderView, int64, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(
			attribute.String("store.id", f.StoreID),
			attribute.String("status", string(f.Status)),
			attribute.Int("page", f.Page),
			attribute.Int("page_size", f.PageSize),
		),
	)
	defer span.End()

	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = 20
	}

	start := (f.Page - 1) * f.PageSize
	if f.Status == "" {
		total, err := repo.CountOrders(ctx, s.DB, f.StoreID)
		if err != nil {
			return nil, 0, err
		}
		if int64(start) >= total {
			return []OrderView{}, total, nil
		}
		orders, err := repo.ListOrdersPage(ctx, s.DB, f.StoreID, start, f.PageSize)
		if err != nil {
			return nil, 0, err
		}
		out := make([]OrderView, 0, len(orders))
		for _, o := range orders {
			out = append(out, viewOf(o))
		}
		return out, total, nil
	}

	// The projected status depends on every item, so a status filter walks
	// the orders in chunks and keeps only the requested window.
	out := []OrderView{}
	var total int64
	for offset := 0; ; offset += listScanChunk {
		chunk, err := repo.ListOrdersPage(ctx, s.DB, f.StoreID, offset, listScanChunk)
		if err != nil {
			return nil, 0, err
		}
		for _, o := range chunk {
			v := viewOf(o)
			if v.Status != f.Status {
				continue
			}
			if total >= int64(start) && len(out) < f.PageSize {
				out = append(out, v)
			}
			total++
		}
		if len(chunk) < listScanChunk {
			break
		}
	}
	return out, total, nil
}

// listScanChunk bounds how many orders a status-filtered listing holds in
// memory at once.
var listScanChunk = 200

// ETag returns a weak validator for the order list of storeID. It changes
// whenever an order or item in scope is written.
func (s *OrderService) ETag(ctx context.Context, storeID string) (string, error) {
	count, latest, err := repo.OrdersStats(ctx, s.DB, storeID)
	if err != nil {
		return "", err
	}
	var ts int64
	if latest != nil {
		ts = latest.UnixNano()
	}
	return fmt.Sprintf(`W/"orders:%s:%d:%d"`, storeID, count, ts), nil
}

// Get returns an order with its items.
func (s *OrderService) Get(ctx context.Context, id string) (*OrderView, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(attribute.String("order.id", id)),
	)
	defer span.End()

	o, err := repo.GetOrder(ctx, s.DB, id, true)
	if err != nil {
		return nil, mapRepoErr(err, "order", id)
	}
	v := viewOf(*o)
	return &v, nil
}

// Close applies the COMPLETED override. When the order actually changed,
// the storefront is told as well; that call is best effort and its failure
// is only logged. Closing a closed order is a no-op.
func (s *OrderService) Close(ctx context.Context, id string) (*OrderView, error) {
	tr := otel.Tracer("services/OrderService")
	ctx, span := tr.Start(ctx, "Close",
		trace.WithAttributes(attribute.String("order.id", id)),
	)
	defer span.End()

	changed, err := repo.CloseOrder(ctx, s.DB, id, time.Now().UTC())
	if err != nil {
		return nil, mapRepoErr(err, "order", id)
	}
	v, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if changed {
		s.notifyCompleted(ctx, &v.Order)
	}
	return v, nil
}

func (s *OrderService) notifyCompleted(ctx context.Context, o *domain.Order) {
	if s.Storefront == nil {
		return
	}
	logger := log.Ctx(ctx).With().Str("order_id", o.ID).Str("external_number", o.ExternalNumber).Logger()

	store, err := repo.GetStore(ctx, s.DB, o.StoreID)
	if err != nil {
		logger.Warn().Err(err).Msg("storefront completion skipped: store lookup failed")
		return
	}
	creds, err := s.credentials(store)
	if err != nil {
		logger.Warn().Err(err).Msg("storefront completion skipped: credentials unreadable")
		return
	}
	if err := s.Storefront.CompleteOrder(ctx, creds, o.ExternalNumber); err != nil {
		logger.Warn().Err(err).Msg("storefront completion failed")
		return
	}
	logger.Info().Msg("storefront order completed")
}

// credentials opens the sealed consumer secret of store.
func (s *OrderService) credentials(store *domain.Store) (storefront.Credentials, error) {
	secret := store.ConsumerSecret
	if s.Secrets != nil {
		plain, err := s.Secrets.Open(secret)
		if err != nil {
			return storefront.Credentials{}, err
		}
		secret = plain
	}
	return storefront.Credentials{
		BaseURL:        store.BaseURL,
		ConsumerKey:    store.ConsumerKey,
		ConsumerSecret: secret,
		PluginKey:      store.PluginKey,
	}, nil
}
