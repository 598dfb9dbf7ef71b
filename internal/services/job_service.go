// Package services – JobService
//
// This file implements the pull-based job protocol. Workers never receive
// pushed work: an operator claim moves an order's AI_READY items to
// GENERATING, the catalog lists what is GENERATING (plus templates being
// scanned), and a worker report moves the batch on to DONE or ERROR.
//
// Every item status change goes through the repo transition functions,
// which are conditional updates. A duplicate claim finds no AI_READY items
// and is refused; a duplicate report finds no GENERATING items and is a
// no-op success.
//
// Observability: all public methods are OpenTelemetry-instrumented and
// update the domain counters in the observability package.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
	"github.com/tbourn/autodesign-coordinator/internal/jobs"
	"github.com/tbourn/autodesign-coordinator/internal/observability"
	"github.com/tbourn/autodesign-coordinator/internal/repo"
)

const (
	defaultRenderFailure = "render failed"
	defaultAbandonDetail = "abandoned by operator"
	defaultScanFailure   = "template scan failed"
)

// JobService owns the claim/report protocol and its recovery operations.
type JobService struct {
	DB *gorm.DB

	// StaleAfter is the default age for ListStale when the caller passes 0.
	StaleAfter time.Duration

	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// NewJobService constructs a JobService.
func NewJobService(db *gorm.DB, staleAfter time.Duration) *JobService {
	return &JobService{DB: db, StaleAfter: staleAfter}
}

func (s *JobService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// ListClaimableWork returns a snapshot of claimed work: one ORDER_BATCH per
// order with GENERATING items and one TEMPLATE_SCAN per SCANNING template.
// Both reads happen in one transaction.
func (s *JobService) ListClaimableWork(ctx context.Context) ([]jobs.Descriptor, error) {
	tr := otel.Tracer("services/JobService")
	ctx, span := tr.Start(ctx, "ListClaimableWork")
	defer span.End()

	out := []jobs.Descriptor{}
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		items, err := repo.ListItemsByStatus(ctx, tx, domain.ItemGenerating)
		if err != nil {
			return err
		}

		var orderIDs, keys []string
		byOrder := make(map[string][]domain.OrderItem)
		for _, it := range items {
			if _, seen := byOrder[it.OrderID]; !seen {
				orderIDs = append(orderIDs, it.OrderID)
			}
			byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
			if it.TemplateKey != nil {
				keys = append(keys, *it.TemplateKey)
			}
		}
		templates, err := repo.GetTemplatesByKeys(ctx, tx, keys)
		if err != nil {
			return err
		}

		for _, id := range orderIDs {
			o, err := repo.GetOrder(ctx, tx, id, false)
			if err != nil {
				return err
			}
			out = append(out, batchDescriptor(o, byOrder[id], templates))
		}

		scans, err := repo.ListTemplatesByStatus(ctx, tx, domain.TemplateScanning)
		if err != nil {
			return err
		}
		for _, t := range scans {
			out = append(out, jobs.TemplateScan{ID: t.Key, TemplateKey: t.Key, FolderPath: t.FolderPath})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("jobs.count", len(out)))
	return out, nil
}

func batchDescriptor(o *domain.Order, items []domain.OrderItem, templates map[string]domain.TemplateConfig) jobs.OrderBatch {
	b := jobs.OrderBatch{
		ID:             o.ID,
		OrderID:        o.ID,
		ExternalNumber: o.ExternalNumber,
		CustomerName:   o.CustomerName,
		Items:          make([]jobs.BatchItem, 0, len(items)),
	}
	for _, it := range items {
		bi := jobs.BatchItem{
			ID:          it.ID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Fields:      it.FieldMap(),
		}
		if it.TemplateKey != nil {
			bi.TemplateKey = *it.TemplateKey
			if t, ok := templates[*it.TemplateKey]; ok {
				bi.TemplateFolder = t.FolderPath
				bi.MasterFile = t.MasterFile
				bi.Fields = t.LayerFields(bi.Fields)
			}
		}
		b.Items = append(b.Items, bi)
	}
	return b
}

// Claim moves every AI_READY item of the order to GENERATING in one
// statement and stamps the order's claimed-at. An order with no items, or
// with no AI_READY items, is refused with a *domain.TransitionError.
func (s *JobService) Claim(ctx context.Context, orderID string) (*domain.Order, error) {
	tr := otel.Tracer("services/JobService")
	ctx, span := tr.Start(ctx, "Claim",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
	defer span.End()

	var moved int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetOrder(ctx, tx, orderID, false); err != nil {
			return mapRepoErr(err, "order", orderID)
		}
		n, err := repo.TransitionOrderItems(ctx, tx, orderID, domain.ItemAIReady, domain.ItemGenerating, repo.ItemPatch{})
		if err != nil {
			return err
		}
		if n == 0 {
			counts, err := repo.CountItemsByStatus(ctx, tx, orderID)
			if err != nil {
				return err
			}
			reason := "no AI_READY items"
			if len(counts) == 0 {
				reason = "order has no items"
			}
			return &domain.TransitionError{From: domain.ItemAIReady, To: domain.ItemGenerating, Reason: reason}
		}
		moved = n
		return repo.MarkOrderClaimed(ctx, tx, orderID, s.now())
	})
	if err != nil {
		observability.JobClaims.WithLabelValues(claimResult(err)).Inc()
		return nil, err
	}

	observability.JobClaims.WithLabelValues("ok").Inc()
	observability.CountTransition(string(domain.ItemAIReady), string(domain.ItemGenerating), moved)
	span.SetAttributes(attribute.Int64("items.moved", moved))
	log.Ctx(ctx).Info().Str("order_id", orderID).Int64("items", moved).Msg("order claimed")

	o, err := repo.GetOrder(ctx, s.DB, orderID, true)
	return o, mapRepoErr(err, "order", orderID)
}

func claimResult(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTransition):
		return "conflict"
	default:
		return "error"
	}
}

// Report applies a worker's terminal outcome and returns how many rows it
// changed. A report for a batch with no GENERATING items, or for a template
// that is not SCANNING, changes nothing and still succeeds.
func (s *JobService) Report(ctx context.Context, req jobs.ReportRequest) (int64, error) {
	tr := otel.Tracer("services/JobService")
	ctx, span := tr.Start(ctx, "Report",
		trace.WithAttributes(
			attribute.String("job.id", req.JobID),
			attribute.String("job.kind", string(req.Kind())),
			attribute.String("job.outcome", string(req.Outcome)),
		),
	)
	defer span.End()

	if err := req.Validate(); err != nil {
		return 0, invalid("%v", err)
	}

	var (
		changed int64
		err     error
	)
	switch req.Kind() {
	case jobs.KindTemplateScan:
		changed, err = s.reportScan(ctx, req)
	default:
		changed, err = s.reportBatch(ctx, req)
	}
	if err != nil {
		return 0, err
	}

	observability.JobReports.WithLabelValues(string(req.Kind()), string(req.Outcome)).Inc()
	span.SetAttributes(attribute.Int64("rows.changed", changed))
	ev := log.Ctx(ctx).Info()
	if req.Outcome == jobs.OutcomeFailure {
		ev = log.Ctx(ctx).Warn().Str("error_detail", req.ErrorDetail)
	}
	ev.Str("job_id", req.JobID).Str("kind", string(req.Kind())).Int64("changed", changed).Msg("job reported")
	return changed, nil
}

func (s *JobService) reportBatch(ctx context.Context, req jobs.ReportRequest) (int64, error) {
	var changed int64
	to := domain.ItemDone
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetOrder(ctx, tx, req.JobID, false); err != nil {
			return mapRepoErr(err, "order", req.JobID)
		}

		var patch repo.ItemPatch
		if req.Outcome == jobs.OutcomeSuccess {
			if loc := strings.TrimSpace(req.ResultLocation); loc != "" {
				patch.RenderedRef = &loc
			}
		} else {
			to = domain.ItemError
			detail := strings.TrimSpace(req.ErrorDetail)
			if detail == "" {
				detail = defaultRenderFailure
			}
			patch.ErrorDetail = &detail
		}

		n, err := repo.TransitionOrderItems(ctx, tx, req.JobID, domain.ItemGenerating, to, patch)
		if err != nil {
			return err
		}
		changed = n
		if n > 0 && to == domain.ItemDone {
			if p := strings.TrimSpace(req.PreviewLocation); p != "" {
				return repo.SetOrderPreview(ctx, tx, req.JobID, p)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	observability.CountTransition(string(domain.ItemGenerating), string(to), changed)
	return changed, nil
}

func (s *JobService) reportScan(ctx context.Context, req jobs.ReportRequest) (int64, error) {
	if _, err := repo.GetTemplate(ctx, s.DB, req.JobID); err != nil {
		return 0, mapRepoErr(err, "template", req.JobID)
	}

	to := domain.TemplateReady
	var patch repo.TemplatePatch
	if req.Outcome == jobs.OutcomeSuccess {
		master := strings.TrimSpace(req.MasterFile)
		patch.MasterFile = &master
		patch.Assets = req.Assets
		if patch.Assets == nil {
			patch.Assets = []string{}
		}
	} else {
		to = domain.TemplateNew
		detail := strings.TrimSpace(req.ErrorDetail)
		if detail == "" {
			detail = defaultScanFailure
		}
		patch.ScanError = &detail
	}

	moved, err := repo.TransitionTemplate(ctx, s.DB, req.JobID, domain.TemplateScanning, to, patch)
	if err != nil || !moved {
		return 0, err
	}
	return 1, nil
}

// ListStale returns GENERATING items that have not changed status for
// longer than olderThan (StaleAfter when olderThan <= 0).
func (s *JobService) ListStale(ctx context.Context, olderThan time.Duration) ([]domain.OrderItem, error) {
	tr := otel.Tracer("services/JobService")
	ctx, span := tr.Start(ctx, "ListStale")
	defer span.End()

	if olderThan <= 0 {
		olderThan = s.StaleAfter
	}
	span.SetAttributes(attribute.String("older_than", olderThan.String()))
	items, err := repo.ListStaleItems(ctx, s.DB, s.now().Add(-olderThan))
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.OrderItem{}
	}
	return items, nil
}

// Abandon moves an order's GENERATING items to ERROR. It is the operator's
// way out of a batch whose worker never reported.
func (s *JobService) Abandon(ctx context.Context, orderID, detail string) (int64, error) {
	tr := otel.Tracer("services/JobService")
	ctx, span := tr.Start(ctx, "Abandon",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
	defer span.End()

	detail = strings.TrimSpace(detail)
	if detail == "" {
		detail = defaultAbandonDetail
	}

	var moved int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.GetOrder(ctx, tx, orderID, false); err != nil {
			return mapRepoErr(err, "order", orderID)
		}
		n, err := repo.TransitionOrderItems(ctx, tx, orderID, domain.ItemGenerating, domain.ItemError, repo.ItemPatch{ErrorDetail: &detail})
		if err != nil {
			return err
		}
		if n == 0 {
			return &domain.TransitionError{From: domain.ItemGenerating, To: domain.ItemError, Reason: "no GENERATING items"}
		}
		moved = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	observability.CountTransition(string(domain.ItemGenerating), string(domain.ItemError), moved)
	log.Ctx(ctx).Warn().Str("order_id", orderID).Int64("items", moved).Msg("batch abandoned")
	return moved, nil
}

// ResetItem moves an ERROR item back to AI_READY, clearing its rendered
// reference and error detail.
func (s *JobService) ResetItem(ctx context.Context, itemID string) (*domain.OrderItem, error) {
	tr := otel.Tracer("services/JobService")
	ctx, span := tr.Start(ctx, "ResetItem",
		trace.WithAttributes(attribute.String("item.id", itemID)),
	)
	defer span.End()

	cur, err := repo.GetItem(ctx, s.DB, itemID)
	if err != nil {
		return nil, mapRepoErr(err, "item", itemID)
	}
	if cur.Status != domain.ItemError {
		return nil, &domain.TransitionError{From: cur.Status, To: domain.ItemAIReady, Reason: "only ERROR items can be reset"}
	}
	it, err := repo.TransitionItem(ctx, s.DB, itemID, domain.ItemAIReady, repo.ItemPatch{})
	if err != nil {
		return nil, mapRepoErr(err, "item", itemID)
	}
	observability.CountTransition(string(domain.ItemError), string(domain.ItemAIReady), 1)
	return it, nil
}
