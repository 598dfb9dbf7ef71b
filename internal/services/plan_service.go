package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
	"github.com/tbourn/autodesign-coordinator/internal/imposition"
	"github.com/tbourn/autodesign-coordinator/internal/observability"
	"github.com/tbourn/autodesign-coordinator/internal/repo"
)

// PlanService builds print plans from DONE items.
type PlanService struct {
	DB      *gorm.DB
	Catalog imposition.Catalog
}

// PlanView is a computed plan with the sheet it was computed for.
type PlanView struct {
	Sheet imposition.Sheet `json:"sheet"`
	imposition.Result
	Placed int `json:"placed"`
}

// Sheets returns the configured sheet catalog.
func (s *PlanService) Sheets() []imposition.Sheet {
	return s.Catalog.Sheets
}

// Plan lays out the DONE items of orderIDs (all orders when empty) on the
// named sheet. Items take their trim size from their own override, falling
// back to their template's; items with neither come back as Unplaceable.
func (s *PlanService) Plan(ctx context.Context, sheetName string, orderIDs []string) (*PlanView, error) {
	tr := otel.Tracer("services/PlanService")
	ctx, span := tr.Start(ctx, "Plan",
		trace.WithAttributes(
			attribute.String("sheet", sheetName),
			attribute.Int("orders", len(orderIDs)),
		),
	)
	defer span.End()

	sheet, ok := s.Catalog.Lookup(strings.TrimSpace(sheetName))
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSheet, sheetName)
	}

	done, err := repo.ListDoneItems(ctx, s.DB, orderIDs)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, it := range done {
		if it.TemplateKey != nil {
			keys = append(keys, *it.TemplateKey)
		}
	}
	templates, err := repo.GetTemplatesByKeys(ctx, s.DB, keys)
	if err != nil {
		return nil, err
	}

	items := make([]imposition.RenderedItem, 0, len(done))
	for _, it := range done {
		items = append(items, renderedItem(it, templates))
	}
	res := imposition.PlanSheets(items, sheet)

	observability.PlannedSheets.Observe(float64(len(res.Sheets)))
	span.SetAttributes(
		attribute.Int("sheets", len(res.Sheets)),
		attribute.Int("unplaceable", len(res.Unplaceable)),
	)
	return &PlanView{Sheet: sheet, Result: res, Placed: res.Placed()}, nil
}

func renderedItem(it domain.OrderItem, templates map[string]domain.TemplateConfig) imposition.RenderedItem {
	ri := imposition.RenderedItem{ID: it.ID, OrderID: it.OrderID, Quantity: it.Quantity}
	if it.RenderedRef != nil {
		ri.Output = *it.RenderedRef
	}
	switch {
	case it.TrimWidthMM != nil && it.TrimHeightMM != nil:
		ri.Trim = imposition.Size{Width: *it.TrimWidthMM, Height: *it.TrimHeightMM}
	case it.TemplateKey != nil:
		if t, ok := templates[*it.TemplateKey]; ok {
			ri.Trim = imposition.Size{Width: t.TrimWidthMM, Height: t.TrimHeightMM}
		}
	}
	return ri
}
