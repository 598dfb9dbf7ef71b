package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
)

func TestTemplateUpsertAndScanLifecycle(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	svc := &TemplateService{DB: db}

	tpl, err := svc.Upsert(ctx, "WED_BASIC", TemplateInput{
		Alias: "Svadobné oznámenie", FolderPath: "/tpl/wed",
		Mapping: map[string]string{"NAME_MAIN": "Names"}, TrimWidthMM: 148, TrimHeightMM: 105,
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if tpl.Status != domain.TemplateNew || tpl.Mapping["NAME_MAIN"] != "Names" {
		t.Fatalf("unexpected template: %+v", tpl)
	}

	scanning, err := svc.TriggerScan(ctx, "WED_BASIC")
	if err != nil || scanning.Status != domain.TemplateScanning {
		t.Fatalf("TriggerScan: %+v err=%v", scanning, err)
	}
	again, err := svc.TriggerScan(ctx, "WED_BASIC")
	if err != nil || again.Status != domain.TemplateScanning {
		t.Fatalf("TriggerScan while scanning should be a no-op: %+v err=%v", again, err)
	}

	// Operator edits keep the scan status.
	tpl, err = svc.Upsert(ctx, "WED_BASIC", TemplateInput{Alias: "Wedding", FolderPath: "/tpl/wed"})
	if err != nil || tpl.Status != domain.TemplateScanning || tpl.Alias != "Wedding" {
		t.Fatalf("re-upsert: %+v err=%v", tpl, err)
	}

	list, err := svc.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("List: %v err=%v", list, err)
	}

	if err := svc.Delete(ctx, "WED_BASIC"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, "WED_BASIC"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete: expected ErrNotFound, got %v", err)
	}
}

func TestTemplate_Validation(t *testing.T) {
	db := newServiceDB(t)
	ctx := context.Background()
	svc := &TemplateService{DB: db}

	if _, err := svc.Upsert(ctx, "bad key!", TemplateInput{}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for key, got %v", err)
	}
	if _, err := svc.Upsert(ctx, "k", TemplateInput{Mapping: map[string]string{"A": " "}}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for mapping, got %v", err)
	}
	if _, err := svc.Upsert(ctx, "k", TemplateInput{TrimWidthMM: -1}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for trim, got %v", err)
	}
	if _, err := svc.TriggerScan(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Upsert(ctx, "nofolder", TemplateInput{}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := svc.TriggerScan(ctx, "nofolder"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("scan without folder: expected ErrInvalidInput, got %v", err)
	}
}
