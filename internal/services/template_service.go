package services

import (
	"context"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
	"github.com/tbourn/autodesign-coordinator/internal/repo"
)

var templateKeyRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// TemplateInput is the operator-owned part of a template.
type TemplateInput struct {
	Alias        string
	FolderPath   string
	Mapping      map[string]string
	TrimWidthMM  float64
	TrimHeightMM float64
}

// TemplateService manages template configurations and their scans.
type TemplateService struct {
	DB *gorm.DB
}

// List returns every template ordered by key.
func (s *TemplateService) List(ctx context.Context) ([]domain.TemplateConfig, error) {
	out, err := repo.ListTemplates(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.TemplateConfig{}
	}
	return out, nil
}

// Upsert creates or updates the template key. Scan status and scan results
// are never changed here.
func (s *TemplateService) Upsert(ctx context.Context, key string, in TemplateInput) (*domain.TemplateConfig, error) {
	tr := otel.Tracer("services/TemplateService")
	ctx, span := tr.Start(ctx, "Upsert",
		trace.WithAttributes(attribute.String("template.key", key)),
	)
	defer span.End()

	key = strings.TrimSpace(key)
	if !templateKeyRE.MatchString(key) {
		return nil, invalid("template key %q is not valid", key)
	}
	if in.TrimWidthMM < 0 || in.TrimHeightMM < 0 {
		return nil, invalid("trim size must not be negative")
	}
	mapping := datatypes.JSONMap{}
	for field, layer := range in.Mapping {
		field, layer = strings.TrimSpace(field), strings.TrimSpace(layer)
		if field == "" || layer == "" {
			return nil, invalid("mapping entries need a field and a layer name")
		}
		mapping[field] = layer
	}
	return repo.UpsertTemplate(ctx, s.DB, &domain.TemplateConfig{
		Key:          key,
		Alias:        strings.TrimSpace(in.Alias),
		FolderPath:   strings.TrimSpace(in.FolderPath),
		Mapping:      mapping,
		TrimWidthMM:  in.TrimWidthMM,
		TrimHeightMM: in.TrimHeightMM,
	})
}

// TriggerScan moves a NEW or READY template to SCANNING so that workers
// pick it up from the job catalog. A template already SCANNING is returned
// unchanged.
func (s *TemplateService) TriggerScan(ctx context.Context, key string) (*domain.TemplateConfig, error) {
	tr := otel.Tracer("services/TemplateService")
	ctx, span := tr.Start(ctx, "TriggerScan",
		trace.WithAttributes(attribute.String("template.key", key)),
	)
	defer span.End()

	t, err := repo.GetTemplate(ctx, s.DB, key)
	if err != nil {
		return nil, mapRepoErr(err, "template", key)
	}
	if t.Status == domain.TemplateScanning {
		return t, nil
	}
	if strings.TrimSpace(t.FolderPath) == "" {
		return nil, invalid("template %s has no folder path", key)
	}
	moved, err := repo.TransitionTemplate(ctx, s.DB, key, t.Status, domain.TemplateScanning, repo.TemplatePatch{})
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, &domain.TransitionError{Reason: "template " + key + " changed concurrently"}
	}
	return repo.GetTemplate(ctx, s.DB, key)
}

// Delete removes a template. Items keep the now dangling key.
func (s *TemplateService) Delete(ctx context.Context, key string) error {
	return mapRepoErr(repo.DeleteTemplate(ctx, s.DB, key), "template", key)
}
