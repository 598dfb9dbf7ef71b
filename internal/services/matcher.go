package services

import (
	"github.com/tbourn/autodesign-coordinator/internal/domain"
	"github.com/tbourn/autodesign-coordinator/internal/search"
)

// productStopwords are words common to almost every product name in the
// shops we sync; they would otherwise inflate every score.
var productStopwords = []string{"a", "s", "na", "pre", "the", "of", "for", "v1", "v2"}

// TemplateMatcher maps raw product names to template keys.
type TemplateMatcher struct {
	idx       search.Index
	threshold float64
}

// NewTemplateMatcher indexes each template under its key and alias.
func NewTemplateMatcher(templates []domain.TemplateConfig, threshold float64) *TemplateMatcher {
	docs := make([]search.Document, 0, len(templates))
	for _, t := range templates {
		docs = append(docs, search.Document{ID: t.Key, Text: t.Key + " " + t.Alias})
	}
	return &TemplateMatcher{
		idx:       search.NewIndex(docs, search.WithStopwords(productStopwords)),
		threshold: threshold,
	}
}

// Match returns the best template key for productName, or nil when nothing
// scores at least the threshold.
func (m *TemplateMatcher) Match(productName string) *string {
	if m == nil {
		return nil
	}
	r, ok := search.Best(m.idx, productName, m.threshold)
	if !ok {
		return nil
	}
	key := r.ID
	return &key
}
