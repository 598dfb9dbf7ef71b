package services

import (
	"context"

	"github.com/tbourn/autodesign-coordinator/internal/storefront"
)

// Extractor turns customer text into a field map. *extract.Client
// implements it.
type Extractor interface {
	ExtractFields(ctx context.Context, sourceText, templateKey string) (map[string]string, error)
}

// Storefront fetches raw orders and reports completion. *storefront.Client
// implements it.
type Storefront interface {
	FetchOrders(ctx context.Context, creds storefront.Credentials) ([]storefront.RawOrder, error)
	CompleteOrder(ctx context.Context, creds storefront.Credentials, number string) error
}

// Sealer seals and opens stored credentials. *secrets.Box implements it.
type Sealer interface {
	Seal(plain string) (string, error)
	Open(sealed string) (string, error)
}
