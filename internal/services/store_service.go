// Package services – StoreService
//
// This file implements StoreService, which registers storefront connections.
// Consumer secrets are sealed before they reach the repository and never
// leave the service in plain text.
package services

import (
	"context"
	"net/url"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/autodesign-coordinator/internal/domain"
)

// StoreRepo defines the repository contract required by StoreService.
type StoreRepo interface {
	// CreateStore inserts a new store row.
	CreateStore(ctx context.Context, db *gorm.DB, s *domain.Store) (*domain.Store, error)

	// ListStores returns every store.
	ListStores(ctx context.Context, db *gorm.DB) ([]domain.Store, error)

	// GetStore fetches one store by ID.
	GetStore(ctx context.Context, db *gorm.DB, id string) (*domain.Store, error)
}

// StoreInput is the operator's registration request.
type StoreInput struct {
	Name           string
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	PluginKey      string
}

// StoreService provides storefront registration and lookup.
type StoreService struct {
	DB      *gorm.DB
	Repo    StoreRepo
	Secrets Sealer
}

// NewStoreService constructs a StoreService.
func NewStoreService(db *gorm.DB, r StoreRepo, sealer Sealer) *StoreService {
	return &StoreService{DB: db, Repo: r, Secrets: sealer}
}

// Create validates in, seals the consumer secret, and stores the result.
func (s *StoreService) Create(ctx context.Context, in StoreInput) (*domain.Store, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.BaseURL = strings.TrimRight(strings.TrimSpace(in.BaseURL), "/")
	in.ConsumerKey = strings.TrimSpace(in.ConsumerKey)

	if in.Name == "" {
		return nil, invalid("name is required")
	}
	u, err := url.Parse(in.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, invalid("base_url must be an absolute http(s) URL")
	}
	if in.ConsumerKey == "" || in.ConsumerSecret == "" {
		return nil, invalid("consumer key and secret are required")
	}

	secret := in.ConsumerSecret
	if s.Secrets != nil {
		if secret, err = s.Secrets.Seal(secret); err != nil {
			return nil, err
		}
	}
	return s.Repo.CreateStore(ctx, s.DB, &domain.Store{
		Name:           in.Name,
		BaseURL:        in.BaseURL,
		ConsumerKey:    in.ConsumerKey,
		ConsumerSecret: secret,
		PluginKey:      strings.TrimSpace(in.PluginKey),
	})
}

// List returns all stores.
func (s *StoreService) List(ctx context.Context) ([]domain.Store, error) {
	return s.Repo.ListStores(ctx, s.DB)
}

// Get returns one store.
func (s *StoreService) Get(ctx context.Context, id string) (*domain.Store, error) {
	st, err := s.Repo.GetStore(ctx, s.DB, id)
	if err != nil {
		return nil, mapRepoErr(err, "store", id)
	}
	return st, nil
}
