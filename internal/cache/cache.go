package cache

import (
	"context"
	"time"

	"negociaai/backend/internal/domain"
)

// MenuCache stores derived offer menus. Keys are built by the caller and
// include the derivation date, since menus change as delinquency age crosses
// a bracket boundary.
type MenuCache interface {
	Get(ctx context.Context, key string) (*domain.OfferMenu, bool, error)
	Set(ctx context.Context, key string, value *domain.OfferMenu, ttl time.Duration) error
}

type NoopMenuCache struct{}

func (NoopMenuCache) Get(_ context.Context, _ string) (*domain.OfferMenu, bool, error) {
	return nil, false, nil
}

func (NoopMenuCache) Set(_ context.Context, _ string, _ *domain.OfferMenu, _ time.Duration) error {
	return nil
}
