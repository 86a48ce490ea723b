package cache

import (
	"context"
	"time"

	"tokopos/backend/internal/domain"
)

// SettingsCache holds store settings keyed by store id.
type SettingsCache interface {
	Get(ctx context.Context, storeID string) (*domain.StoreSettings, bool, error)
	Set(ctx context.Context, value *domain.StoreSettings, ttl time.Duration) error
	Invalidate(ctx context.Context, storeID string) error
}

type NoopSettingsCache struct{}

func (NoopSettingsCache) Get(_ context.Context, _ string) (*domain.StoreSettings, bool, error) {
	return nil, false, nil
}

func (NoopSettingsCache) Set(_ context.Context, _ *domain.StoreSettings, _ time.Duration) error {
	return nil
}

func (NoopSettingsCache) Invalidate(_ context.Context, _ string) error {
	return nil
}

func settingsKey(storeID string) string {
	return "tokopos:settings:" + storeID
}
