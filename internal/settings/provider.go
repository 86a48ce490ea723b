// Package settings serves store settings to the receipt path through a
// read-through cache. Reads never fail: a missing or unreachable record
// yields the defaults.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"tokopos/backend/internal/cache"
	"tokopos/backend/internal/domain"
	"tokopos/backend/internal/money"
	"tokopos/backend/internal/store"
)

var ErrInvalidSettings = errors.New("invalid store settings")

type Provider struct {
	repo   store.Settings
	cache  cache.SettingsCache
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewProvider(repo store.Settings, c cache.SettingsCache, ttl time.Duration, logger *zap.Logger) *Provider {
	if c == nil {
		c = cache.NoopSettingsCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Provider{repo: repo, cache: c, ttl: ttl, logger: logger, now: time.Now}
}

// Get returns the current settings for storeID. Cache and repository
// failures are logged and answered with defaults.
func (p *Provider) Get(ctx context.Context, storeID string) domain.StoreSettings {
	if cached, ok, err := p.cache.Get(ctx, storeID); err != nil {
		p.logger.Warn("settings cache read failed", zap.String("store_id", storeID), zap.Error(err))
	} else if ok && cached != nil {
		return *cached
	}

	current, err := p.repo.GetStoreSettings(ctx, storeID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("settings fetch failed, using defaults", zap.String("store_id", storeID), zap.Error(err))
		}
		return domain.DefaultStoreSettings(storeID)
	}

	if err := p.cache.Set(ctx, current, p.ttl); err != nil {
		p.logger.Warn("settings cache write failed", zap.String("store_id", storeID), zap.Error(err))
	}
	return *current
}

// Update validates and stores settings, then drops the cached copy so the
// next read, including reprints of old sales, sees the new values.
func (p *Provider) Update(ctx context.Context, next domain.StoreSettings) (domain.StoreSettings, error) {
	normalized, err := Normalize(next)
	if err != nil {
		return domain.StoreSettings{}, err
	}
	normalized.UpdatedAt = p.now().UTC()

	saved, err := p.repo.UpsertStoreSettings(ctx, normalized)
	if err != nil {
		return domain.StoreSettings{}, err
	}
	if err := p.cache.Invalidate(ctx, saved.StoreID); err != nil {
		p.logger.Warn("settings cache invalidate failed", zap.String("store_id", saved.StoreID), zap.Error(err))
	}
	return *saved, nil
}

// Normalize trims every field and fills currency defaults. It rejects
// settings that the renderer could not honour.
func Normalize(s domain.StoreSettings) (domain.StoreSettings, error) {
	s.StoreID = strings.TrimSpace(s.StoreID)
	s.StoreName = strings.TrimSpace(s.StoreName)
	s.Address = strings.TrimSpace(s.Address)
	s.ContactLine = strings.TrimSpace(s.ContactLine)
	s.TaxIdentifier = strings.ToUpper(strings.TrimSpace(s.TaxIdentifier))
	s.LogoReference = strings.TrimSpace(s.LogoReference)
	s.FooterNote = strings.TrimSpace(s.FooterNote)
	s.CurrencySymbol = strings.TrimSpace(s.CurrencySymbol)
	s.Grouping = strings.ToLower(strings.TrimSpace(s.Grouping))
	s.TimeZone = strings.TrimSpace(s.TimeZone)

	if s.StoreID == "" || s.StoreName == "" {
		return domain.StoreSettings{}, fmt.Errorf("%w: store id and name are required", ErrInvalidSettings)
	}
	if s.ReceiptTemplate == "" {
		s.ReceiptTemplate = domain.TemplateCompact
	}
	if !s.ReceiptTemplate.Valid() {
		return domain.StoreSettings{}, fmt.Errorf("%w: unknown receipt template %q", ErrInvalidSettings, s.ReceiptTemplate)
	}
	if s.CurrencySymbol == "" {
		s.CurrencySymbol = money.DefaultStyle.Symbol
	}
	switch money.Grouping(s.Grouping) {
	case "":
		s.Grouping = string(money.DefaultStyle.Grouping)
	case money.GroupingIndian, money.GroupingWestern:
	default:
		return domain.StoreSettings{}, fmt.Errorf("%w: unknown grouping %q", ErrInvalidSettings, s.Grouping)
	}
	if s.TimeZone == "" {
		s.TimeZone = "UTC"
	}
	if _, err := time.LoadLocation(s.TimeZone); err != nil {
		return domain.StoreSettings{}, fmt.Errorf("%w: unknown time zone %q", ErrInvalidSettings, s.TimeZone)
	}
	return s, nil
}
