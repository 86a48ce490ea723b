package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "SETTINGS_CACHE_TTL_SECONDS", "LOOKUP_DEBOUNCE_MS", "LOOKUP_LIMIT", "SESSION_IDLE_MINUTES", "PRINTER_TYPE", "STAGE"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, 5*time.Minute, cfg.SettingsCacheTTL())
	assert.Equal(t, 250*time.Millisecond, cfg.LookupDebounce())
	assert.Equal(t, 20, cfg.LookupLimit)
	assert.Equal(t, 12*time.Hour, cfg.SessionIdle())
	assert.Equal(t, "spool", cfg.PrinterType)
	assert.Equal(t, "dev", cfg.Stage)
}

func TestLoadRejectsInvalidNumbers(t *testing.T) {
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "-5")
	t.Setenv("LOOKUP_DEBOUNCE_MS", "0")
	t.Setenv("LOGIN_RATE_PER_MINUTE", "many")
	t.Setenv("PRINTER_TYPE", "NETWORK")

	cfg := Load()
	assert.Equal(t, 8*time.Hour, cfg.AccessTokenTTL())
	assert.Equal(t, time.Duration(0), cfg.LookupDebounce())
	assert.Equal(t, 10, cfg.LoginRatePerMinute)
	assert.Equal(t, "network", cfg.PrinterType)
}
