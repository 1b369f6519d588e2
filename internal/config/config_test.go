package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "REDIS_URL", "TOKEN_SECRET", "SEARCH_DEBOUNCE", "SEARCH_LIMIT", "TREND_LIMIT", "ALLOWED_ORIGINS", "RATE_LIMIT_WHITELIST"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" || !cfg.IsDevelopment() {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.SearchDebounce != 300*time.Millisecond || cfg.SearchLimit != 20 || cfg.TrendLimit != 5 {
		t.Fatalf("unexpected engine defaults %+v", cfg)
	}
	if cfg.TokenSecret != devTokenSecret {
		t.Fatal("expected development token secret")
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SEARCH_DEBOUNCE", "150ms")
	t.Setenv("SEARCH_LIMIT", "5")
	t.Setenv("RATE_LIMIT_WHITELIST", "10.0.0.0/8, 127.0.0.1 ,")
	t.Setenv("TOKEN_SECRET", "s3cret")

	cfg := Load()
	if cfg.SearchDebounce != 150*time.Millisecond || cfg.SearchLimit != 5 {
		t.Fatalf("overrides not applied %+v", cfg)
	}
	if len(cfg.RateLimitWhitelist) != 2 || cfg.RateLimitWhitelist[1] != "127.0.0.1" {
		t.Fatalf("unexpected whitelist %v", cfg.RateLimitWhitelist)
	}
	if cfg.TokenSecret != "s3cret" {
		t.Fatal("token secret not read")
	}
}

func TestProductionRequiresSecrets(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("TOKEN_SECRET", "")

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic without TOKEN_SECRET")
		}
	}()
	Load()
}
