package config

import "testing"

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "0.0.0.0:8000" {
		t.Fatalf("expected default addr 0.0.0.0:8000, got %q", cfg.Addr)
	}
	if !cfg.FilterBots {
		t.Fatalf("expected filter_bots to default true")
	}
	if cfg.RetentionDays != 0 {
		t.Fatalf("expected retention disabled by default, got %d", cfg.RetentionDays)
	}
	if cfg.RateLimitRPS != 0 {
		t.Fatalf("expected rate_limit_per_site to default to 0 (unlimited), got %v", cfg.RateLimitRPS)
	}
	if cfg.FlushThreshold != 1000 {
		t.Fatalf("expected flush_event_count to default to 1000, got %d", cfg.FlushThreshold)
	}
	if cfg.FlushIntervalSec != 60 {
		t.Fatalf("expected flush_interval_secs to default to 60, got %d", cfg.FlushIntervalSec)
	}
	if cfg.ShutdownTimeoutSec != 30 {
		t.Fatalf("expected shutdown_timeout_secs to default to 30, got %d", cfg.ShutdownTimeoutSec)
	}
	if cfg.CacheTTLSec != 60 {
		t.Fatalf("expected cache_ttl_secs to default to 60, got %d", cfg.CacheTTLSec)
	}
	if !cfg.BehavioralQueriesEnabled {
		t.Fatalf("expected behavioral queries enabled by default")
	}
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	t.Setenv("MALLARD_ADDR", "0.0.0.0:9090")
	t.Setenv("MALLARD_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("MALLARD_RETENTION_DAYS", "90")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != "0.0.0.0:9090" {
		t.Fatalf("expected MALLARD_ADDR to override addr, got %q", cfg.Addr)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "https://a.example" {
		t.Fatalf("expected allowed_origins split on comma, got %v", cfg.AllowedOrigins)
	}
	if cfg.RetentionDays != 90 {
		t.Fatalf("expected retention_days=90, got %d", cfg.RetentionDays)
	}
}

func TestDurationHelpersConvertSecondsFields(t *testing.T) {
	cfg := defaults()
	cfg.FlushIntervalSec = 10
	cfg.ShutdownTimeoutSec = 15
	cfg.CacheTTLSec = 30
	if cfg.FlushInterval().Seconds() != 10 {
		t.Fatalf("unexpected FlushInterval: %v", cfg.FlushInterval())
	}
	if cfg.ShutdownTimeout().Seconds() != 15 {
		t.Fatalf("unexpected ShutdownTimeout: %v", cfg.ShutdownTimeout())
	}
	if cfg.CacheTTL().Seconds() != 30 {
		t.Fatalf("unexpected CacheTTL: %v", cfg.CacheTTL())
	}
}

func TestIsDevelopment(t *testing.T) {
	cfg := defaults()
	if !cfg.IsDevelopment() {
		t.Fatalf("expected default env to be development")
	}
	cfg.Env = "production"
	if cfg.IsDevelopment() {
		t.Fatalf("expected production env to not be development")
	}
}
