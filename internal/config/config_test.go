package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("RETAILTRACK_AUTH_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty auth secret when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadReadsPrefixedVariables(t *testing.T) {
	t.Setenv("RETAILTRACK_PORT", "9090")
	t.Setenv("RETAILTRACK_ACCESS_TOKEN_TTL_MINUTES", "60")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("expected port 9090, got %q", cfg.Port)
	}
	if cfg.Address() != ":9090" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
	if cfg.AccessTokenTTLMinutes != 60 {
		t.Fatalf("expected token ttl 60, got %d", cfg.AccessTokenTTLMinutes)
	}
}

func TestLoadClampsNonPositiveTTLs(t *testing.T) {
	t.Setenv("RETAILTRACK_REPORT_TTL_SECONDS", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ReportTTLSeconds != 30 {
		t.Fatalf("expected fallback ttl 30, got %d", cfg.ReportTTLSeconds)
	}
}
