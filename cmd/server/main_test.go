package main

import (
	"testing"

	"retailtrack/internal/config"
)

func TestValidateSecurityConfigRejectsShortSecret(t *testing.T) {
	cfg := config.Config{Env: "prod", DatabaseURL: "postgres://x", AuthSecret: "short"}
	if err := validateSecurityConfig(cfg); err == nil {
		t.Fatal("expected short auth secret to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongSecret(t *testing.T) {
	cfg := config.Config{Env: "prod", DatabaseURL: "postgres://x", AuthSecret: "0123456789abcdef0123456789abcdef"}
	if err := validateSecurityConfig(cfg); err != nil {
		t.Fatalf("expected strong secret to pass, got %v", err)
	}
}

func TestValidateSecurityConfigAllowsDevMemoryMode(t *testing.T) {
	cfg := config.Config{Env: "dev"}
	if err := validateSecurityConfig(cfg); err != nil {
		t.Fatalf("dev in-memory mode must not require a secret, got %v", err)
	}
}
