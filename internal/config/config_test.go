package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("ASSIGNMENT_STRATEGY", "")
	t.Setenv("PUBLIC_TICKET_FEEDS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Port != "8080" {
		t.Errorf("port: got %q, want 8080", cfg.App.Port)
	}
	if cfg.Assignment.Strategy != AssignmentRandom {
		t.Errorf("strategy: got %q, want %q", cfg.Assignment.Strategy, AssignmentRandom)
	}
	if !cfg.App.PublicTicketFeeds {
		t.Error("public ticket feeds should default to enabled")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("ASSIGNMENT_STRATEGY", "LEAST_LOADED")
	t.Setenv("ASSIGNMENT_SEED", "42")
	t.Setenv("PUBLIC_TICKET_FEEDS", "false")
	t.Setenv("AUTH_BCRYPT_COST", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Addr() != "0.0.0.0:9090" {
		t.Errorf("addr: got %q", cfg.App.Addr())
	}
	if cfg.Assignment.Strategy != AssignmentLeastLoaded {
		t.Errorf("strategy: got %q", cfg.Assignment.Strategy)
	}
	if cfg.Assignment.Seed != 42 {
		t.Errorf("seed: got %d, want 42", cfg.Assignment.Seed)
	}
	if cfg.App.PublicTicketFeeds {
		t.Error("public ticket feeds should be disabled")
	}
	if cfg.Auth.BcryptCost != 12 {
		t.Errorf("malformed bcrypt cost should fall back to 12, got %d", cfg.Auth.BcryptCost)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"redis db", "REDIS_DB", "primary"},
		{"strategy", "ASSIGNMENT_STRATEGY", "round_robin"},
		{"seed", "ASSIGNMENT_SEED", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load with %s=%q: expected error", tt.key, tt.value)
			}
		})
	}
}

func TestDurations(t *testing.T) {
	if got := (AppConfig{RequestTimeoutSeconds: 0}).RequestTimeout(); got != 0 {
		t.Errorf("zero timeout: got %v", got)
	}
	if got := (AuthConfig{SessionTTLMinutes: 15}).SessionTTL(); got != 15*time.Minute {
		t.Errorf("session ttl: got %v", got)
	}
	if got := (AuthConfig{}).SessionTTL(); got != 8*time.Hour {
		t.Errorf("default session ttl: got %v", got)
	}
}
