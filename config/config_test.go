package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GIPHY_API_KEY", "")
	t.Setenv("RECOVERY_COOLDOWN", "not-a-duration")
	t.Setenv("INVITE_BASE_URL", "https://circle.example/")

	cfg := LoadConfig()
	if cfg.StoreBackend != StoreFirestore {
		t.Fatalf("expected firestore backend by default, got %q", cfg.StoreBackend)
	}
	if cfg.RecoveryCooldown != time.Second {
		t.Fatalf("expected default cooldown, got %s", cfg.RecoveryCooldown)
	}
	if cfg.InviteBaseURL != "https://circle.example" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.InviteBaseURL)
	}
	if cfg.GiphyAPIKey != "" {
		t.Fatalf("expected empty giphy key")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", StoreMemory)
	t.Setenv("REDIS_DB", "3")
	t.Setenv("NOTICE_TTL", "500ms")
	t.Setenv("DIAGNOSTICS_SUPPRESS", "first warning; second warning ;")

	cfg := LoadConfig()
	if cfg.StoreBackend != StoreMemory {
		t.Fatalf("expected memory backend, got %q", cfg.StoreBackend)
	}
	if cfg.RedisDB != 3 {
		t.Fatalf("expected redis db 3, got %d", cfg.RedisDB)
	}
	if cfg.NoticeTTL != 500*time.Millisecond {
		t.Fatalf("expected 500ms notice ttl, got %s", cfg.NoticeTTL)
	}
	if len(cfg.DiagnosticsSuppress) != 2 || cfg.DiagnosticsSuppress[1] != "second warning" {
		t.Fatalf("unexpected suppress list %#v", cfg.DiagnosticsSuppress)
	}
}
