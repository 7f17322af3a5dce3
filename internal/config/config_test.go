package config

import (
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{"CREDENTIAL_TTL", "STORAGE_BACKEND", "CORS_ORIGINS", "GUARD_WAIT", "BACKEND_URL"} {
		t.Setenv(key, "")
	}
	cfg := FromEnv()
	if cfg.CredentialTTL != 2*time.Hour {
		t.Fatalf("expected 2h credential ttl, got %s", cfg.CredentialTTL)
	}
	if cfg.StorageBackend != "postgres" {
		t.Fatalf("expected postgres storage, got %q", cfg.StorageBackend)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSOrigins)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("CREDENTIAL_TTL", "90m")
	t.Setenv("STORAGE_BACKEND", "Redis")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("SHUTDOWN_TIMEOUT_SECONDS", "3")
	t.Setenv("BACKEND_URL", "https://api.example/")

	cfg := FromEnv()
	if cfg.CredentialTTL != 90*time.Minute {
		t.Fatalf("expected 90m, got %s", cfg.CredentialTTL)
	}
	if cfg.StorageBackend != "redis" {
		t.Fatalf("expected lowercased backend, got %q", cfg.StorageBackend)
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.CORSOrigins)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Fatalf("expected 3s shutdown, got %s", cfg.ShutdownTimeout)
	}
	if cfg.BackendURL != "https://api.example" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.BackendURL)
	}
}

func TestFromEnv_InvalidDurationFallsBack(t *testing.T) {
	t.Setenv("CREDENTIAL_TTL", "soon")
	cfg := FromEnv()
	if cfg.CredentialTTL != 2*time.Hour {
		t.Fatalf("expected default on invalid value, got %s", cfg.CredentialTTL)
	}
}
