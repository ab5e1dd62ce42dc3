// Package config provides tests for the configuration loading and management.
package config

import (
	"os"
	"testing"
)

var allVars = []string{
	"REELS_ENV", "REELS_PORT", "REELS_APP_ID", "REELS_STORE", "REELS_DB_DSN",
	"REELS_REDIS_ADDR", "REELS_REDIS_PASSWORD", "REELS_REDIS_DB", "REELS_NATS_URL",
	"REELS_S3_ENDPOINT", "REELS_S3_REGION", "REELS_S3_BUCKET", "REELS_S3_ACCESS_KEY",
	"REELS_S3_SECRET_KEY", "REELS_JWT_ISSUER", "REELS_JWT_AUDIENCE", "IDENTITY_URL",
	"REELS_SWIPE_THRESHOLD", "REELS_CATALOG_PATH", "REELS_SEED_ON_EMPTY",
	"REELS_CORS_ALLOWED_ORIGINS", "REELS_MAX_MEDIA_SIZE", "REELS_ALLOWED_MIME_TYPES",
}

// clearEnv unsets every variable Load reads and restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allVars {
		if v, ok := os.LookupEnv(k); ok {
			os.Unsetenv(k)
			t.Cleanup(func() { os.Setenv(k, v) })
		}
	}
}

// TestLoad tests the Load function with default values.
func TestLoad(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Env != "dev" {
		t.Errorf("Load() Env = %v, want %v", cfg.Env, "dev")
	}
	if cfg.Port != "8080" {
		t.Errorf("Load() Port = %v, want %v", cfg.Port, "8080")
	}
	if cfg.AppID != "asa1db" {
		t.Errorf("Load() AppID = %v, want %v", cfg.AppID, "asa1db")
	}
	if cfg.SwipeThreshold != 50 {
		t.Errorf("Load() SwipeThreshold = %v, want 50", cfg.SwipeThreshold)
	}
	if !cfg.SeedOnEmpty {
		t.Errorf("Load() SeedOnEmpty = false, want true")
	}
	if err := cfg.RequireAuth(); err == nil {
		t.Errorf("RequireAuth() succeeded without issuer and audience")
	}
}

// TestLoadWithEnv tests the Load function with environment variables set.
func TestLoadWithEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("REELS_ENV", "test")
	t.Setenv("REELS_PORT", "9090")
	t.Setenv("REELS_STORE", "redis")
	t.Setenv("REELS_REDIS_ADDR", "localhost:6379")
	t.Setenv("REELS_REDIS_DB", "3")
	t.Setenv("REELS_JWT_ISSUER", "test-issuer")
	t.Setenv("REELS_JWT_AUDIENCE", "test-audience")
	t.Setenv("REELS_SWIPE_THRESHOLD", "72.5")
	t.Setenv("REELS_SEED_ON_EMPTY", "false")
	t.Setenv("REELS_CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Env != "test" || cfg.Port != "9090" {
		t.Errorf("Load() Env/Port = %v/%v", cfg.Env, cfg.Port)
	}
	if cfg.Store != "redis" || cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 3 {
		t.Errorf("Load() redis settings = %q %q %d", cfg.Store, cfg.RedisAddr, cfg.RedisDB)
	}
	if cfg.SwipeThreshold != 72.5 {
		t.Errorf("Load() SwipeThreshold = %v, want 72.5", cfg.SwipeThreshold)
	}
	if cfg.SeedOnEmpty {
		t.Errorf("Load() SeedOnEmpty = true, want false")
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "http://b.test" {
		t.Errorf("Load() CORSAllowedOrigins = %q", cfg.CORSAllowedOrigins)
	}
	if err := cfg.RequireAuth(); err != nil {
		t.Errorf("RequireAuth() error = %v", err)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"REELS_STORE":           "mongo",
		"REELS_REDIS_DB":        "x",
		"REELS_SWIPE_THRESHOLD": "-1",
		"REELS_MAX_MEDIA_SIZE":  "big",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)
			if _, err := Load(); err == nil {
				t.Errorf("Load() accepted %s=%q", key, val)
			}
		})
	}
}
