package config

import (
	"testing"
)

// setRequiredEnv sets the minimum environment for Load to succeed.
// t.Setenv automatically restores the previous values after the test.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret-key-0123456789abcdef")
	t.Setenv("GITHUB_CLIENT_ID", "client-id")
	t.Setenv("GITHUB_CLIENT_SECRET", "client-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.DBPath != "data/splitr.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "data/splitr.db")
	}
	if cfg.EmailAPIBase != "https://api.resend.com" {
		t.Errorf("EmailAPIBase = %q, want the resend default", cfg.EmailAPIBase)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty (jobs disabled by default)", cfg.RedisAddr)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9999")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("DEBUG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q, want %q", cfg.RedisAddr, "localhost:6379")
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("GITHUB_CLIENT_ID", "client-id")
	t.Setenv("GITHUB_CLIENT_SECRET", "client-secret")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail without JWT_SECRET")
	}
}

func TestLoad_MissingGitHubCredentials(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key-0123456789abcdef")
	t.Setenv("GITHUB_CLIENT_ID", "")
	t.Setenv("GITHUB_CLIENT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should fail without GitHub OAuth credentials")
	}
}

func TestLoad_InvalidPort(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "70000")

	if _, err := Load(); err == nil {
		t.Fatal("Load() should reject an out-of-range port")
	}
}
