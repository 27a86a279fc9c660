package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte(`
server:
  port: "9000"
  base_url: https://api.example.com
  trusted_proxies: ["10.0.0.0/8", "192.0.2.1"]
auth:
  jwt_secret: from-yaml
  bcrypt_cost: 12
storage:
  driver: postgres
otp:
  ttl: 2m
`)
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("JWT_SECRET", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9000" || cfg.Server.BaseURL != "https://api.example.com" {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if len(cfg.Server.TrustedProxies) != 2 || cfg.Server.TrustedProxies[1] != "192.0.2.1" {
		t.Fatalf("trusted proxies: %v", cfg.Server.TrustedProxies)
	}
	if cfg.Auth.JWTSecret != "from-env" {
		t.Fatalf("expected env to override yaml, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.BcryptCost != 12 || cfg.Storage.Driver != "postgres" {
		t.Fatalf("yaml values lost: %+v %+v", cfg.Auth, cfg.Storage)
	}
	if got := TTLDuration(cfg.OTP.TTL, time.Minute); got != 2*time.Minute {
		t.Fatalf("expected 2m otp ttl, got %v", got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.FrontendURL != "http://localhost:3000" || cfg.Server.UploadDir != "uploads" {
		t.Fatalf("defaults not applied: %+v", cfg.Server)
	}
	if cfg.Storage.Driver != "memory" || cfg.Mail.Driver != "log" || cfg.Avatar.Driver != "local" {
		t.Fatalf("unexpected drivers: storage=%s mail=%s avatar=%s", cfg.Storage.Driver, cfg.Mail.Driver, cfg.Avatar.Driver)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", 5*time.Minute); got != 5*time.Minute {
		t.Fatalf("empty: got %v", got)
	}
	if got := TTLDuration("bogus", 5*time.Minute); got != 5*time.Minute {
		t.Fatalf("invalid: got %v", got)
	}
}
