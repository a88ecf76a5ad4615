package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("QUIZ_JWT_SECRET", "s3cret")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `server:
  port: "9090"
redis:
  addr: localhost:6379
  ttl: 5m
postgres:
  url: postgres://quiz@localhost/quiz
quiz:
  ttl: 2m
  seed: 7
auth:
  jwt_secret: ${QUIZ_JWT_SECRET}
  token_ttl: 12h
presence:
  interval: 15s
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Redis.Addr != "localhost:6379" || cfg.Postgres.URL == "" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Fatalf("expected secret from environment, got %q", cfg.Auth.JWTSecret)
	}
	if cfg.Quiz.Seed != 7 || TTLDuration(cfg.Presence.Interval, time.Minute) != 15*time.Second {
		t.Fatalf("unexpected quiz/presence config %+v %+v", cfg.Quiz, cfg.Presence)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(path, []byte("server: [unclosed"), 0o600)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestTTLDuration(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("empty should fall back, got %v", got)
	}
	if got := TTLDuration("nonsense", time.Minute); got != time.Minute {
		t.Fatalf("invalid should fall back, got %v", got)
	}
	if got := TTLDuration("90s", time.Minute); got != 90*time.Second {
		t.Fatalf("expected 90s, got %v", got)
	}
}
