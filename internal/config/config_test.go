package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("port: got %d, want 5000", cfg.Server.Port)
	}
	if cfg.Spotify.ResultLimit != 10 {
		t.Errorf("result limit: got %d, want 10", cfg.Spotify.ResultLimit)
	}
	if cfg.Reset.TokenTTL != time.Hour {
		t.Errorf("token ttl: got %s, want 1h", cfg.Reset.TokenTTL)
	}
	if cfg.Database.MaxConns != 5 {
		t.Errorf("max conns: got %d, want 5", cfg.Database.MaxConns)
	}
	if cfg.Spotify.Enabled() {
		t.Errorf("spotify should be disabled without credentials")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  cors_origins: ["http://a.test"]
spotify:
  client_id: file-id
  client_secret: file-secret
  timeout: 3s
reset:
  token_ttl: 15m
`)

	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("EMOTUNE_CORS_ORIGINS", "http://b.test, http://c.test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port: got %d, want 9090", cfg.Server.Port)
	}
	if cfg.Spotify.ClientID != "env-id" {
		t.Errorf("client id: got %q, want env override", cfg.Spotify.ClientID)
	}
	if cfg.Spotify.ClientSecret != "file-secret" {
		t.Errorf("client secret: got %q", cfg.Spotify.ClientSecret)
	}
	if cfg.Spotify.Timeout != 3*time.Second {
		t.Errorf("timeout: got %s", cfg.Spotify.Timeout)
	}
	if cfg.Reset.TokenTTL != 15*time.Minute {
		t.Errorf("token ttl: got %s", cfg.Reset.TokenTTL)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "http://c.test" {
		t.Errorf("cors origins: got %v", cfg.Server.CORSOrigins)
	}
	if !cfg.Spotify.Enabled() {
		t.Errorf("spotify should be enabled")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadNonPositiveDurationsUseDefaults(t *testing.T) {
	path := writeConfig(t, `
reset:
  token_ttl: -5m
  sweep_interval: -1m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Reset.TokenTTL != time.Hour {
		t.Errorf("token ttl: got %s, want 1h", cfg.Reset.TokenTTL)
	}
	if cfg.Reset.SweepInterval != 10*time.Minute {
		t.Errorf("sweep interval: got %s, want 10m", cfg.Reset.SweepInterval)
	}
}
