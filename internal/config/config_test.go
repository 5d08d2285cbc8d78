package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Resolver.DefaultTrackCount != 1 {
		t.Errorf("default track count = %d, want 1", cfg.Resolver.DefaultTrackCount)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
spotify:
  client_id: abc
  market: DE
resolver:
  default_track_count: 3
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Spotify.Market != "DE" {
		t.Errorf("market = %q, want DE", cfg.Spotify.Market)
	}
	if cfg.Resolver.DefaultTrackCount != 3 {
		t.Errorf("track count = %d, want 3", cfg.Resolver.DefaultTrackCount)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Server.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MQ_PORT", "7000")
	t.Setenv("MQ_SPOTIFY_MARKET", "GB")
	t.Setenv("MQ_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("port = %d, want 7000", cfg.Server.Port)
	}
	if cfg.Spotify.Market != "GB" {
		t.Errorf("market = %q, want GB", cfg.Spotify.Market)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level = %q, want warn", cfg.Logging.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	if err := cfg.validate(); err == nil {
		t.Error("expected error for port 0")
	}

	cfg = Default()
	cfg.Logging.Level = "loud"
	if err := cfg.validate(); err == nil {
		t.Error("expected error for bad log level")
	}

	cfg = Default()
	cfg.Resolver.DefaultTrackCount = 0
	if err := cfg.validate(); err == nil {
		t.Error("expected error for zero track count")
	}
}

func TestValidateTrimsBasePath(t *testing.T) {
	cfg := Default()
	cfg.Server.BasePath = "/marquee/"
	if err := cfg.validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Server.BasePath != "/marquee" {
		t.Errorf("base path = %q, want trailing slash trimmed", cfg.Server.BasePath)
	}
}
