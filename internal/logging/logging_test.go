package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestValidLevel(t *testing.T) {
	for _, s := range []string{"debug", "info", "warn", "error"} {
		if !ValidLevel(s) {
			t.Errorf("ValidLevel(%q) = false", s)
		}
	}
	if ValidLevel("trace") {
		t.Error("ValidLevel(trace) = true")
	}
}

func TestNewWithoutFile(t *testing.T) {
	logger, lvl, closer := New(DefaultConfig())
	if logger == nil {
		t.Fatal("nil logger")
	}
	if closer != nil {
		t.Error("expected nil closer without a file path")
	}
	lvl.Set(slog.LevelDebug)
	if !logger.Enabled(nil, slog.LevelDebug) { //nolint:staticcheck
		t.Error("level var change did not take effect")
	}
}

func TestNewWithFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FilePath = filepath.Join(t.TempDir(), "marquee.log")

	logger, _, closer := New(cfg)
	if closer == nil {
		t.Fatal("expected a closer for the file writer")
	}
	logger.Info("hello")
	if err := closer.Close(); err != nil {
		t.Fatalf("closing log writer: %v", err)
	}
	if _, err := os.Stat(cfg.FilePath); err != nil {
		t.Errorf("log file was not created: %v", err)
	}
}
