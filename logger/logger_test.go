package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "irisnet.log")
	cfg := DefaultConfig()
	cfg.File = path

	log, _, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log.Info("training completed", zap.Int("iterations", 42))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), `"iterations":42`) {
		t.Fatalf("log file missing entry: %s", data)
	}
}

func TestSetLevel(t *testing.T) {
	_, level, err := New(DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := SetLevel(level, "debug"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if level.Level() != zap.DebugLevel {
		t.Fatalf("expected debug, got %s", level.Level())
	}
	if err := SetLevel(level, "loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if level.Level() != zap.DebugLevel {
		t.Fatal("level changed on parse failure")
	}
}

func TestNewRejectsUnknownEncoding(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Encoding = "xml"
	if _, _, err := New(cfg); err == nil {
		t.Fatal("expected error")
	}
}
