package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, `
http:
  port: 9090
  timeout: 5s
log:
  level: debug
ml:
  max_iterations: 500
  hidden_layers: [4, 4]
form:
  strict_input: false
`)
	config, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Http.Port != 9090 || config.Http.Timeout != 5*time.Second {
		t.Fatalf("unexpected http config %+v", config.Http)
	}
	if config.Log.Level != "debug" {
		t.Fatalf("expected debug level, got %s", config.Log.Level)
	}
	if config.ML.MaxIterations != 500 || len(config.ML.HiddenLayers) != 2 {
		t.Fatalf("unexpected ml config %+v", config.ML)
	}
	if config.ML.ErrorThreshold != 0.005 || config.ML.LogPeriod != 100 || !config.ML.Log {
		t.Fatalf("defaults lost: %+v", config.ML)
	}
	if config.Form.StrictInput {
		t.Fatal("expected strict_input to be disabled")
	}
	if config.Cache.Size != 1024 || config.Database.Path == "" {
		t.Fatalf("defaults lost: cache=%d db=%q", config.Cache.Size, config.Database.Path)
	}
}

func TestLoadRejectsInvalidTraining(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "ml:\n  max_iterations: -1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "log:\n  level: info\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 16)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zap.NewNop(), func(c *Config) { changes <- c })
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case c := <-changes:
			// a reload can race the truncating write and see the old file
			if c.Log.Level != "warn" {
				continue
			}
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			return
		case <-tick.C:
			writeConfig(t, path, "log:\n  level: warn\n")
		case <-deadline:
			t.Fatal("config change not observed")
		}
	}
}
