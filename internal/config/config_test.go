package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_MatchesWindowDefaults(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	win := cfg.StreamWindow()
	if win.LiveLimit != 500 || win.FlushThreshold != 400 || win.FlushBatchSize != 100 {
		t.Fatalf("unexpected window defaults: %+v", win)
	}
	if cfg.History.MaxRows != 500 {
		t.Fatalf("History.MaxRows = %d, want 500", cfg.History.MaxRows)
	}
	b := cfg.RenderBudget()
	if b.MinInterval != 16*time.Millisecond || b.MaxInterval != 200*time.Millisecond {
		t.Fatalf("unexpected budget range: %s..%s", b.MinInterval, b.MaxInterval)
	}
}

func TestLoad_MissingFile_UsesDefaults(t *testing.T) {
	t.Setenv(EnvHistoryRows, "")
	t.Setenv(EnvLiveLimit, "")

	dir := t.TempDir()
	path := filepath.Join(dir, "render.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source != path {
		t.Fatalf("cfg.Source = %q, want %q", cfg.Source, path)
	}
	if cfg.Window.LiveLimit != 500 {
		t.Fatalf("cfg.Window.LiveLimit = %d, want 500", cfg.Window.LiveLimit)
	}
}

func TestLoad_FromTOMLAndEnv(t *testing.T) {
	t.Setenv(EnvHistoryRows, "")
	t.Setenv(EnvLiveLimit, "900")

	dir := t.TempDir()
	path := filepath.Join(dir, "render.toml")
	if err := os.WriteFile(path, []byte(`
log_level = "debug"

[window]
flush_threshold = 300

[history]
max_rows = 2000
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Window.FlushThreshold != 300 {
		t.Fatalf("FlushThreshold = %d, want 300", cfg.Window.FlushThreshold)
	}
	if cfg.Window.FlushBatchSize != 100 {
		t.Fatalf("FlushBatchSize = %d, want default 100", cfg.Window.FlushBatchSize)
	}
	if cfg.History.MaxRows != 2000 {
		t.Fatalf("MaxRows = %d, want 2000", cfg.History.MaxRows)
	}
	if cfg.Window.LiveLimit != 900 {
		t.Fatalf("LiveLimit = %d, want env override 900", cfg.Window.LiveLimit)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "render.toml")
	if err := os.WriteFile(path, []byte("[window\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv(EnvHistoryRows, "")
	t.Setenv(EnvLiveLimit, "")

	path := filepath.Join(t.TempDir(), "nested", "render.toml")
	cfg := Default()
	cfg.History.MaxRows = 42
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.History.MaxRows != 42 {
		t.Fatalf("MaxRows = %d, want 42", got.History.MaxRows)
	}
}

func TestApplyKVOverrides(t *testing.T) {
	cfg := ApplyKVOverrides(Default(), []string{
		"window.flush_batch_size=25",
		"budget.backoff=2",
		"viewport.follow=false",
		"history.max_rows=oops",
		"unknown=1",
		"malformed",
	})
	if cfg.Window.FlushBatchSize != 25 {
		t.Fatalf("FlushBatchSize = %d, want 25", cfg.Window.FlushBatchSize)
	}
	if cfg.Budget.Backoff != 2 {
		t.Fatalf("Backoff = %v, want 2", cfg.Budget.Backoff)
	}
	if cfg.Viewport.Follow {
		t.Fatalf("Follow should be false")
	}
	if cfg.History.MaxRows != 500 {
		t.Fatalf("MaxRows = %d, want unchanged 500", cfg.History.MaxRows)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		kv   string
	}{
		{name: "threshold above limit", kv: "window.flush_threshold=600"},
		{name: "negative history", kv: "history.max_rows=-1"},
		{name: "inverted budget", kv: "budget.min_ms=500"},
		{name: "speedup above one", kv: "budget.speedup=1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ApplyKVOverrides(Default(), []string{tt.kv})
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for %s", tt.kv)
			}
		})
	}
}
