package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskagent.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
model:
  provider: anthropic
  name: claude-sonnet-4-5-20250514
  max_tokens: 2048
agent:
  max_steps: 25
  memory_window: 5
tools:
  working_dir: /srv/agent
context:
  repo: billing-service
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Model.Provider != "anthropic" {
		t.Errorf("provider: %q", cfg.Model.Provider)
	}
	if cfg.Agent.MaxSteps != 25 || cfg.Agent.MemoryWindow != 5 {
		t.Errorf("agent section: %+v", cfg.Agent)
	}
	if cfg.Tools.WorkingDir != "/srv/agent" {
		t.Errorf("tools section: %+v", cfg.Tools)
	}
	if cfg.Context["repo"] != "billing-service" {
		t.Errorf("context: %v", cfg.Context)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level: %q", cfg.LogLevel)
	}
	// Unset fields keep their defaults.
	if cfg.Agent.MemoryCapacity != 50 || cfg.Tools.CommandTimeoutSec != 30 {
		t.Errorf("defaults lost: %+v %+v", cfg.Agent, cfg.Tools)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("TEST_AGENT_KEY", "sk-from-env")
	path := writeConfig(t, `
model:
  provider: openai
  api_key: ${TEST_AGENT_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Model.APIKey != "sk-from-env" {
		t.Errorf("env not expanded: %q", cfg.Model.APIKey)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFindConfig(t *testing.T) {
	path := writeConfig(t, "model:\n  provider: openai\n")

	found, err := FindConfig(path)
	if err != nil || found != path {
		t.Errorf("explicit path: (%q, %v)", found, err)
	}

	if _, err := FindConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("explicit missing path should fail")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}

	cfg.Model.Provider = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty provider should fail")
	}

	cfg = Default()
	cfg.LogLevel = "shouty"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown log level should fail")
	}

	cfg = Default()
	cfg.Agent.MaxSteps = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative max_steps should fail")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLogLevel(%q) = (%v, %v)", tt.in, got, err)
		}
	}
	if _, err := ParseLogLevel("bogus"); err == nil {
		t.Error("unknown level should fail")
	}
}
