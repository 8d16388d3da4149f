// Package config handles taskagent configuration loading.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./taskagent.yaml, ~/.config/taskagent/config.yaml,
// /etc/taskagent/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"taskagent.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "taskagent", "config.yaml"))
	}

	paths = append(paths, "/etc/taskagent/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all taskagent configuration.
type Config struct {
	Model    ModelConfig       `yaml:"model"`
	Agent    AgentConfig       `yaml:"agent"`
	Tools    ToolsConfig       `yaml:"tools"`
	Context  map[string]string `yaml:"context"`
	LogLevel string            `yaml:"log_level"`
}

// ModelConfig defines the LLM provider settings.
type ModelConfig struct {
	Provider    string  `yaml:"provider"` // openai, anthropic, ollama
	Name        string  `yaml:"name"`     // provider default when empty
	APIKey      string  `yaml:"api_key"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	MaxRetries  int     `yaml:"max_retries"`
}

// AgentConfig tunes the run loop.
type AgentConfig struct {
	// MaxSteps bounds a run (default 15).
	MaxSteps int `yaml:"max_steps"`
	// MemoryWindow is how many recent steps render into each prompt (default 3).
	MemoryWindow int `yaml:"memory_window"`
	// MemoryCapacity bounds the step history kept in memory (default 50).
	MemoryCapacity int `yaml:"memory_capacity"`
	// ResultBudget caps tool results before they enter memory (default 500).
	ResultBudget int `yaml:"result_budget"`
	// StepPauseMs is the delay between steps in milliseconds (default 500).
	StepPauseMs int `yaml:"step_pause_ms"`
	// MemoryFile, when set, is loaded before the run and saved after it.
	MemoryFile string `yaml:"memory_file"`
}

// ToolsConfig tunes the built-in tools.
type ToolsConfig struct {
	// WorkingDir roots file and command tools. Empty means the current
	// directory.
	WorkingDir string `yaml:"working_dir"`
	// CommandTimeoutSec bounds shell-backed tools (default 30).
	CommandTimeoutSec int `yaml:"command_timeout_sec"`
	// HTTPTimeoutSec bounds http_request (default 15).
	HTTPTimeoutSec int `yaml:"http_timeout_sec"`
	// DeniedPatterns blocks run_command invocations containing any of these
	// substrings (e.g. "rm -rf /").
	DeniedPatterns []string `yaml:"denied_patterns"`
}

// Load reads configuration from a YAML file. Environment variables in the
// file are expanded, so api_key can be written as ${OPENAI_API_KEY}.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:   "openai",
			MaxRetries: 2,
		},
		Agent: AgentConfig{
			MaxSteps:       15,
			MemoryWindow:   3,
			MemoryCapacity: 50,
			ResultBudget:   500,
			StepPauseMs:    500,
		},
		Tools: ToolsConfig{
			CommandTimeoutSec: 30,
			HTTPTimeoutSec:    15,
		},
		LogLevel: "info",
	}
}

// Validate checks the configuration for values that would break a run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Model.Provider) == "" {
		return fmt.Errorf("model.provider must be set")
	}
	if c.Agent.MaxSteps < 0 {
		return fmt.Errorf("agent.max_steps must not be negative")
	}
	if c.Agent.MemoryWindow < 0 {
		return fmt.Errorf("agent.memory_window must not be negative")
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLogLevel maps a config string to a slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
