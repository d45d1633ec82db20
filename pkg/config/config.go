// Package config handles configuration loading and management
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the pkgreview configuration.
type Config struct {
	Version string `json:"version" yaml:"version"`
	// Remote is the git remote of the package collection under review.
	Remote string `json:"remote,omitempty" yaml:"remote,omitempty"`
	// System is the platform identifier builds run for; defaults to
	// the evaluator's notion of the current system.
	System string `json:"system,omitempty" yaml:"system,omitempty"`
	// CacheDir holds checkouts, run state and review shells. Defaults
	// to ~/.cache/pkgreview.
	CacheDir string `json:"cacheDir,omitempty" yaml:"cacheDir,omitempty"`

	Build         BuildConfig         `json:"build" yaml:"build"`
	Logging       LoggingConfig       `json:"logging" yaml:"logging"`
	Notifications NotificationConfig  `json:"notifications" yaml:"notifications"`
	Host          HostConfig          `json:"host" yaml:"host"`
	Skip          SkipConfig          `json:"skip" yaml:"skip"`
}

// BuildConfig controls the build scheduler.
type BuildConfig struct {
	Concurrency int `json:"concurrency" yaml:"concurrency"`
	// TimeoutMinutes bounds each target's build.
	TimeoutMinutes int `json:"timeoutMinutes" yaml:"timeoutMinutes"`
	// RunDeadlineMinutes optionally bounds the whole run; 0 means none.
	RunDeadlineMinutes int `json:"runDeadlineMinutes,omitempty" yaml:"runDeadlineMinutes,omitempty"`
	// DiagnosticsTailBytes bounds per-target captured builder output.
	DiagnosticsTailBytes int `json:"diagnosticsTailBytes" yaml:"diagnosticsTailBytes"`
	// ExtraArgs are passed through to every builder invocation.
	ExtraArgs []string `json:"extraArgs,omitempty" yaml:"extraArgs,omitempty"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	File  string `json:"file,omitempty" yaml:"file,omitempty"`
	Level string `json:"level" yaml:"level"`
}

// NotificationConfig represents notification preferences
type NotificationConfig struct {
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// HostConfig configures the review-request metadata source.
type HostConfig struct {
	Owner string `json:"owner" yaml:"owner"`
	Repo  string `json:"repo" yaml:"repo"`
	// TokenEnv names the environment variable holding the API token.
	TokenEnv string `json:"tokenEnv" yaml:"tokenEnv"`
}

// SkipConfig lists targets excluded from building.
type SkipConfig struct {
	// Targets are skipped by choice and reported as such.
	Targets []string `json:"targets,omitempty" yaml:"targets,omitempty"`
	// CheckUpstreamCI splits build failures into new vs. pre-existing
	// using the upstream CI status.
	CheckUpstreamCI bool `json:"checkUpstreamCI" yaml:"checkUpstreamCI"`
}

// Manager handles configuration operations
type Manager struct{}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// LoadConfig loads configuration from a file. JSON is tried first,
// then YAML.
func (m *Manager) LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err == nil {
		return m.finalize(&cfg)
	}

	if err := yaml.Unmarshal(data, &cfg); err == nil {
		return m.finalize(&cfg)
	}

	return nil, fmt.Errorf("failed to parse config as JSON or YAML")
}

// Default returns the built-in configuration.
func (m *Manager) Default() *Config {
	cfg := &Config{Version: "1.0"}
	cfg, _ = m.finalize(cfg)
	return cfg
}

// ValidateConfig validates a configuration
func (m *Manager) ValidateConfig(cfg *Config) error {
	if cfg.Version != "1.0" {
		return fmt.Errorf("unsupported config version: %s", cfg.Version)
	}
	if cfg.Build.Concurrency < 1 {
		return fmt.Errorf("build.concurrency must be at least 1, got %d", cfg.Build.Concurrency)
	}
	if cfg.Build.TimeoutMinutes < 1 {
		return fmt.Errorf("build.timeoutMinutes must be at least 1, got %d", cfg.Build.TimeoutMinutes)
	}
	if cfg.Build.DiagnosticsTailBytes < 1 {
		return fmt.Errorf("build.diagnosticsTailBytes must be positive, got %d", cfg.Build.DiagnosticsTailBytes)
	}
	return nil
}

// Timeout returns the per-target timeout as a duration.
func (c *BuildConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMinutes) * time.Minute
}

// RunDeadline returns the whole-run deadline, or zero when unset.
func (c *BuildConfig) RunDeadline() time.Duration {
	return time.Duration(c.RunDeadlineMinutes) * time.Minute
}

func (m *Manager) finalize(cfg *Config) (*Config, error) {
	if cfg.Version == "" {
		cfg.Version = "1.0"
	}
	if cfg.Remote == "" {
		cfg.Remote = "https://github.com/NixOS/nixpkgs"
	}
	if cfg.CacheDir == "" {
		cacheHome, err := os.UserCacheDir()
		if err != nil {
			cacheHome = os.TempDir()
		}
		cfg.CacheDir = filepath.Join(cacheHome, "pkgreview")
	}
	if cfg.Build.Concurrency == 0 {
		cfg.Build.Concurrency = runtime.NumCPU()
	}
	if cfg.Build.TimeoutMinutes == 0 {
		cfg.Build.TimeoutMinutes = 30
	}
	if cfg.Build.DiagnosticsTailBytes == 0 {
		cfg.Build.DiagnosticsTailBytes = 32 * 1024
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Host.Owner == "" {
		cfg.Host.Owner = "NixOS"
	}
	if cfg.Host.Repo == "" {
		cfg.Host.Repo = "nixpkgs"
	}
	if cfg.Host.TokenEnv == "" {
		cfg.Host.TokenEnv = "GITHUB_TOKEN"
	}
	if err := m.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
