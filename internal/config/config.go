// Package config loads agent configuration from a YAML file with
// environment-variable overrides, and watches it for changes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full agent configuration.
type Config struct {
	Memory   MemoryConfig   `yaml:"memory"`
	Sessions SessionsConfig `yaml:"sessions"`
	Model    ModelConfig    `yaml:"model"`
}

// MemoryConfig bounds the prompt context window.
type MemoryConfig struct {
	// Window is the number of recent turns included in prompt context.
	Window int `yaml:"window"`
}

// SessionsConfig controls where and how sessions persist.
type SessionsConfig struct {
	Dir     string `yaml:"dir"`
	Backend string `yaml:"backend"` // "file" (default) or "sqlite"
}

// ModelConfig parameterizes the model endpoint connection.
type ModelConfig struct {
	Host           string  `yaml:"host"`
	Port           int     `yaml:"port"`
	Name           string  `yaml:"name"`
	MaxRetries     int     `yaml:"max_retries"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Temperature    float64 `yaml:"temperature"`
}

// Endpoint returns the base URL of the model endpoint.
func (m ModelConfig) Endpoint() string {
	return fmt.Sprintf("http://%s:%d", m.Host, m.Port)
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Memory: MemoryConfig{Window: 10},
		Sessions: SessionsConfig{
			Dir:     filepath.Join(home, ".tsagent", "sessions"),
			Backend: "file",
		},
		Model: ModelConfig{
			Host:           "127.0.0.1",
			Port:           11434,
			MaxRetries:     3,
			TimeoutSeconds: 60,
			Temperature:    0.7,
		},
	}
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tsagent", "config.yaml")
}

// Load reads the config file at path, layering file values over
// defaults and environment overrides over both. A missing file is not
// an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// defaults + env only
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.Memory.Window <= 0 {
		cfg.Memory.Window = 10
	}
	if cfg.Model.MaxRetries < 0 {
		cfg.Model.MaxRetries = 0
	}
	return cfg, nil
}

// applyEnv layers TSAGENT_* environment overrides onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TSAGENT_MEMORY_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Memory.Window = n
		}
	}
	if v := os.Getenv("TSAGENT_SESSIONS_DIR"); v != "" {
		cfg.Sessions.Dir = v
	}
	if v := os.Getenv("TSAGENT_SESSIONS_BACKEND"); v != "" {
		cfg.Sessions.Backend = v
	}
	if v := os.Getenv("TSAGENT_MODEL_HOST"); v != "" {
		cfg.Model.Host = v
	}
	if v := os.Getenv("TSAGENT_MODEL_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Model.Port = n
		}
	}
	if v := os.Getenv("TSAGENT_MODEL_NAME"); v != "" {
		cfg.Model.Name = v
	}
}
