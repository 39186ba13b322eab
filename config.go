package funnel

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds configuration for the Dispatcher.
type Config struct {
	// Concurrency is the maximum number of concurrently active worker
	// activations (the queue's concurrency ceiling). Must be at least 1.
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	// MaxBacklog is the maximum number of tasks that may wait in the
	// queue before Submit blocks producers. Must be at least 1.
	MaxBacklog int `yaml:"max_backlog" json:"max_backlog"`

	// RateLimit is the maximum sustained admissions per second.
	// Zero disables rate limiting.
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"`

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int `yaml:"rate_burst" json:"rate_burst"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency: 10,
		MaxBacklog:  64,
	}
}

// LoadConfig reads a Config from a YAML or JSON file, chosen by file
// extension. Fields absent from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("funnel: read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("funnel: parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("funnel: parse JSON config: %w", err)
		}
	default:
		return cfg, fmt.Errorf("funnel: unsupported config format %q", ext)
	}

	return cfg, nil
}
