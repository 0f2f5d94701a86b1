package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"pokescout/internal/domain"
)

// marshalIndent and writeFile are used by WriteDefault and Save; tests may replace to force errors.
var (
	marshalIndent = json.MarshalIndent
	writeFile     = os.WriteFile
)

// Default returns the configuration used when no file exists. Cache tuning
// mirrors the documented defaults: 24h research TTL, 6h resource TTL, 0.95
// similarity threshold, 5-iteration budget.
func Default() *domain.Config {
	return &domain.Config{
		Gateway: domain.GatewayConfig{Port: 5002},
		Agent: domain.AgentConfig{
			Provider:       "openai",
			Model:          "gpt-4-turbo-preview",
			MaxIterations:  5,
			ExploreDepth:   3,
			ResultTokens:   2000,
			Encoding:       "cl100k_base",
			RequestTimeout: 60,
		},
		Cache: domain.CacheConfig{
			Strategy:            "exact",
			TTLHours:            24,
			ResourceTTLHours:    6,
			SimilarityThreshold: 0.95,
			EmbedModel:          "nomic-embed-text",
			SweepSchedule:       "@hourly",
			DatabaseURL:         "file:pokescout.db",
		},
		Retry: domain.RetryConfig{
			MaxRetries:     3,
			InitialBackoff: 500,
			MaxBackoff:     30000,
			Multiplier:     2,
		},
		Infra: domain.InfraConfig{LogFormat: "text", LogLevel: "info"},
	}
}

// WriteDefault writes the default Config to path (e.g. pokescout.json).
// Parent directories are not created.
func WriteDefault(path string) error {
	data, err := marshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, data, 0644)
}

// Load reads path, unmarshals into domain.Config (JSON, or YAML when the file
// ends in .yaml/.yml), and validates. Returns an error if the file is missing
// or malformed.
func Load(path string) (*domain.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	var c domain.Config
	if isYAML(path) {
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("config parse: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("config parse: %w", err)
		}
	}
	if err := Validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// isYAML reports whether path uses a YAML extension.
func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Validate checks the fields the research loop depends on. Zero values that
// have safe defaults are filled in rather than rejected.
func Validate(c *domain.Config) error {
	if c == nil {
		return fmt.Errorf("config: nil config")
	}
	if c.Gateway.Port < 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("config: gateway port must be 0-65535, got %d", c.Gateway.Port)
	}
	switch c.Cache.Strategy {
	case "", "exact", "semantic":
	default:
		return fmt.Errorf("config: unknown cache strategy %q", c.Cache.Strategy)
	}
	if c.Cache.SimilarityThreshold < 0 || c.Cache.SimilarityThreshold > 1 {
		return fmt.Errorf("config: similarity threshold must be in [0,1], got %v", c.Cache.SimilarityThreshold)
	}
	if c.Cache.Strategy == "" {
		c.Cache.Strategy = "exact"
	}
	if c.Agent.MaxIterations <= 0 {
		c.Agent.MaxIterations = 5
	}
	if c.Agent.ExploreDepth <= 0 {
		c.Agent.ExploreDepth = 3
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = 24
	}
	if c.Cache.ResourceTTLHours <= 0 {
		c.Cache.ResourceTTLHours = 6
	}
	if c.Cache.SimilarityThreshold == 0 {
		c.Cache.SimilarityThreshold = 0.95
	}
	return nil
}

// Save writes cfg to path as indented JSON.
func Save(path string, cfg *domain.Config) error {
	if cfg == nil {
		return fmt.Errorf("config save: nil config")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config save mkdir: %w", err)
	}
	data, err := marshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config save marshal: %w", err)
	}
	if err := writeFile(path, data, 0644); err != nil {
		return fmt.Errorf("config save write: %w", err)
	}
	return nil
}
