package scraper

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Source is one vendor catalog feed: a URL serving a JSON array of raw
// listings for a single brand and appliance type.
type Source struct {
	Brand         string `yaml:"brand"`
	ApplianceType string `yaml:"appliance_type"`
	URL           string `yaml:"url"`
}

// Config configures the catalog scraper.
type Config struct {
	UserAgent   string            `yaml:"user_agent"`
	RateMillis  int               `yaml:"rate_ms"` // min interval between requests
	Burst       int               `yaml:"burst"`
	TimeoutSecs int               `yaml:"timeout_secs"`
	MaxAttempts int               `yaml:"max_attempts"`
	Headers     map[string]string `yaml:"headers"`
	Sources     []Source          `yaml:"sources"`
}

// LoadConfig reads the YAML source list from path. A config without any
// usable source is an error: a fetcher with nothing to fetch is always a
// misconfiguration.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	applyDefaults(&cfg)

	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("sources file %s defines no sources", path)
	}
	for i, src := range cfg.Sources {
		if src.Brand == "" || src.URL == "" {
			return nil, fmt.Errorf("source %d: brand and url are required", i)
		}
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "FixwellBot/1.0 (parts catalog ingest)"
	}
	if cfg.RateMillis <= 0 {
		cfg.RateMillis = 500
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 2
	}
	if cfg.TimeoutSecs <= 0 {
		cfg.TimeoutSecs = 30
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
}
