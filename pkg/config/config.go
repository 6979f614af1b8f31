package config

import (
	"fmt"
	"os"
	"time"

	"github.com/bumpsafe/bumpsafe/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds all BumpSafe configuration.
type Config struct {
	Listen   string             `yaml:"listen"`
	DBPath   string             `yaml:"db_path"`
	Reasoner ReasonerConfig     `yaml:"reasoner"`
	Cache    CacheConfig        `yaml:"cache"`
	Quota    QuotaConfig        `yaml:"quota"`
	History  HistoryConfig      `yaml:"history"`
	Audit    models.AuditConfig `yaml:"audit"`
}

// ReasonerConfig defines the external reasoning service.
type ReasonerConfig struct {
	URL       string        `yaml:"url"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxTokens int           `yaml:"max_tokens"`
}

// CacheConfig controls the in-memory response cache.
type CacheConfig struct {
	Enabled        bool          `yaml:"enabled"`
	TTL            time.Duration `yaml:"ttl"`
	SweepThreshold int           `yaml:"sweep_threshold"`
}

// QuotaConfig controls daily check limits per tier. Premium users are
// never limited; these numbers apply to free and anonymous callers.
type QuotaConfig struct {
	FreeDailyLimit  int `yaml:"free_daily_limit"`
	TrialDailyLimit int `yaml:"trial_daily_limit"`
}

// HistoryConfig controls per-user history retention.
type HistoryConfig struct {
	Cap int `yaml:"cap"`
}

// MaxImageBytes caps the base64 image payload accepted by /api/check.
// Clients resize photos to 512x512 before upload; this is a backstop.
const MaxImageBytes = 2 << 20

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":8080",
		DBPath: "bumpsafe.db",
		Reasoner: ReasonerConfig{
			URL:       "https://api.openai.com",
			Model:     "gpt-4o-mini",
			Timeout:   40 * time.Second,
			MaxTokens: 600,
		},
		Cache: CacheConfig{
			Enabled:        true,
			TTL:            time.Hour,
			SweepThreshold: 100,
		},
		Quota: QuotaConfig{
			FreeDailyLimit:  1,
			TrialDailyLimit: 1,
		},
		History: HistoryConfig{
			Cap: 50,
		},
		Audit: models.AuditConfig{
			Enabled:       false,
			RetentionDays: 30,
			MaxItemLen:    256,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Audit.Enabled && cfg.Audit.DBPath == "" {
		cfg.Audit.DBPath = cfg.DBPath
	}

	return cfg, nil
}
