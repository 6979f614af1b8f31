package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Listen != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.Listen)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Errorf("expected 1h TTL, got %v", cfg.Cache.TTL)
	}
	if cfg.Quota.FreeDailyLimit != 1 {
		t.Errorf("expected 1 free check per day, got %d", cfg.Quota.FreeDailyLimit)
	}
	if cfg.History.Cap != 50 {
		t.Errorf("expected history cap 50, got %d", cfg.History.Cap)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_API_KEY", "sk-test-123")

	content := `
listen: ":9090"
db_path: "test.db"
reasoner:
  url: https://api.openai.com
  api_key: ${TEST_API_KEY}
  model: gpt-4o
cache:
  enabled: true
  ttl: 30m
quota:
  free_daily_limit: 3
  trial_daily_limit: 1
audit:
  enabled: true
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Listen != ":9090" {
		t.Errorf("expected :9090, got %s", cfg.Listen)
	}
	if cfg.Reasoner.APIKey != "sk-test-123" {
		t.Errorf("env var not expanded: got %s", cfg.Reasoner.APIKey)
	}
	if cfg.Reasoner.Model != "gpt-4o" {
		t.Errorf("expected gpt-4o, got %s", cfg.Reasoner.Model)
	}
	if cfg.Cache.TTL != 30*time.Minute {
		t.Errorf("expected 30m TTL, got %v", cfg.Cache.TTL)
	}
	if cfg.Quota.FreeDailyLimit != 3 {
		t.Errorf("expected free limit 3, got %d", cfg.Quota.FreeDailyLimit)
	}
	// Audit shares the main database when no path is given.
	if cfg.Audit.DBPath != "test.db" {
		t.Errorf("expected audit to default to db_path, got %s", cfg.Audit.DBPath)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadKeepsDefaults(t *testing.T) {
	content := `listen: ":9090"`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Reasoner.Timeout != 40*time.Second {
		t.Errorf("expected default timeout, got %v", cfg.Reasoner.Timeout)
	}
	if cfg.Cache.SweepThreshold != 100 {
		t.Errorf("expected default sweep threshold, got %d", cfg.Cache.SweepThreshold)
	}
}
