package models

import "time"

// CheckRecord is one audited safety check, authenticated or anonymous.
// The identity is stored hashed; only an 8-char prefix stays readable.
type CheckRecord struct {
	RequestID      string    `json:"request_id"`
	IdentityHash   string    `json:"identity_hash"`
	IdentityPrefix string    `json:"identity_prefix"`
	Item           string    `json:"item"`
	RiskScore      int       `json:"risk_score"`
	IsImage        bool      `json:"is_image"`
	Cached         bool      `json:"cached"`
	Degraded       bool      `json:"degraded"`
	LatencyMs      int64     `json:"latency_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// AuditConfig controls the check audit log.
type AuditConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DBPath        string `yaml:"db_path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxItemLen    int    `yaml:"max_item_len"`
}

// AuditQueryOpts specifies filters for querying check records.
type AuditQueryOpts struct {
	Since          time.Time
	IdentityPrefix string
	Limit          int
}

// AuditStat holds per-day check counts.
type AuditStat struct {
	Day      string
	Count    int
	Cached   int
	Degraded int
}
