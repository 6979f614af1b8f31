package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bumpsafe/bumpsafe/pkg/models"
)

// Logger writes and queries check records in a dedicated SQLite database.
// Identities (user ids or anonymous fingerprints) are stored hashed.
type Logger struct {
	db   *sql.DB
	cfg  models.AuditConfig
	done chan struct{}
	wg   sync.WaitGroup
}

// New opens the audit SQLite database and creates the schema.
func New(cfg models.AuditConfig) (*Logger, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}

	l := &Logger{
		db:   db,
		cfg:  cfg,
		done: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.retentionLoop()

	return l, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS check_log (
		request_id      TEXT PRIMARY KEY,
		identity_hash   TEXT NOT NULL,
		identity_prefix TEXT NOT NULL,
		item            TEXT NOT NULL,
		risk_score      INTEGER NOT NULL,
		is_image        INTEGER NOT NULL DEFAULT 0,
		cached          INTEGER NOT NULL DEFAULT 0,
		degraded        INTEGER NOT NULL DEFAULT 0,
		latency_ms      INTEGER,
		created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_check_created ON check_log(created_at)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_check_prefix ON check_log(identity_prefix)`)
	return err
}

// Log inserts a check record.
func (l *Logger) Log(ctx context.Context, rec models.CheckRecord) error {
	if l == nil || l.db == nil {
		return nil
	}

	item := rec.Item
	if l.cfg.MaxItemLen > 0 && len(item) > l.cfg.MaxItemLen {
		item = item[:l.cfg.MaxItemLen]
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO check_log
		(request_id, identity_hash, identity_prefix, item, risk_score,
		 is_image, cached, degraded, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.IdentityHash, rec.IdentityPrefix, item, rec.RiskScore,
		rec.IsImage, rec.Cached, rec.Degraded, rec.LatencyMs, rec.CreatedAt,
	)
	return err
}

// Query returns check records matching the given options, newest first.
func (l *Logger) Query(ctx context.Context, opts models.AuditQueryOpts) ([]models.CheckRecord, error) {
	q := `SELECT request_id, identity_hash, identity_prefix, item, risk_score,
		is_image, cached, degraded, latency_ms, created_at
		FROM check_log WHERE 1=1`
	var args []any

	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since)
	}
	if opts.IdentityPrefix != "" {
		q += " AND identity_prefix = ?"
		args = append(args, opts.IdentityPrefix)
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var records []models.CheckRecord
	for rows.Next() {
		var r models.CheckRecord
		var latency sql.NullInt64
		if err := rows.Scan(
			&r.RequestID, &r.IdentityHash, &r.IdentityPrefix, &r.Item, &r.RiskScore,
			&r.IsImage, &r.Cached, &r.Degraded, &latency, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		r.LatencyMs = latency.Int64
		records = append(records, r)
	}
	return records, rows.Err()
}

// Stats returns per-day check counts with cache-hit and degraded splits.
func (l *Logger) Stats(ctx context.Context) ([]models.AuditStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT date(created_at) as day, count(*),
			sum(cached), sum(degraded)
		 FROM check_log GROUP BY day ORDER BY day DESC`)
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}
	defer rows.Close()

	var stats []models.AuditStat
	for rows.Next() {
		var s models.AuditStat
		var day sql.NullString
		var cached, degraded sql.NullInt64
		if err := rows.Scan(&day, &s.Count, &cached, &degraded); err != nil {
			return nil, fmt.Errorf("scan audit stat: %w", err)
		}
		s.Day = day.String
		s.Cached = int(cached.Int64)
		s.Degraded = int(degraded.Int64)
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes records older than the configured retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM check_log WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("audit cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			_, _ = l.Cleanup(context.Background())
		}
	}
}

// HashIdentity returns the SHA-256 hex hash and 8-char prefix for an
// identity (user id or fingerprint).
func HashIdentity(identity string) (hash, prefix string) {
	h := sha256.Sum256([]byte(identity))
	hash = hex.EncodeToString(h[:])
	if len(identity) > 8 {
		prefix = identity[:8]
	} else {
		prefix = identity
	}
	return hash, prefix
}
