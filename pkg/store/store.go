package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/bumpsafe/bumpsafe/pkg/models"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// Store is the durable user aggregate: users, their quota window, and
// their capped check history.
type Store struct {
	db         *sql.DB
	historyCap int

	now func() time.Time
}

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	token TEXT NOT NULL UNIQUE,
	tier TEXT NOT NULL DEFAULT 'free',
	search_count INTEGER NOT NULL DEFAULT 0,
	window_start DATETIME NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_users_token ON users(token);
`

const createHistoryTable = `
CREATE TABLE IF NOT EXISTS history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	item TEXT NOT NULL,
	risk_score INTEGER NOT NULL,
	is_image INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_user_time ON history(user_id, created_at);
`

// New opens the store and runs auto-migration.
func New(dbPath string, historyCap int) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open store db: %w", err)
	}

	if _, err := db.Exec(createUsersTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate users table: %w", err)
	}
	if _, err := db.Exec(createHistoryTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history table: %w", err)
	}

	return &Store{db: db, historyCap: historyCap, now: time.Now}, nil
}

// CreateUser inserts a new free-tier user and issues a bearer token.
func (s *Store) CreateUser(ctx context.Context, email string, tier models.Tier) (models.User, error) {
	if !tier.Valid() {
		tier = models.TierFree
	}
	now := s.now()
	u := models.User{
		ID:          uuid.NewString(),
		Email:       email,
		Token:       uuid.NewString(),
		Tier:        tier,
		WindowStart: now,
		CreatedAt:   now,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, token, tier, search_count, window_start, created_at)
		 VALUES (?, ?, ?, ?, 0, ?, ?)`,
		u.ID, u.Email, u.Token, string(u.Tier), u.WindowStart, u.CreatedAt,
	)
	if err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// UserByToken resolves a bearer token to a user record.
func (s *Store) UserByToken(ctx context.Context, token string) (models.User, error) {
	return s.userBy(ctx, "token", token)
}

// UserByEmail resolves an email address to a user record.
func (s *Store) UserByEmail(ctx context.Context, email string) (models.User, error) {
	return s.userBy(ctx, "email", email)
}

func (s *Store) userBy(ctx context.Context, column, value string) (models.User, error) {
	var u models.User
	var tier string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, token, tier, search_count, window_start, created_at
		 FROM users WHERE `+column+` = ?`, value,
	).Scan(&u.ID, &u.Email, &u.Token, &tier, &u.SearchCount, &u.WindowStart, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("lookup user: %w", err)
	}
	u.Tier = models.Tier(tier)
	return u, nil
}

// SetTier changes a user's subscription tier by email.
func (s *Store) SetTier(ctx context.Context, email string, tier models.Tier) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET tier = ? WHERE email = ?`, string(tier), email)
	if err != nil {
		return fmt.Errorf("set tier: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set tier: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// QuotaWindow reads the quota state for a user id.
func (s *Store) QuotaWindow(ctx context.Context, userID string) (models.QuotaWindow, error) {
	var w models.QuotaWindow
	var tier string
	err := s.db.QueryRowContext(ctx,
		`SELECT tier, search_count, window_start FROM users WHERE id = ?`, userID,
	).Scan(&tier, &w.Count, &w.WindowStart)
	if errors.Is(err, sql.ErrNoRows) {
		return models.QuotaWindow{}, ErrNotFound
	}
	if err != nil {
		return models.QuotaWindow{}, fmt.Errorf("quota window: %w", err)
	}
	w.Tier = models.Tier(tier)
	return w, nil
}

// ResetQuotaWindow zeroes the user's count and starts a new window at t.
func (s *Store) ResetQuotaWindow(ctx context.Context, userID string, t time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET search_count = 0, window_start = ? WHERE id = ?`, t, userID)
	if err != nil {
		return fmt.Errorf("reset quota window: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reset quota window: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementSearchCount debits one check from the user's current window.
func (s *Store) IncrementSearchCount(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET search_count = search_count + 1 WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("increment search count: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("increment search count: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddToHistory appends a check to the user's history and trims the
// oldest entries beyond the retention cap.
func (s *Store) AddToHistory(ctx context.Context, userID, item string, riskScore int, isImage bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (user_id, item, risk_score, is_image, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, item, riskScore, isImage, s.now(),
	)
	if err != nil {
		return fmt.Errorf("add to history: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM history WHERE user_id = ? AND id NOT IN (
			SELECT id FROM history WHERE user_id = ? ORDER BY id DESC LIMIT ?
		)`,
		userID, userID, s.historyCap,
	)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}
	return nil
}

// History returns the user's most recent checks, newest first.
func (s *Store) History(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 || limit > s.historyCap {
		limit = s.historyCap
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item, risk_score, is_image, created_at
		 FROM history WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.ID, &e.Item, &e.RiskScore, &e.IsImage, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns aggregate store counts.
func (s *Store) Stats(ctx context.Context) (users, historyEntries int64, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&users); err != nil {
		return 0, 0, fmt.Errorf("store stats: %w", err)
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&historyEntries); err != nil {
		return 0, 0, fmt.Errorf("store stats: %w", err)
	}
	return users, historyEntries, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
