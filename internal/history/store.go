// Package history persists per-user conversation exchanges and profile
// facts in a local SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS exchanges (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	user_text TEXT NOT NULL,
	assistant_text TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_exchanges_user ON exchanges(user_id, id);

CREATE TABLE IF NOT EXISTS facts (
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	value TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (user_id, name)
);
`

// Exchange is one stored user/assistant turn.
type Exchange struct {
	User      string
	Assistant string
	CreatedAt time.Time
}

// Store persists conversation history in SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the history store, creating tables on first use.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("history db path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create history tables: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// AppendExchange records one completed turn for a user.
func (s *Store) AppendExchange(ctx context.Context, userID, userText, assistantText string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO exchanges (user_id, user_text, assistant_text, created_at)
		 VALUES (?, ?, ?, ?)`,
		userID, userText, assistantText, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append exchange: %w", err)
	}
	return nil
}

// RecentExchanges returns up to limit most recent turns for a user,
// ordered oldest first so they read as a transcript.
func (s *Store) RecentExchanges(ctx context.Context, userID string, limit int) ([]Exchange, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT user_text, assistant_text, created_at
		   FROM exchanges
		  WHERE user_id = ?
		  ORDER BY id DESC
		  LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent exchanges: %w", err)
	}
	defer rows.Close()

	var out []Exchange
	for rows.Next() {
		var e Exchange
		var createdAt int64
		if err := rows.Scan(&e.User, &e.Assistant, &createdAt); err != nil {
			return nil, fmt.Errorf("recent exchanges: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent exchanges: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// SaveFact upserts one named profile fact for a user.
func (s *Store) SaveFact(ctx context.Context, userID, name, value string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(name) == "" {
		return fmt.Errorf("user id and fact name are required")
	}
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO facts (user_id, name, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userID, name, value, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save fact: %w", err)
	}
	return nil
}

// Facts returns all stored facts for a user as "name: value" lines.
func (s *Store) Facts(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT name, value FROM facts WHERE user_id = ? ORDER BY name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("facts: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("facts: %w", err)
		}
		out = append(out, name+": "+value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("facts: %w", err)
	}
	return out, nil
}
