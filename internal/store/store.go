package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on entries.updated_at
const currentSchemaVersion = 1

// SQLite is a Medium backed by a SQLite database file.
// Capacity is the total number of value bytes it will hold; zero means
// unlimited (the disk still bounds it, see isFullError).
type SQLite struct {
	db    *sql.DB
	quota int64
	now   func() time.Time
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// Use ":memory:" for a throwaway database.
// This function is idempotent - safe to call multiple times.
func Open(path string, quotaBytes int64) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, and an in-memory database
	// exists per connection, so keep exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLite{db: db, quota: quotaBytes, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get implements Medium.
func (s *SQLite) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM entries WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements Medium. Returns *QuotaError when the write would exceed the
// configured capacity or SQLite reports the disk as full.
func (s *SQLite) Set(ctx context.Context, key, value string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set %q: begin tx: %w", key, err)
	}
	defer tx.Rollback() // No-op if committed

	if s.quota > 0 {
		var used int64
		err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(SUM(length(CAST(value AS BLOB))), 0)
			FROM entries WHERE key != ?
		`, key).Scan(&used)
		if err != nil {
			return fmt.Errorf("set %q: measure usage: %w", key, err)
		}
		if used+int64(len(value)) > s.quota {
			return &QuotaError{Key: key, Needed: int64(len(value)), Used: used, Limit: s.quota}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entries (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, s.now().UnixMilli())
	if err != nil {
		if isFullError(err) {
			return &QuotaError{Key: key, Needed: int64(len(value)), Limit: s.quota, Err: err}
		}
		return fmt.Errorf("set %q: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		if isFullError(err) {
			return &QuotaError{Key: key, Needed: int64(len(value)), Limit: s.quota, Err: err}
		}
		return fmt.Errorf("set %q: commit: %w", key, err)
	}
	return nil
}

// Delete implements Medium. Deleting a missing key is not an error.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Keys implements Medium. Results are ordered by key.
func (s *SQLite) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM entries
		WHERE substr(key, 1, ?) = ?
		ORDER BY key ASC
	`, len([]rune(prefix)), prefix)
	if err != nil {
		return nil, fmt.Errorf("keys %q: %w", prefix, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("keys %q: scan: %w", prefix, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("keys %q: %w", prefix, err)
	}
	return keys, nil
}

// Entry describes one stored record without its value.
type Entry struct {
	Key       string
	Size      int64
	UpdatedAt time.Time
}

// Entries implements EntryLister.
func (s *SQLite) Entries(ctx context.Context, prefix string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, length(CAST(value AS BLOB)), updated_at FROM entries
		WHERE substr(key, 1, ?) = ?
		ORDER BY updated_at DESC, key ASC
	`, len([]rune(prefix)), prefix)
	if err != nil {
		return nil, fmt.Errorf("entries %q: %w", prefix, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ms int64
		if err := rows.Scan(&e.Key, &e.Size, &ms); err != nil {
			return nil, fmt.Errorf("entries %q: scan: %w", prefix, err)
		}
		e.UpdatedAt = time.UnixMilli(ms)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("entries %q: %w", prefix, err)
	}
	return entries, nil
}

// isFullError reports whether err is SQLite's SQLITE_FULL.
func isFullError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrFull
	}
	return false
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 indexes updated_at so Entries can list by recency.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_entries_updated_at
		ON entries(updated_at)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *SQLite) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
