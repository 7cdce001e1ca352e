// This file implements an SQLite-backed conversation store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/BTreeMap/LeadPipe/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore stores conversation state and inbound dedup records in SQLite.
type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Compile-time check that SQLiteStore implements SQLBackend.
var _ SQLBackend = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	cfg := applyOpts(opts)
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "", "ttl", cfg.TTL)

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	slog.Debug("SQLite database directory verified/created", "dir", dir)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// Serialise writers; SQLite allows one at a time.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db, ttl: cfg.TTL, now: cfg.Now}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, userID string) (*models.ConversationState, error) {
	var raw string
	var updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json, updated_at FROM conversation_state WHERE user_id = ?`, userID,
	).Scan(&raw, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("SQLiteStore Get failed", "error", err)
		return nil, fmt.Errorf("failed to load conversation state: %w", err)
	}
	if expired(time.Unix(0, updated), s.now(), s.ttl) {
		return nil, ErrNotFound
	}
	var st models.ConversationState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, fmt.Errorf("failed to decode conversation state: %w", err)
	}
	return &st, nil
}

func (s *SQLiteStore) Save(ctx context.Context, state *models.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode conversation state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversation_state (user_id, state_json, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at`,
		state.UserID, string(data), state.UpdatedAt.UnixNano(),
	)
	if err != nil {
		slog.Error("SQLiteStore Save failed", "error", err)
		return fmt.Errorf("failed to save conversation state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_state WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete conversation state: %w", err)
	}
	return nil
}

// PurgeExpired deletes states idle for longer than the TTL.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.ttl).UnixNano()
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversation_state WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired conversation state: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.Debug("SQLiteStore PurgeExpired", "removed", n)
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
