// This file implements a PostgreSQL-backed conversation store.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/LeadPipe/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore stores conversation state and inbound dedup records in PostgreSQL.
type PostgresStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Compile-time check that PostgresStore implements SQLBackend.
var _ SQLBackend = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	cfg := applyOpts(opts)
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "", "ttl", cfg.TTL)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db, ttl: cfg.TTL, now: cfg.Now}, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID string) (*models.ConversationState, error) {
	var raw []byte
	var updated int64
	err := s.db.QueryRowContext(ctx,
		`SELECT state_json, updated_at FROM conversation_state WHERE user_id = $1`, userID,
	).Scan(&raw, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		slog.Error("PostgresStore Get failed", "error", err)
		return nil, fmt.Errorf("failed to load conversation state: %w", err)
	}
	if expired(time.Unix(0, updated), s.now(), s.ttl) {
		return nil, ErrNotFound
	}
	var st models.ConversationState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("failed to decode conversation state: %w", err)
	}
	return &st, nil
}

func (s *PostgresStore) Save(ctx context.Context, state *models.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode conversation state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversation_state (user_id, state_json, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO UPDATE SET state_json = EXCLUDED.state_json, updated_at = EXCLUDED.updated_at`,
		state.UserID, string(data), state.UpdatedAt.UnixNano(),
	)
	if err != nil {
		slog.Error("PostgresStore Save failed", "error", err)
		return fmt.Errorf("failed to save conversation state: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_state WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete conversation state: %w", err)
	}
	return nil
}

// PurgeExpired deletes states idle for longer than the TTL.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	if s.ttl <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.ttl).UnixNano()
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversation_state WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired conversation state: %w", err)
	}
	n, _ := res.RowsAffected()
	slog.Debug("PostgresStore PurgeExpired", "removed", n)
	return n, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}
