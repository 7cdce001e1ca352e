// Package store provides conversation state storage backends for LeadPipe.
//
// Backends: an in-memory map (default), Redis, SQLite and PostgreSQL. Every backend
// applies a time-to-live measured from ConversationState.UpdatedAt, so idle users are
// forgotten instead of accumulating forever.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// ErrNotFound is returned when a user has no state or their state expired.
var ErrNotFound = errors.New("conversation state not found")

// DefaultTTL is how long an idle conversation is kept.
const DefaultTTL = 30 * 24 * time.Hour

// ConversationStore persists per-user conversation state.
type ConversationStore interface {
	// Get returns a copy of the user's state, or ErrNotFound.
	Get(ctx context.Context, userID string) (*models.ConversationState, error)
	// Save replaces the user's state.
	Save(ctx context.Context, state *models.ConversationState) error
	// Delete forgets the user. Deleting an unknown user is not an error.
	Delete(ctx context.Context, userID string) error
	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store implementations.
type Opts struct {
	DSN  string        // database connection string or file path
	Addr string        // redis address
	TTL  time.Duration // idle expiry; zero disables expiry
	Now  func() time.Time
}

// Option defines a function that configures Opts.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option { return WithDSN(dsn) }

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option { return WithDSN(dsn) }

// WithRedisAddr sets the Redis server address.
func WithRedisAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithTTL sets the idle expiry. Zero keeps state forever.
func WithTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.TTL = ttl }
}

// WithClock replaces time.Now, mainly in tests.
func WithClock(now func() time.Time) Option {
	return func(o *Opts) { o.Now = now }
}

func applyOpts(opts []Option) Opts {
	cfg := Opts{TTL: DefaultTTL, Now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return cfg
}

// expired reports whether a state last updated at updatedAt is past ttl at now.
func expired(updatedAt, now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(updatedAt) > ttl
}

// DetectDSNType returns the database/sql driver name for dsn: "postgres" for URLs with a
// postgres scheme or libpq key=value strings, "sqlite3" for everything else.
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	if strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://") {
		return "postgres"
	}
	for _, key := range []string{"host=", "user=", "dbname=", "password=", "sslmode="} {
		if strings.Contains(d, key) {
			return "postgres"
		}
	}
	return "sqlite3"
}

// NewSQLStore opens the SQL backend matching the DSN.
func NewSQLStore(opts ...Option) (SQLBackend, error) {
	cfg := applyOpts(opts)
	if DetectDSNType(cfg.DSN) == "postgres" {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}

// SQLBackend is a SQL conversation store that also de-duplicates inbound messages.
type SQLBackend interface {
	ConversationStore
	DedupRepo
	PurgeExpired(ctx context.Context) (int64, error)
}
