package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/models"
	goredis "github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces conversation keys.
const redisKeyPrefix = "leadpipe:conversation:"

// RedisStore keeps conversation state as JSON values whose Redis TTL is the idle expiry.
type RedisStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

// Compile-time check that RedisStore implements ConversationStore.
var _ ConversationStore = (*RedisStore)(nil)

// NewRedisStore connects to the Redis server set by WithRedisAddr and pings it.
func NewRedisStore(ctx context.Context, opts ...Option) (*RedisStore, error) {
	cfg := applyOpts(opts)
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address not set")
	}
	slog.Debug("RedisStore.NewRedisStore: connecting", "addr", cfg.Addr, "ttl", cfg.TTL)
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		slog.Error("RedisStore.NewRedisStore: ping failed", "addr", cfg.Addr, "error", err)
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	slog.Debug("RedisStore.NewRedisStore: connected", "addr", cfg.Addr)
	return &RedisStore{rdb: rdb, ttl: cfg.TTL}, nil
}

func redisKey(userID string) string { return redisKeyPrefix + userID }

func (s *RedisStore) Get(ctx context.Context, userID string) (*models.ConversationState, error) {
	data, err := s.rdb.Get(ctx, redisKey(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var st models.ConversationState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode conversation state: %w", err)
	}
	return &st, nil
}

// Save writes the state and resets its expiry. A zero TTL stores it without expiry.
func (s *RedisStore) Save(ctx context.Context, state *models.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode conversation state: %w", err)
	}
	if err := s.rdb.Set(ctx, redisKey(state.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, redisKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
