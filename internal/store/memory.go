package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// MemoryStore keeps conversation state in process memory. State is lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*models.ConversationState
	ttl    time.Duration
	now    func() time.Time
}

// Compile-time check that MemoryStore implements ConversationStore.
var _ ConversationStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	cfg := applyOpts(opts)
	slog.Debug("MemoryStore.NewMemoryStore: created", "ttl", cfg.TTL)
	return &MemoryStore{
		states: make(map[string]*models.ConversationState),
		ttl:    cfg.TTL,
		now:    cfg.Now,
	}
}

// Get returns a copy of the stored state so callers cannot mutate the store without Save.
func (s *MemoryStore) Get(_ context.Context, userID string) (*models.ConversationState, error) {
	s.mu.RLock()
	st, ok := s.states[userID]
	s.mu.RUnlock()
	if !ok || expired(st.UpdatedAt, s.now(), s.ttl) {
		return nil, ErrNotFound
	}
	return st.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, state *models.ConversationState) error {
	s.mu.Lock()
	s.states[state.UserID] = state.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	delete(s.states, userID)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Len returns the number of stored states, expired ones included until swept.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Sweep removes every state that has expired at now and returns how many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, st := range s.states {
		if expired(st.UpdatedAt, now, s.ttl) {
			delete(s.states, id)
			n++
		}
	}
	return n
}

// StartJanitor sweeps expired states every interval until ctx is cancelled.
func (s *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		slog.Debug("MemoryStore.StartJanitor: expiry disabled, janitor not started")
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Debug("MemoryStore.StartJanitor: stopping")
				return
			case <-ticker.C:
				if n := s.Sweep(s.now()); n > 0 {
					slog.Info("MemoryStore.StartJanitor: expired conversations removed", "count", n)
				}
			}
		}
	}()
}
