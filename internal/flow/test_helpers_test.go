package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/knowledge"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/store"
)

const testUser = "919876500000"

// fakeSender records brochure deliveries.
type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSender) SendDocument(_ context.Context, to string, _ models.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

func (f *fakeSender) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// fakeAnswerer returns a fixed reply and records prompts.
type fakeAnswerer struct {
	mu      sync.Mutex
	reply   string
	prompts []string
}

func (f *fakeAnswerer) Ask(_ context.Context, prompt string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.reply
}

func (f *fakeAnswerer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

// brokenStore fails on the configured operations.
type brokenStore struct {
	store.ConversationStore
	getErr  error
	saveErr error
}

func (b *brokenStore) Get(ctx context.Context, userID string) (*models.ConversationState, error) {
	if b.getErr != nil {
		return nil, b.getErr
	}
	return b.ConversationStore.Get(ctx, userID)
}

func (b *brokenStore) Save(ctx context.Context, st *models.ConversationState) error {
	if b.saveErr != nil {
		return b.saveErr
	}
	return b.ConversationStore.Save(ctx, st)
}

var errSendFailed = errors.New("transport down")

type testRig struct {
	router   *Router
	store    *store.MemoryStore
	sender   *fakeSender
	answerer *fakeAnswerer
}

func newTestRig(t *testing.T, opts ...Option) *testRig {
	t.Helper()
	st := store.NewMemoryStore()
	sender := &fakeSender{}
	answerer := &fakeAnswerer{reply: "generated answer"}
	kb := knowledge.NewBase(map[models.Language]knowledge.Tree{
		models.LanguageEnglish: {"project_info": map[string]any{"name": "Brookstone"}},
	})
	return &testRig{
		router:   NewRouter(st, sender, answerer, kb, opts...),
		store:    st,
		sender:   sender,
		answerer: answerer,
	}
}

// seed stores a state for testUser after mutate has run on it.
func (r *testRig) seed(t *testing.T, mutate func(*models.ConversationState)) {
	t.Helper()
	st, err := r.store.Get(context.Background(), testUser)
	if errors.Is(err, store.ErrNotFound) {
		st = models.NewConversationState(testUser, time.Now())
	} else if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mutate(st)
	st.UpdatedAt = time.Now()
	if err := r.store.Save(context.Background(), st); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func (r *testRig) state(t *testing.T) *models.ConversationState {
	t.Helper()
	st, err := r.store.Get(context.Background(), testUser)
	if err != nil {
		t.Fatalf("unexpected error loading state: %v", err)
	}
	return st
}

func (r *testRig) turn(t *testing.T, text string) (string, bool) {
	t.Helper()
	reply, ok, err := r.router.HandleTurn(context.Background(), testUser, text)
	if err != nil {
		t.Fatalf("unexpected error for %q: %v", text, err)
	}
	return reply, ok
}
