package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/store"
)

type fakeConversations struct {
	states  map[string]*models.ConversationState
	err     error
	resetID string
}

func (f *fakeConversations) Snapshot(_ context.Context, userID string) (*models.ConversationState, error) {
	if f.err != nil {
		return nil, f.err
	}
	st, ok := f.states[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return st, nil
}

func (f *fakeConversations) Reset(_ context.Context, userID string) error {
	if f.err != nil {
		return f.err
	}
	f.resetID = userID
	delete(f.states, userID)
	return nil
}

type fakeWebhooks struct{}

func (fakeWebhooks) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /webhook", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Query().Get("hub.challenge")))
	})
}

const testAdminToken = "s3cret"

func newTestServer(conv *fakeConversations) http.Handler {
	return NewServer(conv, WithWebhooks(fakeWebhooks{}), WithHealth(true, false), WithAdminToken(testAdminToken)).Handler()
}

func adminRequest(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+testAdminToken)
	return req
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON body %q: %v", rr.Body.String(), err)
	}
	return resp
}

func TestRootAndHealth(t *testing.T) {
	h := newTestServer(&fakeConversations{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK || rr.Body.Len() == 0 {
		t.Errorf("expected banner, got %d %q", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	var health healthStatus
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil {
		t.Fatalf("invalid health body: %v", err)
	}
	if health.Status != "healthy" || !health.TransportConfigured || health.GenAIConfigured {
		t.Errorf("unexpected health %+v", health)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown path, got %d", rr.Code)
	}
}

func TestWebhookRoutesMounted(t *testing.T) {
	h := newTestServer(&fakeConversations{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/webhook?hub.challenge=42", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "42" {
		t.Errorf("expected webhook echo, got %d %q", rr.Code, rr.Body.String())
	}
}

func TestGetConversation(t *testing.T) {
	st := models.NewConversationState("919876543210", time.Unix(0, 0))
	st.AppendUser("hello")
	conv := &fakeConversations{states: map[string]*models.ConversationState{"919876543210": st}}
	h := newTestServer(conv)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"found", "/conversations/919876543210", http.StatusOK},
		{"plus prefix", "/conversations/+919876543210", http.StatusOK},
		{"missing", "/conversations/910000000000", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, adminRequest(http.MethodGet, tt.path))
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
			resp := decode(t, rr)
			if tt.status == http.StatusOK {
				result, _ := resp.Result.(map[string]any)
				if resp.Status != string(models.APIStatusOK) || result["user_id"] != "919876543210" {
					t.Errorf("unexpected response %+v", resp)
				}
			} else if resp.Status != string(models.APIStatusError) {
				t.Errorf("expected error envelope, got %+v", resp)
			}
		})
	}
}

func TestResetConversation(t *testing.T) {
	conv := &fakeConversations{states: map[string]*models.ConversationState{
		"919876543210": models.NewConversationState("919876543210", time.Now()),
	}}
	h := newTestServer(conv)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, adminRequest(http.MethodDelete, "/conversations/919876543210"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if conv.resetID != "919876543210" || len(conv.states) != 0 {
		t.Errorf("conversation was not reset: %+v", conv)
	}
}

func TestConversationStoreFailure(t *testing.T) {
	h := newTestServer(&fakeConversations{err: errors.New("redis down")})
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, adminRequest(method, "/conversations/919876543210"))
		if rr.Code != http.StatusInternalServerError {
			t.Errorf("%s: expected 500, got %d", method, rr.Code)
		}
	}
}

func TestConversationsRequireAdminToken(t *testing.T) {
	conv := &fakeConversations{states: map[string]*models.ConversationState{
		"919876543210": models.NewConversationState("919876543210", time.Now()),
	}}
	h := newTestServer(conv)

	tests := []struct {
		name   string
		method string
		header string
	}{
		{"get without token", http.MethodGet, ""},
		{"get with wrong token", http.MethodGet, "Bearer nope"},
		{"delete without token", http.MethodDelete, ""},
		{"delete with basic auth", http.MethodDelete, "Basic " + testAdminToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/conversations/919876543210", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
		})
	}
	if conv.resetID != "" || len(conv.states) != 1 {
		t.Errorf("unauthorized delete must not reset state: %+v", conv)
	}
}

func TestConversationsDisabledWithoutToken(t *testing.T) {
	h := NewServer(&fakeConversations{}).Handler()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/conversations/919876543210", nil)
	req.Header.Set("Authorization", "Bearer ")
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rr.Code)
	}
}

func TestConversationMethodNotAllowed(t *testing.T) {
	h := newTestServer(&fakeConversations{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/conversations/1", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rr.Code)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	s := NewServer(&fakeConversations{}, WithAddr("127.0.0.1:0"), WithShutdownTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
