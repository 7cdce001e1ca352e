package cloudapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

type recorded struct {
	path   string
	auth   string
	values map[string]any
}

func newGraphServer(t *testing.T, status int) (*httptest.Server, func() []recorded) {
	t.Helper()
	var mu sync.Mutex
	var got []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var v map[string]any
		if err := json.Unmarshal(body, &v); err != nil {
			t.Errorf("invalid json body: %v", err)
		}
		mu.Lock()
		got = append(got, recorded{path: r.URL.Path, auth: r.Header.Get("Authorization"), values: v})
		mu.Unlock()
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"messages":[{"id":"wamid.1"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), got...)
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(WithToken("t")); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestClientSendsGraphPayloads(t *testing.T) {
	srv, requests := newGraphServer(t, http.StatusOK)
	c, err := NewClient(WithToken("secret"), WithPhoneNumberID("12345"), WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	if err := c.SendText(ctx, "919876543210", "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if err := c.SendDocument(ctx, "919876543210", "media-1", "Brookstone.pdf", "Here you go"); err != nil {
		t.Fatalf("SendDocument: %v", err)
	}
	if err := c.SendDocument(ctx, "919876543210", "https://example.com/b.pdf", "b.pdf", ""); err != nil {
		t.Fatalf("SendDocument link: %v", err)
	}
	if err := c.MarkRead(ctx, "wamid.in"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	reqs := requests()
	if len(reqs) != 4 {
		t.Fatalf("expected 4 requests, got %d", len(reqs))
	}
	for _, r := range reqs {
		if r.path != "/"+DefaultGraphVersion+"/12345/messages" {
			t.Errorf("unexpected path %s", r.path)
		}
		if r.auth != "Bearer secret" {
			t.Errorf("unexpected auth header %q", r.auth)
		}
		if r.values["messaging_product"] != "whatsapp" {
			t.Errorf("missing messaging_product: %v", r.values)
		}
	}

	text := reqs[0].values["text"].(map[string]any)
	if reqs[0].values["type"] != "text" || text["body"] != "hello" {
		t.Errorf("unexpected text payload: %v", reqs[0].values)
	}
	doc := reqs[1].values["document"].(map[string]any)
	if doc["id"] != "media-1" || doc["filename"] != "Brookstone.pdf" || doc["caption"] != "Here you go" {
		t.Errorf("unexpected document payload: %v", doc)
	}
	link := reqs[2].values["document"].(map[string]any)
	if link["link"] != "https://example.com/b.pdf" || link["id"] != nil {
		t.Errorf("expected link document, got %v", link)
	}
	if reqs[3].values["status"] != "read" || reqs[3].values["message_id"] != "wamid.in" {
		t.Errorf("unexpected mark-read payload: %v", reqs[3].values)
	}
}

func TestClientReportsGraphErrors(t *testing.T) {
	srv, _ := newGraphServer(t, http.StatusUnauthorized)
	c, _ := NewClient(WithToken("bad"), WithPhoneNumberID("1"), WithBaseURL(srv.URL))

	err := c.SendText(context.Background(), "1", "hi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected APIError 401, got %v", err)
	}
}

const webhookBody = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "messages": [
          {"from": "919800000001", "id": "m1", "timestamp": "1700000000", "type": "text", "text": {"body": "price of 3bhk?"}},
          {"from": "919800000002", "id": "m2", "timestamp": "1700000001", "type": "button", "button": {"text": "Yes", "payload": "yes"}},
          {"from": "919800000003", "id": "m3", "timestamp": "1700000002", "type": "interactive", "interactive": {"type": "list_reply", "list_reply": {"id": "l1", "title": "4 BHK"}}},
          {"from": "919800000004", "id": "m4", "timestamp": "1700000003", "type": "image"},
          {"from": "919800000005", "id": "m5", "timestamp": "1700000004", "type": "interactive", "interactive": {"type": "button_reply", "button_reply": {"id": "b1", "title": "Brochure"}}}
        ]
      }
    }]
  }]
}`

func TestParseWebhook(t *testing.T) {
	msgs, err := ParseWebhook([]byte(webhookBody))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []models.InboundMessage{
		{ID: "m1", From: "919800000001", Text: "price of 3bhk?", Type: models.MessageTypeText, Timestamp: 1700000000},
		{ID: "m2", From: "919800000002", Text: "Yes", Type: models.MessageTypeButton, Timestamp: 1700000001},
		{ID: "m3", From: "919800000003", Text: "4 BHK", Type: models.MessageTypeInteractive, Timestamp: 1700000002},
		{ID: "m5", From: "919800000005", Text: "Brochure", Type: models.MessageTypeInteractive, Timestamp: 1700000004},
	}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages, got %d: %+v", len(want), len(msgs), msgs)
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("message %d: want %+v, got %+v", i, want[i], msgs[i])
		}
	}

	if _, err := ParseWebhook([]byte("not json")); err == nil {
		t.Error("expected error for invalid body")
	}
	if msgs, err := ParseWebhook([]byte(`{"entry":[{"changes":[{"value":{"statuses":[{}]}}]}]}`)); err != nil || len(msgs) != 0 {
		t.Errorf("status-only payload should yield nothing, got %v, %v", msgs, err)
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(webhookBody)
	sig := Sign("app-secret", body)

	if !VerifySignature("app-secret", body, sig) {
		t.Error("expected valid signature")
	}
	if VerifySignature("other", body, sig) {
		t.Error("wrong secret must fail")
	}
	if VerifySignature("app-secret", append(body, ' '), sig) {
		t.Error("modified body must fail")
	}
	if VerifySignature("app-secret", body, "sha1=abc") || VerifySignature("app-secret", body, "sha256=zz") {
		t.Error("malformed header must fail")
	}
}

func TestVerifySubscription(t *testing.T) {
	q := url.Values{"hub.mode": {"subscribe"}, "hub.verify_token": {"tok"}, "hub.challenge": {"42"}}
	if got, ok := VerifySubscription(q, "tok"); !ok || got != "42" {
		t.Errorf("expected challenge 42, got %q %v", got, ok)
	}
	if _, ok := VerifySubscription(q, "other"); ok {
		t.Error("wrong token must fail")
	}
	q.Set("hub.mode", "unsubscribe")
	if _, ok := VerifySubscription(q, "tok"); ok {
		t.Error("wrong mode must fail")
	}
}
