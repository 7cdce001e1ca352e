package messaging

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/BTreeMap/LeadPipe/internal/cloudapi"
	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/redact"
)

// DefaultVerifyToken is the webhook subscription token used when none is configured.
const DefaultVerifyToken = "leadpipe_verify_token"

// maxWebhookBody bounds the webhook payload read into memory.
const maxWebhookBody = 1 << 20

// CloudAPIService implements Service over the WhatsApp Cloud API and owns its webhook.
type CloudAPIService struct {
	client      cloudapi.Sender
	verifyToken string
	appSecret   string
	inbox       *inbox
}

var (
	_ Service        = (*CloudAPIService)(nil)
	_ WebhookService = (*CloudAPIService)(nil)
)

// CloudAPIOption configures a CloudAPIService.
type CloudAPIOption func(*CloudAPIService)

// WithVerifyToken sets the token Meta echoes during webhook subscription.
func WithVerifyToken(token string) CloudAPIOption {
	return func(s *CloudAPIService) { s.verifyToken = token }
}

// WithAppSecret enables X-Hub-Signature-256 verification of webhook bodies.
func WithAppSecret(secret string) CloudAPIOption {
	return func(s *CloudAPIService) { s.appSecret = secret }
}

// NewCloudAPIService creates a CloudAPIService sending through client.
func NewCloudAPIService(client cloudapi.Sender, opts ...CloudAPIOption) *CloudAPIService {
	s := &CloudAPIService{client: client, verifyToken: DefaultVerifyToken, inbox: newInbox()}
	for _, opt := range opts {
		opt(s)
	}
	slog.Debug("CloudAPIService.NewCloudAPIService: created", "signature_check", s.appSecret != "")
	return s
}

// ValidateAndCanonicalizeRecipient returns the digits-only number the Graph API expects.
func (s *CloudAPIService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

func (s *CloudAPIService) SendText(ctx context.Context, to string, body string) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := s.client.SendText(ctx, canonical, body); err != nil {
		slog.Error("CloudAPIService.SendText: failed", "to", redact.Phone(canonical), "error", err)
		return err
	}
	slog.Info("CloudAPIService.SendText: sent", "to", redact.Phone(canonical), "body_length", len(body))
	return nil
}

func (s *CloudAPIService) SendDocument(ctx context.Context, to string, doc models.Document) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	return s.client.SendDocument(ctx, canonical, doc.Ref, doc.FileName, doc.Caption)
}

func (s *CloudAPIService) MarkRead(ctx context.Context, msg models.InboundMessage) error {
	if msg.ID == "" {
		return nil
	}
	return s.client.MarkRead(ctx, msg.ID)
}

// Start is a no-op; messages arrive through the webhook.
func (s *CloudAPIService) Start(ctx context.Context) error { return nil }

func (s *CloudAPIService) Stop() error {
	s.inbox.close()
	return nil
}

func (s *CloudAPIService) Inbound() <-chan models.InboundMessage { return s.inbox.ch }

// RegisterRoutes mounts GET and POST /webhook.
func (s *CloudAPIService) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /webhook", s.VerifyHandler)
	mux.HandleFunc("POST /webhook", s.WebhookHandler)
}

// VerifyHandler answers the subscription handshake.
func (s *CloudAPIService) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	challenge, ok := cloudapi.VerifySubscription(r.URL.Query(), s.verifyToken)
	if !ok {
		slog.Warn("CloudAPIService.VerifyHandler: verification failed", "mode", r.URL.Query().Get("hub.mode"))
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	slog.Info("CloudAPIService.VerifyHandler: webhook verified")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, challenge)
}

// WebhookHandler decodes inbound messages and queues them. Processing happens later in
// the Dispatcher. A payload that could not be queued gets a 503 so Meta retries it.
func (s *CloudAPIService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	if s.appSecret != "" && !cloudapi.VerifySignature(s.appSecret, body, r.Header.Get(cloudapi.SignatureHeader)) {
		slog.Warn("CloudAPIService.WebhookHandler: signature mismatch")
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	msgs, err := cloudapi.ParseWebhook(body)
	if err != nil {
		slog.Warn("CloudAPIService.WebhookHandler: undecodable payload", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	dropped := 0
	for _, msg := range msgs {
		slog.Info("CloudAPIService.WebhookHandler: message received", "from", redact.Phone(msg.From), "id", msg.ID, "type", msg.Type)
		if !s.inbox.emit(msg) {
			dropped++
		}
	}
	// Meta redelivers on a non-2xx answer; queued ids are de-duplicated downstream.
	if dropped > 0 {
		slog.Warn("CloudAPIService.WebhookHandler: messages not queued", "dropped", dropped)
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, `{"status":"ok"}`)
}
