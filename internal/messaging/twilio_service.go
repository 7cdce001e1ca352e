package messaging

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	twilioclient "github.com/twilio/twilio-go/client"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/redact"
	"github.com/BTreeMap/LeadPipe/internal/twiliowhatsapp"
)

// TwilioSignatureHeader carries Twilio's request signature.
const TwilioSignatureHeader = "X-Twilio-Signature"

// TwilioService implements the Service interface using Twilio API
type TwilioService struct {
	client    twiliowhatsapp.TwilioWhatsAppSender // Could be real Twilio client or MockClient
	validator *twilioclient.RequestValidator
	publicURL string
	inbox     *inbox
	now       func() time.Time
}

var (
	_ Service        = (*TwilioService)(nil)
	_ WebhookService = (*TwilioService)(nil)
)

// TwilioOption configures a TwilioService.
type TwilioOption func(*TwilioService)

// WithTwilioSignatureCheck validates X-Twilio-Signature against authToken. publicURL is
// the webhook URL exactly as configured in the Twilio console.
func WithTwilioSignatureCheck(authToken, publicURL string) TwilioOption {
	return func(s *TwilioService) {
		if authToken == "" || publicURL == "" {
			return
		}
		v := twilioclient.NewRequestValidator(authToken)
		s.validator = &v
		s.publicURL = publicURL
	}
}

// NewTwilioService creates a new TwilioService with a real Twilio client
func NewTwilioService(client twiliowhatsapp.TwilioWhatsAppSender, opts ...TwilioOption) *TwilioService {
	s := &TwilioService{client: client, inbox: newInbox(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	slog.Debug("TwilioService.NewTwilioService: created", "signature_check", s.validator != nil)
	return s
}

// ValidateAndCanonicalizeRecipient validates and canonicalizes a WhatsApp phone number.
// It removes all non-numeric characters and validates the result has at least 6 digits.
func (s *TwilioService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(strings.TrimPrefix(recipient, "whatsapp:"))
}

// Start is a no-op for Twilio; messages arrive through the webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop closes the inbound channel.
func (s *TwilioService) Stop() error {
	s.inbox.close()
	return nil
}

// SendText sends a message via Twilio
func (s *TwilioService) SendText(ctx context.Context, to string, body string) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService.SendText: validation error", "error", err)
		return err
	}
	if err := s.client.SendMessage(ctx, canonicalTo, body); err != nil {
		return err
	}
	slog.Info("TwilioService.SendText: sent", "to", redact.Phone(canonicalTo), "body_length", len(body))
	return nil
}

// SendDocument sends doc.Ref, which must be a public URL, with the caption as body.
func (s *TwilioService) SendDocument(ctx context.Context, to string, doc models.Document) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	canonicalTo, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	return s.client.SendDocument(ctx, canonicalTo, doc.Ref, doc.Caption)
}

// MarkRead is a no-op: Twilio does not expose WhatsApp read receipts for inbound messages.
func (s *TwilioService) MarkRead(ctx context.Context, msg models.InboundMessage) error {
	return nil
}

// Inbound returns the channel for incoming messages
func (s *TwilioService) Inbound() <-chan models.InboundMessage {
	return s.inbox.ch
}

// RegisterRoutes mounts POST /twilio/webhook.
func (s *TwilioService) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /twilio/webhook", s.TwilioWebhookHandler)
}

// TwilioWebhookHandler handles inbound Twilio webhook requests.
// It parses incoming messages and emits them into the Inbound() channel.
func (s *TwilioService) TwilioWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		slog.Error("TwilioService.TwilioWebhookHandler: failed to parse form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if s.validator != nil {
		params := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			params[k] = r.PostForm.Get(k)
		}
		if !s.validator.Validate(s.publicURL, params, r.Header.Get(TwilioSignatureHeader)) {
			slog.Warn("TwilioService.TwilioWebhookHandler: signature mismatch")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	text := r.PostForm.Get("Body")
	msgType := models.MessageTypeText
	if strings.TrimSpace(text) == "" {
		text = r.PostForm.Get("ButtonText")
		msgType = models.MessageTypeButton
	}
	from, err := s.ValidateAndCanonicalizeRecipient(r.PostForm.Get("From"))

	switch {
	case err != nil:
		slog.Warn("TwilioService.TwilioWebhookHandler: invalid sender", "error", err)
	case strings.TrimSpace(text) == "":
		slog.Warn("TwilioService.TwilioWebhookHandler: no text in message", "sid", r.PostForm.Get("MessageSid"))
	default:
		msg := models.InboundMessage{
			ID:        r.PostForm.Get("MessageSid"),
			From:      from,
			Text:      text,
			Type:      msgType,
			Timestamp: s.now().Unix(),
		}
		slog.Info("TwilioService.TwilioWebhookHandler: message received", "from", redact.Phone(from), "id", msg.ID)
		if !s.inbox.emit(msg) {
			http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<Response></Response>"))
}
