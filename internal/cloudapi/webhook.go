package cloudapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// SignatureHeader carries the HMAC of the webhook body keyed by the app secret.
const SignatureHeader = "X-Hub-Signature-256"

// WebhookPayload is the envelope Meta posts to the webhook.
type WebhookPayload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string    `json:"messaging_product"`
	Messages         []Message `json:"messages"`
}

// Message is one inbound message. Only the text-bearing shapes are decoded.
type Message struct {
	From        string       `json:"from"`
	ID          string       `json:"id"`
	Timestamp   string       `json:"timestamp"`
	Type        string       `json:"type"`
	Text        *Text        `json:"text,omitempty"`
	Button      *Button      `json:"button,omitempty"`
	Interactive *Interactive `json:"interactive,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

type Button struct {
	Text    string `json:"text"`
	Payload string `json:"payload"`
}

type Interactive struct {
	Type        string `json:"type"`
	ButtonReply *Reply `json:"button_reply,omitempty"`
	ListReply   *Reply `json:"list_reply,omitempty"`
}

type Reply struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// text returns the first non-empty of text body, button text, button reply title and list reply title.
func (m Message) text() string {
	var candidates []string
	if m.Text != nil {
		candidates = append(candidates, m.Text.Body)
	}
	if m.Button != nil {
		candidates = append(candidates, m.Button.Text)
	}
	if m.Interactive != nil {
		if m.Interactive.ButtonReply != nil {
			candidates = append(candidates, m.Interactive.ButtonReply.Title)
		}
		if m.Interactive.ListReply != nil {
			candidates = append(candidates, m.Interactive.ListReply.Title)
		}
	}
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return ""
}

// ParseWebhook decodes a webhook body into inbound messages. Messages without usable
// text are skipped and logged; only an undecodable body is an error.
func ParseWebhook(body []byte) ([]models.InboundMessage, error) {
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode webhook payload: %w", err)
	}

	var out []models.InboundMessage
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				text := msg.text()
				if text == "" {
					slog.Warn("cloudapi.ParseWebhook: no text in message", "type", msg.Type, "id", msg.ID)
					continue
				}
				if msg.From == "" {
					slog.Warn("cloudapi.ParseWebhook: message without sender", "id", msg.ID)
					continue
				}
				ts, _ := strconv.ParseInt(msg.Timestamp, 10, 64)
				out = append(out, models.InboundMessage{
					ID:        msg.ID,
					From:      msg.From,
					Text:      text,
					Type:      messageType(msg.Type),
					Timestamp: ts,
				})
			}
		}
	}
	return out, nil
}

func messageType(t string) models.MessageType {
	switch t {
	case "button":
		return models.MessageTypeButton
	case "interactive":
		return models.MessageTypeInteractive
	default:
		return models.MessageTypeText
	}
}

// VerifySignature checks header against the HMAC-SHA256 of body under secret.
// header has the form "sha256=<hex>".
func VerifySignature(secret string, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Sign returns the SignatureHeader value for body. It is the counterpart of VerifySignature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySubscription answers Meta's subscription handshake. It returns the challenge
// to echo and true when the mode is subscribe and the verify token matches.
func VerifySubscription(query url.Values, verifyToken string) (string, bool) {
	if query.Get("hub.mode") != "subscribe" {
		return "", false
	}
	if verifyToken == "" || !hmac.Equal([]byte(query.Get("hub.verify_token")), []byte(verifyToken)) {
		return "", false
	}
	return query.Get("hub.challenge"), true
}
