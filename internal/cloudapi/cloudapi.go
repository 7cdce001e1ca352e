// Package cloudapi talks to the WhatsApp Cloud API over the Graph HTTP endpoint.
//
// It sends text and document messages, marks inbound messages as read, and decodes
// and authenticates the webhook payloads Meta delivers.
package cloudapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Defaults for the Graph endpoint.
const (
	DefaultBaseURL      = "https://graph.facebook.com"
	DefaultGraphVersion = "v23.0"
	DefaultTimeout      = 15 * time.Second
)

// ErrNotConfigured is returned by NewClient when the token or phone number id is missing.
var ErrNotConfigured = errors.New("whatsapp cloud api token and phone number id must be provided")

// APIError is a non-2xx answer from the Graph API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("graph api returned status %d: %s", e.StatusCode, e.Body)
}

// Sender is the subset of Client used by the messaging layer.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
	SendDocument(ctx context.Context, to, mediaID, fileName, caption string) error
	MarkRead(ctx context.Context, messageID string) error
}

// Opts holds configuration options for the Cloud API client.
type Opts struct {
	Token         string
	PhoneNumberID string
	GraphVersion  string
	BaseURL       string
	HTTPClient    *http.Client
}

// Option defines a configuration option for the Cloud API client.
type Option func(*Opts)

// WithToken sets the bearer access token.
func WithToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithPhoneNumberID sets the business phone number id messages are sent from.
func WithPhoneNumberID(id string) Option {
	return func(o *Opts) { o.PhoneNumberID = id }
}

// WithGraphVersion overrides DefaultGraphVersion.
func WithGraphVersion(v string) Option {
	return func(o *Opts) {
		if v != "" {
			o.GraphVersion = v
		}
	}
}

// WithBaseURL points the client at another host, e.g. an httptest server.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = c }
}

// Client sends messages through one business phone number.
type Client struct {
	http     *http.Client
	token    string
	endpoint string
}

var _ Sender = (*Client)(nil)

// NewClient creates a Cloud API client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		GraphVersion: DefaultGraphVersion,
		BaseURL:      DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("cloudapi.NewClient: options set",
		"token_set", cfg.Token != "", "phone_number_id_set", cfg.PhoneNumberID != "",
		"graph_version", cfg.GraphVersion, "base_url", cfg.BaseURL)
	if cfg.Token == "" || cfg.PhoneNumberID == "" {
		return nil, ErrNotConfigured
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		http:     cfg.HTTPClient,
		token:    cfg.Token,
		endpoint: fmt.Sprintf("%s/%s/%s/messages", cfg.BaseURL, cfg.GraphVersion, cfg.PhoneNumberID),
	}, nil
}

type textBody struct {
	Body string `json:"body"`
}

type documentBody struct {
	ID       string `json:"id,omitempty"`
	Link     string `json:"link,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type outboundMessage struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to,omitempty"`
	Type             string        `json:"type,omitempty"`
	Text             *textBody     `json:"text,omitempty"`
	Document         *documentBody `json:"document,omitempty"`
	Status           string        `json:"status,omitempty"`
	MessageID        string        `json:"message_id,omitempty"`
}

// SendText sends a plain text message.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	if to == "" {
		return fmt.Errorf("recipient cannot be empty")
	}
	if body == "" {
		return fmt.Errorf("message body cannot be empty")
	}
	return c.post(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &textBody{Body: body},
	})
}

// SendDocument sends a document. ref is an uploaded media id, or an https link.
func (c *Client) SendDocument(ctx context.Context, to, ref, fileName, caption string) error {
	if to == "" {
		return fmt.Errorf("recipient cannot be empty")
	}
	if ref == "" {
		return fmt.Errorf("document reference cannot be empty")
	}
	doc := &documentBody{Caption: caption, Filename: fileName}
	if strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://") {
		doc.Link = ref
	} else {
		doc.ID = ref
	}
	return c.post(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "document",
		Document:         doc,
	})
}

// MarkRead marks an inbound message as read, which also shows blue ticks to the sender.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	if messageID == "" {
		return fmt.Errorf("message id cannot be empty")
	}
	return c.post(ctx, outboundMessage{
		MessagingProduct: "whatsapp",
		Status:           "read",
		MessageID:        messageID,
	})
}

func (c *Client) post(ctx context.Context, msg outboundMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graph api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	slog.Debug("Client.post: graph api accepted message", "type", msg.Type, "status", msg.Status)
	return nil
}
