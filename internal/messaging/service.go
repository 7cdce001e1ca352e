// Package messaging adapts the WhatsApp transports to one Service interface and
// dispatches inbound messages to the conversation router.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// Constants for service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for the inbound channel
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines how long an emit waits on a full channel before dropping
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned by sends after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient identifier.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendText sends a text message to a recipient.
	SendText(ctx context.Context, to string, body string) error

	// SendDocument sends a document to a recipient.
	SendDocument(ctx context.Context, to string, doc models.Document) error

	// MarkRead acknowledges an inbound message to the sender.
	MarkRead(ctx context.Context, msg models.InboundMessage) error

	// Start begins any background processing (e.g., event subscription).
	Start(ctx context.Context) error

	// Stop stops background processing and closes the inbound channel.
	Stop() error

	// Inbound returns the channel of messages received from users.
	Inbound() <-chan models.InboundMessage
}

// WebhookService is implemented by services that receive messages over HTTP.
type WebhookService interface {
	RegisterRoutes(mux *http.ServeMux)
}

var nonDigits = regexp.MustCompile(`\D`)

// canonicalizePhone strips everything but digits and requires a plausible length.
func canonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}
	canonical := nonDigits.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	return canonical, nil
}

// inbox is the inbound channel shared by every service, safe against emits after Stop.
// The channel can be closed before sends are disabled so in-flight replies still go out.
type inbox struct {
	mu      sync.RWMutex
	ch      chan models.InboundMessage
	closed  bool
	stopped bool
}

func newInbox() *inbox {
	return &inbox{ch: make(chan models.InboundMessage, DefaultChannelBufferSize)}
}

// emit delivers msg, dropping it if the inbox is closed or the channel stays full.
// It reports whether the message was queued.
func (b *inbox) emit(msg models.InboundMessage) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		slog.Warn("inbox.emit: inbox closed, dropping message", "id", msg.ID)
		return false
	}
	select {
	case b.ch <- msg:
		return true
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("inbox.emit: inbound channel blocked, dropping message", "id", msg.ID, "timeout", DefaultChannelTimeout)
		return false
	}
}

func (b *inbox) isStopped() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.stopped
}

// closeInbound closes the channel once. Emits hold the read lock, so no send can race
// with the close.
func (b *inbox) closeInbound() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}

// close closes the channel and disables sends.
func (b *inbox) close() {
	b.closeInbound()
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()
}
