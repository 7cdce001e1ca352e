package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/redact"
	"github.com/BTreeMap/LeadPipe/internal/whatsapp"
)

// maxPendingReads bounds how many unacknowledged message origins are remembered.
const maxPendingReads = 1000

type messageOrigin struct {
	chat   string
	sender string
}

// WhatsAppService implements Service using the Whatsmeow-based whatsapp client.
// Documents are read from the local path in Document.Ref and uploaded.
type WhatsAppService struct {
	client   whatsapp.WhatsAppSender
	waClient *whatsapp.Client // Access to underlying client for event handling
	inbox    *inbox

	mu      sync.Mutex
	origins map[string]messageOrigin
}

var _ Service = (*WhatsAppService)(nil)

// NewWhatsAppService creates a new WhatsAppService wrapping the given WhatsAppSender.
func NewWhatsAppService(client whatsapp.WhatsAppSender) *WhatsAppService {
	service := &WhatsAppService{
		client:  client,
		inbox:   newInbox(),
		origins: make(map[string]messageOrigin),
	}

	// If the client is a full Client (not just an interface), store it for event handling
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}

	return service
}

// ValidateAndCanonicalizeRecipient returns the digits of a phone number.
func (s *WhatsAppService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	return canonicalizePhone(recipient)
}

// Start registers the whatsmeow event handler.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Debug("WhatsAppService.Start: no full client available, skipping event handling (likely mock)")
		return nil
	}
	s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		if v, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(v)
		}
	})
	slog.Debug("WhatsAppService.Start: event handler registered")
	return nil
}

// Stop closes the inbound channel.
func (s *WhatsAppService) Stop() error {
	s.inbox.close()
	slog.Info("WhatsAppService.Stop: stopped")
	return nil
}

func (s *WhatsAppService) SendText(ctx context.Context, to string, body string) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := s.client.SendMessage(ctx, canonical, body); err != nil {
		slog.Error("WhatsAppService.SendText: failed", "error", err, "to", redact.Phone(canonical))
		return err
	}
	slog.Info("WhatsAppService.SendText: sent", "to", redact.Phone(canonical))
	return nil
}

func (s *WhatsAppService) SendDocument(ctx context.Context, to string, doc models.Document) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	canonical, err := s.ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	return s.client.SendDocument(ctx, canonical, doc.Ref, doc.FileName, doc.Caption)
}

// MarkRead acknowledges a message previously delivered through Inbound.
func (s *WhatsAppService) MarkRead(ctx context.Context, msg models.InboundMessage) error {
	s.mu.Lock()
	origin, ok := s.origins[msg.ID]
	delete(s.origins, msg.ID)
	s.mu.Unlock()
	if !ok {
		slog.Debug("WhatsAppService.MarkRead: unknown message id", "id", msg.ID)
		return nil
	}
	return s.client.MarkRead(ctx, msg.ID, origin.chat, origin.sender)
}

// Inbound returns a channel of incoming messages.
func (s *WhatsAppService) Inbound() <-chan models.InboundMessage {
	return s.inbox.ch
}

// handleIncomingMessage turns a direct text message into an InboundMessage.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil || evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}

	var text string
	switch {
	case evt.Message.GetConversation() != "":
		text = evt.Message.GetConversation()
	case evt.Message.GetExtendedTextMessage().GetText() != "":
		text = evt.Message.GetExtendedTextMessage().GetText()
	case evt.Message.GetButtonsResponseMessage().GetSelectedDisplayText() != "":
		text = evt.Message.GetButtonsResponseMessage().GetSelectedDisplayText()
	case evt.Message.GetListResponseMessage().GetTitle() != "":
		text = evt.Message.GetListResponseMessage().GetTitle()
	default:
		slog.Debug("WhatsAppService.handleIncomingMessage: ignoring non-text message", "id", evt.Info.ID)
		return
	}

	s.remember(evt.Info.ID, messageOrigin{chat: evt.Info.Chat.String(), sender: evt.Info.Sender.String()})

	msg := models.InboundMessage{
		ID:        evt.Info.ID,
		From:      evt.Info.Sender.User,
		Text:      text,
		Type:      models.MessageTypeText,
		Timestamp: evt.Info.Timestamp.Unix(),
	}
	if msg.Timestamp <= 0 {
		msg.Timestamp = time.Now().Unix()
	}
	slog.Info("WhatsAppService.handleIncomingMessage: message received", "from", redact.Phone(msg.From), "id", msg.ID)
	s.inbox.emit(msg)
}

func (s *WhatsAppService) remember(id string, origin messageOrigin) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.origins) >= maxPendingReads {
		for k := range s.origins {
			delete(s.origins, k)
			break
		}
	}
	s.origins[id] = origin
}
