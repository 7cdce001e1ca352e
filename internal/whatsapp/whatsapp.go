// Package whatsapp wraps the Whatsmeow client for WhatsApp integration in LeadPipe.
//
// It sends text and document messages, marks messages read, and exposes the
// underlying client for event handling.
package whatsapp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/store"
	"github.com/mdp/qrterminal/v3"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

// Constants for WhatsApp client configuration
const (
	// DefaultSQLitePath is the default path for WhatsApp/whatsmeow SQLite database
	DefaultSQLitePath = "/var/lib/leadpipe/whatsmeow.db"
	// JIDSuffix is the WhatsApp JID suffix for regular users
	JIDSuffix = "s.whatsapp.net"
)

// WhatsAppSender is an interface for sending WhatsApp messages (for production and testing)
type WhatsAppSender interface {
	SendMessage(ctx context.Context, to string, body string) error
	SendDocument(ctx context.Context, to string, path string, fileName string, caption string) error
	MarkRead(ctx context.Context, messageID string, chat string, sender string) error
}

// Opts holds configuration options for the WhatsApp client.
// This focuses solely on WhatsApp/whatsmeow database configuration and login settings.
type Opts struct {
	DBDSN       string // WhatsApp/whatsmeow database connection string
	QRPath      string // path to write login QR code
	NumericCode bool   // use numeric login code instead of QR code
}

// Option defines a configuration option for the WhatsApp client.
type Option func(*Opts)

// WithDBDSN sets the WhatsApp/whatsmeow database connection string.
func WithDBDSN(dsn string) Option {
	return func(o *Opts) {
		o.DBDSN = dsn
	}
}

// WithQRCodeOutput instructs the WhatsApp client to write the login QR code to the specified path.
func WithQRCodeOutput(path string) Option {
	return func(o *Opts) {
		o.QRPath = path
	}
}

// WithNumericCode instructs the WhatsApp client to use numeric login code instead of QR code.
func WithNumericCode() Option {
	return func(o *Opts) {
		o.NumericCode = true
	}
}

// Client wraps the Whatsmeow client for modular use
type Client struct {
	waClient *whatsmeow.Client
}

// driverForDSN picks the database/sql driver for the device store.
func driverForDSN(dsn string) string {
	if store.DetectDSNType(dsn) == "postgres" {
		return "postgres"
	}
	if !strings.Contains(dsn, "foreign_keys") {
		slog.Warn("whatsapp.driverForDSN: SQLite device store without foreign keys; whatsmeow expects them",
			"dsn_example", "file:"+dsn+"?_foreign_keys=on")
	}
	return "sqlite3"
}

// NewClient opens the device store, logs in if the device is not yet paired, and connects.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DBDSN == "" {
		cfg.DBDSN = DefaultSQLitePath
	}
	driver := driverForDSN(cfg.DBDSN)
	slog.Debug("whatsapp.NewClient: options set", "driver", driver, "QRPath_set", cfg.QRPath != "", "NumericCode", cfg.NumericCode)

	container, err := sqlstore.New(ctx, driver, cfg.DBDSN, waLog.Stdout("Database", "INFO", true))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize WhatsApp database store: %w", err)
	}
	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get device from WhatsApp store: %w", err)
	}

	waClient := whatsmeow.NewClient(deviceStore, waLog.Stdout("Client", "INFO", true))
	if waClient.Store.ID == nil {
		if err := login(ctx, waClient, cfg); err != nil {
			return nil, err
		}
	} else if err := waClient.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to WhatsApp server: %w", err)
	}
	slog.Info("whatsapp.NewClient: connected")
	return &Client{waClient: waClient}, nil
}

// login pairs a new device, printing the QR code (or numeric code) to stdout or cfg.QRPath.
func login(ctx context.Context, waClient *whatsmeow.Client, cfg Opts) error {
	slog.Info("whatsapp.login: pairing required")
	qrChan, err := waClient.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("failed to open QR channel: %w", err)
	}
	if err := waClient.Connect(); err != nil {
		return fmt.Errorf("failed to connect to WhatsApp during login: %w", err)
	}

	writer := io.Writer(os.Stdout)
	if cfg.QRPath != "" {
		f, err := os.Create(cfg.QRPath)
		if err != nil {
			return fmt.Errorf("failed to create QR file: %w", err)
		}
		defer f.Close()
		writer = f
	}
	for evt := range qrChan {
		if evt.Event != "code" {
			slog.Info("whatsapp.login: event", "event", evt.Event)
			continue
		}
		if cfg.NumericCode {
			fmt.Fprintln(writer, evt.Code)
		} else {
			qrterminal.GenerateHalfBlock(evt.Code, qrterminal.L, writer)
		}
	}
	return nil
}

// userJID builds the JID of a phone number, tolerating a leading '+'.
func userJID(to string) types.JID {
	return types.NewJID(strings.TrimPrefix(to, "+"), JIDSuffix)
}

func (c *Client) ready() error {
	if c.waClient == nil {
		return fmt.Errorf("whatsapp client not initialized")
	}
	if c.waClient.Store == nil {
		return fmt.Errorf("whatsapp client store not available")
	}
	return nil
}

// SendMessage sends a WhatsApp text message to the specified recipient.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if to == "" {
		return fmt.Errorf("recipient cannot be empty")
	}
	if body == "" {
		return fmt.Errorf("message body cannot be empty")
	}

	slog.Debug("Sending WhatsApp message", "body_length", len(body))
	msg := &waE2E.Message{Conversation: proto.String(body)}

	if _, err := c.waClient.SendMessage(ctx, userJID(to), msg); err != nil {
		slog.Error("Failed to send WhatsApp message", "error", err)
		return fmt.Errorf("failed to send message to %s: %w", to, err)
	}

	slog.Debug("WhatsApp message sent successfully")
	return nil
}

// SendDocument uploads the file at path and sends it as a document message.
func (c *Client) SendDocument(ctx context.Context, to string, path string, fileName string, caption string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if to == "" {
		return fmt.Errorf("recipient cannot be empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read document %s: %w", path, err)
	}
	if fileName == "" {
		fileName = filepath.Base(path)
	}

	uploaded, err := c.waClient.Upload(ctx, data, whatsmeow.MediaDocument)
	if err != nil {
		slog.Error("Failed to upload WhatsApp document", "error", err, "file", fileName)
		return fmt.Errorf("failed to upload document: %w", err)
	}

	msg := &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
		URL:           proto.String(uploaded.URL),
		DirectPath:    proto.String(uploaded.DirectPath),
		MediaKey:      uploaded.MediaKey,
		FileEncSHA256: uploaded.FileEncSHA256,
		FileSHA256:    uploaded.FileSHA256,
		FileLength:    proto.Uint64(uploaded.FileLength),
		Mimetype:      proto.String(documentMimeType(fileName)),
		FileName:      proto.String(fileName),
		Caption:       proto.String(caption),
	}}
	if _, err := c.waClient.SendMessage(ctx, userJID(to), msg); err != nil {
		slog.Error("Failed to send WhatsApp document", "error", err, "file", fileName)
		return fmt.Errorf("failed to send document to %s: %w", to, err)
	}
	slog.Debug("WhatsApp document sent", "file", fileName, "bytes", len(data))
	return nil
}

func documentMimeType(fileName string) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(fileName))); t != "" {
		return t
	}
	return "application/octet-stream"
}

// MarkRead sends a read receipt for messageID. chat and sender are JID strings as
// reported by the inbound event.
func (c *Client) MarkRead(ctx context.Context, messageID string, chat string, sender string) error {
	if err := c.ready(); err != nil {
		return err
	}
	chatJID, err := types.ParseJID(chat)
	if err != nil {
		return fmt.Errorf("invalid chat jid %q: %w", chat, err)
	}
	senderJID, err := types.ParseJID(sender)
	if err != nil {
		return fmt.Errorf("invalid sender jid %q: %w", sender, err)
	}
	return c.waClient.MarkRead([]types.MessageID{messageID}, time.Now(), chatJID, senderJID)
}

// GetClient returns the underlying whatsmeow client for event handling
func (c *Client) GetClient() *whatsmeow.Client {
	return c.waClient
}

// MockClient records sends instead of talking to WhatsApp.
type MockClient struct {
	Messages  []string
	Documents []string
	Reads     []string
	Err       error
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Messages = append(m.Messages, to+": "+body)
	return nil
}

func (m *MockClient) SendDocument(ctx context.Context, to string, path string, fileName string, caption string) error {
	if m.Err != nil {
		return m.Err
	}
	m.Documents = append(m.Documents, to+": "+path)
	return nil
}

func (m *MockClient) MarkRead(ctx context.Context, messageID string, chat string, sender string) error {
	m.Reads = append(m.Reads, messageID)
	return nil
}
