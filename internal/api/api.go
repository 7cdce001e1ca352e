// Package api serves LeadPipe's HTTP surface: the transport webhooks, a health
// probe and a small admin API over stored conversations.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/messaging"
	"github.com/BTreeMap/LeadPipe/internal/models"
)

// Server defaults.
const (
	DefaultAddr            = ":8080"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultReadTimeout     = 15 * time.Second
)

// Conversations is the admin view of conversation state. flow.Router implements it.
type Conversations interface {
	Snapshot(ctx context.Context, userID string) (*models.ConversationState, error)
	Reset(ctx context.Context, userID string) error
}

// Opts holds server settings.
type Opts struct {
	Addr                string
	AdminToken          string
	Webhooks            messaging.WebhookService
	TransportConfigured bool
	GenAIConfigured     bool
	ShutdownTimeout     time.Duration
}

// Option configures a Server.
type Option func(*Opts)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) {
		if addr != "" {
			o.Addr = addr
		}
	}
}

// WithAdminToken enables the conversation endpoints for requests carrying
// "Authorization: Bearer <token>". Without a token they answer 403.
func WithAdminToken(token string) Option {
	return func(o *Opts) { o.AdminToken = token }
}

// WithWebhooks mounts the inbound routes of the active transport.
func WithWebhooks(svc messaging.WebhookService) Option {
	return func(o *Opts) { o.Webhooks = svc }
}

// WithHealth sets what /health reports about the configured collaborators.
func WithHealth(transportConfigured, genaiConfigured bool) Option {
	return func(o *Opts) {
		o.TransportConfigured = transportConfigured
		o.GenAIConfigured = genaiConfigured
	}
}

// WithShutdownTimeout bounds how long Run waits for in-flight requests.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Opts) {
		if d > 0 {
			o.ShutdownTimeout = d
		}
	}
}

// Server is the HTTP front of LeadPipe.
type Server struct {
	opts          Opts
	conversations Conversations
	mux           *http.ServeMux
}

// NewServer builds the route table.
func NewServer(conversations Conversations, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr, ShutdownTimeout: DefaultShutdownTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{opts: cfg, conversations: conversations, mux: http.NewServeMux()}

	s.mux.HandleFunc("GET /{$}", s.rootHandler)
	s.mux.HandleFunc("GET /health", s.healthHandler)
	s.mux.HandleFunc("GET /conversations/{id}", s.requireAdmin(s.getConversationHandler))
	s.mux.HandleFunc("DELETE /conversations/{id}", s.requireAdmin(s.resetConversationHandler))
	if cfg.Webhooks != nil {
		cfg.Webhooks.RegisterRoutes(s.mux)
	}
	slog.Debug("Server.NewServer: routes registered", "addr", cfg.Addr, "webhooks", cfg.Webhooks != nil, "admin", cfg.AdminToken != "")
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler { return s.mux }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: DefaultReadTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: listening", "addr", s.opts.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server.Run: shutdown failed", "error", err)
		return err
	}
	slog.Info("Server.Run: stopped")
	return nil
}
