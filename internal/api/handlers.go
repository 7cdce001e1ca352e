package api

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/BTreeMap/LeadPipe/internal/redact"
	"github.com/BTreeMap/LeadPipe/internal/store"
)

func (s *Server) rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("LeadPipe WhatsApp assistant is running\n"))
}

type healthStatus struct {
	Status              string `json:"status"`
	TransportConfigured bool   `json:"transport_configured"`
	GenAIConfigured     bool   `json:"genai_configured"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, healthStatus{
		Status:              "healthy",
		TransportConfigured: s.opts.TransportConfigured,
		GenAIConfigured:     s.opts.GenAIConfigured,
	})
}

// requireAdmin rejects requests without the configured bearer token.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.opts.AdminToken == "" {
			writeJSONResponse(w, http.StatusForbidden, models.Error("Admin API is disabled"))
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.opts.AdminToken)) != 1 {
			slog.Warn("Server.requireAdmin: unauthorized request", "method", r.Method, "path", r.URL.Path)
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeJSONResponse(w, http.StatusUnauthorized, models.Error("Unauthorized"))
			return
		}
		next(w, r)
	}
}

// conversationID reads the {id} path value. A leading '+' is dropped since
// users are keyed by digits only.
func conversationID(r *http.Request) string {
	return strings.TrimPrefix(strings.TrimSpace(r.PathValue("id")), "+")
}

func (s *Server) getConversationHandler(w http.ResponseWriter, r *http.Request) {
	id := conversationID(r)
	if id == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Conversation id is required"))
		return
	}
	state, err := s.conversations.Snapshot(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Conversation not found"))
		return
	}
	if err != nil {
		slog.Error("Server.getConversationHandler: snapshot failed", "user", redact.Phone(id), "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to load conversation"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(state))
}

func (s *Server) resetConversationHandler(w http.ResponseWriter, r *http.Request) {
	id := conversationID(r)
	if id == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Conversation id is required"))
		return
	}
	if err := s.conversations.Reset(r.Context(), id); err != nil {
		slog.Error("Server.resetConversationHandler: reset failed", "user", redact.Phone(id), "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to reset conversation"))
		return
	}
	slog.Info("Server.resetConversationHandler: conversation reset", "user", redact.Phone(id))
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Conversation reset", nil))
}
