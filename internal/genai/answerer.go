package genai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/retry"
)

// NotConfiguredReply is returned by an Answerer that has no backend.
const NotConfiguredReply = "⚠️ Please configure your Gemini API key"

// DefaultRetryPolicy makes one retry after a fixed two-second pause.
var DefaultRetryPolicy = retry.Policy{MaxAttempts: 2, Delay: 2 * time.Second}

// Answerer turns prompts into reply text. It never fails: when the backend keeps
// erroring it returns a fixed apology naming the agent's phone number.
type Answerer struct {
	backend    Backend
	policy     retry.Policy
	agentPhone string
}

// AnswererOption configures an Answerer.
type AnswererOption func(*Answerer)

// WithRetryPolicy replaces DefaultRetryPolicy.
func WithRetryPolicy(p retry.Policy) AnswererOption {
	return func(a *Answerer) { a.policy = p }
}

// WithFallbackPhone sets the number quoted in the failure reply.
func WithFallbackPhone(phone string) AnswererOption {
	return func(a *Answerer) { a.agentPhone = phone }
}

// NewAnswerer wraps backend. A nil backend yields NotConfiguredReply for every prompt.
func NewAnswerer(backend Backend, opts ...AnswererOption) *Answerer {
	a := &Answerer{
		backend:    backend,
		policy:     DefaultRetryPolicy,
		agentPhone: "+91 1234567890",
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Configured reports whether a backend is attached.
func (a *Answerer) Configured() bool {
	return a != nil && a.backend != nil
}

// FallbackReply is the text returned once every attempt failed.
func (a *Answerer) FallbackReply() string {
	return fmt.Sprintf("Sorry, I'm having trouble answering right now. Please try again or contact our agent at %s.", a.agentPhone)
}

// Ask generates a reply for prompt.
func (a *Answerer) Ask(ctx context.Context, prompt string) string {
	if !a.Configured() {
		slog.Warn("Answerer.Ask: no generative backend configured")
		return NotConfiguredReply
	}
	var reply string
	err := a.policy.Do(ctx, func(ctx context.Context) error {
		out, err := a.backend.Generate(ctx, prompt)
		if err != nil {
			slog.Warn("Answerer.Ask: attempt failed", "error", err)
			return err
		}
		reply = out
		return nil
	})
	if err != nil {
		slog.Error("Answerer.Ask: all attempts failed, returning fallback", "error", err)
		return a.FallbackReply()
	}
	return reply
}
