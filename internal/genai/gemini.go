package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	gemini "google.golang.org/genai"
)

// contentGenerator is the slice of the Gemini models service this package uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*gemini.Content, config *gemini.GenerateContentConfig) (*gemini.GenerateContentResponse, error)
}

// GeminiBackend answers prompts with the Gemini API.
type GeminiBackend struct {
	models      contentGenerator
	model       string
	temperature float64
	maxTokens   int
	debug       debugLog
}

// NewGeminiBackend creates a Gemini backend. WithAPIKey is required.
func NewGeminiBackend(ctx context.Context, opts ...Option) (*GeminiBackend, error) {
	o := applyOpts(DefaultGeminiModel, opts)
	if o.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key not set: %w", ErrNotConfigured)
	}
	client, err := gemini.NewClient(ctx, &gemini.ClientConfig{
		APIKey:  o.APIKey,
		Backend: gemini.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	slog.Debug("GeminiBackend.NewGeminiBackend: client created", "model", o.Model, "temperature", o.Temperature, "max_tokens", o.MaxTokens)
	return &GeminiBackend{
		models:      client.Models,
		model:       o.Model,
		temperature: o.Temperature,
		maxTokens:   o.MaxTokens,
		debug:       debugLog{enabled: o.DebugMode, stateDir: o.StateDir},
	}, nil
}

// Generate sends prompt as a single user turn and joins the text parts of the first candidate.
func (b *GeminiBackend) Generate(ctx context.Context, prompt string) (string, error) {
	cfg := &gemini.GenerateContentConfig{
		Temperature:     gemini.Ptr(float32(b.temperature)),
		MaxOutputTokens: int32(b.maxTokens),
	}
	slog.Debug("GeminiBackend.Generate: calling GenerateContent", "model", b.model, "prompt_chars", len(prompt))
	resp, err := b.models.GenerateContent(ctx, b.model, gemini.Text(prompt), cfg)
	if err != nil {
		slog.Error("GeminiBackend.Generate: API call failed", "error", err)
		b.debug.write("GeminiBackend.Generate", b.model, prompt, "", err)
		return "", fmt.Errorf("gemini generate content failed: %w", err)
	}
	out := firstCandidateText(resp)
	if strings.TrimSpace(out) == "" {
		b.debug.write("GeminiBackend.Generate", b.model, prompt, "", ErrNoChoicesReturned)
		return "", ErrNoChoicesReturned
	}
	b.debug.write("GeminiBackend.Generate", b.model, prompt, out, nil)
	slog.Debug("GeminiBackend.Generate: completion received", "chars", len(out))
	return out, nil
}

func firstCandidateText(resp *gemini.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	c := resp.Candidates[0]
	if c == nil || c.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range c.Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}
