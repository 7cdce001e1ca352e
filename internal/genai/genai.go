// Package genai produces answers from generative text backends (Gemini or OpenAI).

package genai

import (
	"context"
	"errors"
)

// ErrNoChoicesReturned is returned when a backend answers without any text.
var ErrNoChoicesReturned = errors.New("no choices returned")

// ErrNotConfigured is returned when a backend is constructed without an API key.
var ErrNotConfigured = errors.New("generative backend not configured")

// Backend generates a completion for a single prompt.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Default generation settings.
const (
	DefaultGeminiModel = "gemini-2.5-flash"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 800
)

// Opts holds configuration shared by the backends.
type Opts struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	DebugMode   bool
	StateDir    string
}

// Option configures a backend.
type Option func(*Opts)

// WithAPIKey overrides the API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the model name.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float64) Option {
	return func(o *Opts) { o.Temperature = temp }
}

// WithMaxTokens caps the generated output length.
func WithMaxTokens(tokens int) Option {
	return func(o *Opts) { o.MaxTokens = tokens }
}

// WithDebugMode writes every call's prompt and reply under <StateDir>/debug.
func WithDebugMode(enabled bool) Option {
	return func(o *Opts) { o.DebugMode = enabled }
}

// WithStateDir sets the directory debug logs are written to.
func WithStateDir(dir string) Option {
	return func(o *Opts) { o.StateDir = dir }
}

func applyOpts(defaultModel string, opts []Option) Opts {
	o := Opts{
		Model:       defaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Model == "" {
		o.Model = defaultModel
	}
	return o
}
