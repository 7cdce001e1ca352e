package genai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completionsAdapter adapts the SDK's completion service to chatService.
type completionsAdapter struct {
	svc *openai.ChatCompletionService
}

func (a completionsAdapter) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := a.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// OpenAIBackend answers prompts with OpenAI chat completions.
type OpenAIBackend struct {
	chat        chatService
	model       string
	temperature float64
	maxTokens   int
	debug       debugLog
}

// NewOpenAIBackend creates an OpenAI backend. WithAPIKey is required.
func NewOpenAIBackend(opts ...Option) (*OpenAIBackend, error) {
	o := applyOpts(DefaultOpenAIModel, opts)
	if o.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set: %w", ErrNotConfigured)
	}
	client := openai.NewClient(option.WithAPIKey(o.APIKey))
	slog.Debug("OpenAIBackend.NewOpenAIBackend: client created", "model", o.Model, "temperature", o.Temperature, "max_tokens", o.MaxTokens)
	return &OpenAIBackend{
		chat:        completionsAdapter{svc: &client.Chat.Completions},
		model:       o.Model,
		temperature: o.Temperature,
		maxTokens:   o.MaxTokens,
		debug:       debugLog{enabled: o.DebugMode, stateDir: o.StateDir},
	}, nil
}

// Generate sends prompt as a single user message.
func (b *OpenAIBackend) Generate(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(b.model),
		Messages: []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
	}
	if b.temperature > 0 {
		params.Temperature = openai.Float(b.temperature)
	}
	if b.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(b.maxTokens))
	}

	slog.Debug("OpenAIBackend.Generate: calling chat completions", "model", b.model, "prompt_chars", len(prompt))
	resp, err := b.chat.Create(ctx, params)
	if err != nil {
		slog.Error("OpenAIBackend.Generate: API call failed", "error", err)
		b.debug.write("OpenAIBackend.Generate", b.model, prompt, "", err)
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		b.debug.write("OpenAIBackend.Generate", b.model, prompt, "", ErrNoChoicesReturned)
		return "", ErrNoChoicesReturned
	}
	out := resp.Choices[0].Message.Content
	b.debug.write("OpenAIBackend.Generate", b.model, prompt, out, nil)
	slog.Debug("OpenAIBackend.Generate: completion received", "chars", len(out))
	return out, nil
}
