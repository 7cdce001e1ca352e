package genai

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BTreeMap/LeadPipe/internal/retry"
	"github.com/openai/openai-go"
	gemini "google.golang.org/genai"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp   openai.ChatCompletion
	err    error
	params openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	m.params = params
	return m.resp, m.err
}

func TestOpenAIGenerate_Success(t *testing.T) {
	mockResp := openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "Hello World"}},
		},
	}
	mock := &mockChatService{resp: mockResp}
	b := &OpenAIBackend{chat: mock, model: "test-model", temperature: 0.3, maxTokens: 800}
	out, err := b.Generate(context.Background(), "user prompt")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out != "Hello World" {
		t.Errorf("expected 'Hello World', got '%s'", out)
	}
	if len(mock.params.Messages) != 1 {
		t.Errorf("expected a single user message, got %d", len(mock.params.Messages))
	}
	if string(mock.params.Model) != "test-model" {
		t.Errorf("expected model test-model, got %s", mock.params.Model)
	}
}

func TestOpenAIGenerate_ServiceError(t *testing.T) {
	b := &OpenAIBackend{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := b.Generate(context.Background(), "usr")
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestOpenAIGenerate_NoChoices(t *testing.T) {
	mockResp := openai.ChatCompletion{Choices: []openai.ChatCompletionChoice{}}
	b := &OpenAIBackend{chat: &mockChatService{resp: mockResp}}
	_, err := b.Generate(context.Background(), "usr")
	if err != ErrNoChoicesReturned {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestNewOpenAIBackend_NoKey(t *testing.T) {
	_, err := NewOpenAIBackend()
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNewOpenAIBackend_WithKey(t *testing.T) {
	b, err := NewOpenAIBackend(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("expected no error with API key, got %v", err)
	}
	if b == nil || b.model != DefaultOpenAIModel {
		t.Errorf("expected backend with default model, got %+v", b)
	}
}

type mockGenerator struct {
	resp   *gemini.GenerateContentResponse
	err    error
	config *gemini.GenerateContentConfig
}

func (m *mockGenerator) GenerateContent(ctx context.Context, model string, contents []*gemini.Content, config *gemini.GenerateContentConfig) (*gemini.GenerateContentResponse, error) {
	m.config = config
	return m.resp, m.err
}

func geminiResponse(parts ...*gemini.Part) *gemini.GenerateContentResponse {
	return &gemini.GenerateContentResponse{
		Candidates: []*gemini.Candidate{{Content: &gemini.Content{Parts: parts}}},
	}
}

func TestGeminiGenerate(t *testing.T) {
	mock := &mockGenerator{resp: geminiResponse(&gemini.Part{Text: "Hello "}, &gemini.Part{Text: "reasoning", Thought: true}, &gemini.Part{Text: "there"})}
	b := &GeminiBackend{models: mock, model: DefaultGeminiModel, temperature: 0.3, maxTokens: 800}
	out, err := b.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Hello there" {
		t.Errorf("expected joined non-thought parts, got %q", out)
	}
	if mock.config.MaxOutputTokens != 800 || mock.config.Temperature == nil || *mock.config.Temperature != float32(0.3) {
		t.Errorf("unexpected generation config: %+v", mock.config)
	}
}

func TestGeminiGenerate_Empty(t *testing.T) {
	b := &GeminiBackend{models: &mockGenerator{resp: &gemini.GenerateContentResponse{}}}
	if _, err := b.Generate(context.Background(), "hi"); err != ErrNoChoicesReturned {
		t.Errorf("expected ErrNoChoicesReturned, got %v", err)
	}
	b = &GeminiBackend{models: &mockGenerator{err: errors.New("quota")}}
	if _, err := b.Generate(context.Background(), "hi"); err == nil || !strings.Contains(err.Error(), "quota") {
		t.Errorf("expected wrapped quota error, got %v", err)
	}
}

func TestNewGeminiBackend_NoKey(t *testing.T) {
	if _, err := NewGeminiBackend(context.Background()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

// scriptedBackend returns the queued results in order.
type scriptedBackend struct {
	results []error
	reply   string
	calls   int
}

func (s *scriptedBackend) Generate(ctx context.Context, prompt string) (string, error) {
	err := s.results[s.calls]
	s.calls++
	if err != nil {
		return "", err
	}
	return s.reply, nil
}

func noSleepPolicy(sleeps *[]time.Duration) retry.Policy {
	p := DefaultRetryPolicy
	p.Sleep = func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}
	return p
}

func TestAnswererRetriesOnce(t *testing.T) {
	var sleeps []time.Duration
	backend := &scriptedBackend{results: []error{errors.New("503"), nil}, reply: "The 3BHK is 1.85 Cr."}
	a := NewAnswerer(backend, WithRetryPolicy(noSleepPolicy(&sleeps)))
	if got := a.Ask(context.Background(), "p"); got != "The 3BHK is 1.85 Cr." {
		t.Errorf("unexpected reply %q", got)
	}
	if backend.calls != 2 {
		t.Errorf("expected 2 calls, got %d", backend.calls)
	}
	if len(sleeps) != 1 || sleeps[0] != 2*time.Second {
		t.Errorf("expected one 2s pause, got %v", sleeps)
	}
}

func TestAnswererDoubleFailureFallback(t *testing.T) {
	var sleeps []time.Duration
	backend := &scriptedBackend{results: []error{errors.New("timeout"), errors.New("timeout"), nil}}
	a := NewAnswerer(backend, WithRetryPolicy(noSleepPolicy(&sleeps)))
	got := a.Ask(context.Background(), "p")
	want := "Sorry, I'm having trouble answering right now. Please try again or contact our agent at +91 1234567890."
	if got != want {
		t.Errorf("expected fallback %q, got %q", want, got)
	}
	if backend.calls != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", backend.calls)
	}
}

func TestAnswererFallbackPhone(t *testing.T) {
	a := NewAnswerer(&scriptedBackend{}, WithFallbackPhone("+91 9000000000"))
	if !strings.Contains(a.FallbackReply(), "+91 9000000000.") {
		t.Errorf("unexpected fallback %q", a.FallbackReply())
	}
}

func TestAnswererNotConfigured(t *testing.T) {
	a := NewAnswerer(nil)
	if a.Configured() {
		t.Error("expected unconfigured answerer")
	}
	if got := a.Ask(context.Background(), "p"); got != NotConfiguredReply {
		t.Errorf("expected configure notice, got %q", got)
	}
}
