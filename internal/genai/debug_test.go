package genai

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/openai/openai-go"
)

// Test the debug logging functionality
func TestDebugLogging(t *testing.T) {
	tempDir := t.TempDir()

	mockResp := openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "Test response"}},
		},
	}
	b := &OpenAIBackend{
		chat:        &mockChatService{resp: mockResp},
		model:       "test-model",
		temperature: 0.7,
		maxTokens:   100,
		debug:       debugLog{enabled: true, stateDir: tempDir},
	}

	if _, err := b.Generate(context.Background(), "User prompt"); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	debugDir := filepath.Join(tempDir, "debug")
	files, err := os.ReadDir(debugDir)
	if err != nil {
		t.Fatalf("Failed to read debug directory: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("No debug files were created")
	}

	content, err := os.ReadFile(filepath.Join(debugDir, files[0].Name()))
	if err != nil {
		t.Fatalf("Failed to read debug file: %v", err)
	}
	var logEntry map[string]interface{}
	if err := json.Unmarshal(content, &logEntry); err != nil {
		t.Fatalf("Failed to unmarshal debug log: %v", err)
	}

	for _, field := range []string{"timestamp", "method", "model", "params", "response"} {
		if _, exists := logEntry[field]; !exists {
			t.Errorf("Required field '%s' missing from debug log", field)
		}
	}
	if logEntry["method"] != "OpenAIBackend.Generate" {
		t.Errorf("Expected method 'OpenAIBackend.Generate', got %v", logEntry["method"])
	}
	if logEntry["model"] != "test-model" {
		t.Errorf("Expected model 'test-model', got %v", logEntry["model"])
	}
}

func TestDebugLoggingRecordsErrors(t *testing.T) {
	tempDir := t.TempDir()
	b := &OpenAIBackend{
		chat:  &mockChatService{err: errors.New("boom")},
		debug: debugLog{enabled: true, stateDir: tempDir},
	}
	_, _ = b.Generate(context.Background(), "p")

	files, err := os.ReadDir(filepath.Join(tempDir, "debug"))
	if err != nil || len(files) != 1 {
		t.Fatalf("expected one debug file, got %v (err %v)", files, err)
	}
	content, _ := os.ReadFile(filepath.Join(tempDir, "debug", files[0].Name()))
	var entry debugEntry
	if err := json.Unmarshal(content, &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry.Error != "boom" {
		t.Errorf("expected recorded error, got %q", entry.Error)
	}
}

// Test that debug logging is disabled when debug mode is false
func TestDebugLoggingDisabled(t *testing.T) {
	tempDir := t.TempDir()
	mockResp := openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: "Test response"}},
		},
	}
	b := &OpenAIBackend{
		chat:  &mockChatService{resp: mockResp},
		model: "test-model",
		debug: debugLog{enabled: false, stateDir: tempDir},
	}
	if _, err := b.Generate(context.Background(), "User prompt"); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "debug")); !os.IsNotExist(err) {
		t.Errorf("Debug directory should not be created when debug mode is disabled")
	}
}
