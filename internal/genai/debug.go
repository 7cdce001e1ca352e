package genai

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// debugLog records raw backend exchanges to <stateDir>/debug when enabled.
type debugLog struct {
	enabled  bool
	stateDir string
}

type debugEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Method    string         `json:"method"`
	Model     string         `json:"model"`
	Params    map[string]any `json:"params"`
	Response  string         `json:"response"`
	Error     string         `json:"error,omitempty"`
}

func (d debugLog) write(method, model, prompt, response string, callErr error) {
	if !d.enabled || d.stateDir == "" {
		return
	}
	dir := filepath.Join(d.stateDir, "debug")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("genai.debugLog: failed to create debug directory", "dir", dir, "error", err)
		return
	}
	entry := debugEntry{
		Timestamp: time.Now().UTC(),
		Method:    method,
		Model:     model,
		Params:    map[string]any{"prompt": prompt},
		Response:  response,
	}
	if callErr != nil {
		entry.Error = callErr.Error()
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		slog.Warn("genai.debugLog: failed to encode entry", "error", err)
		return
	}
	name := fmt.Sprintf("genai_%s.json", entry.Timestamp.Format("20060102T150405.000000000"))
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		slog.Warn("genai.debugLog: failed to write entry", "error", err)
	}
}
