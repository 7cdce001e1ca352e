package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestAcquireWritesHolder(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	defer lock.Release()

	if lock.Path() != filepath.Join(dir, LockFileName) {
		t.Errorf("unexpected lock path %s", lock.Path())
	}
	data, err := os.ReadFile(lock.Path())
	if err != nil {
		t.Fatalf("Failed to read lock file: %v", err)
	}
	h := parseHolder(string(data))
	if h.PID != os.Getpid() {
		t.Errorf("expected pid %d, got %d", os.Getpid(), h.PID)
	}
	if time.Since(h.Started) > time.Minute {
		t.Errorf("unexpected start time %v", h.Started)
	}
}

func TestAcquireConflict(t *testing.T) {
	dir := t.TempDir()
	first, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Failed to acquire first lock: %v", err)
	}
	defer first.Release()

	second, err := Acquire(dir)
	if err == nil {
		second.Release()
		t.Fatal("Second lock acquisition should have failed")
	}
	if !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked, got %v", err)
	}
	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected *LockError, got %T", err)
	}
	if lockErr.Holder.PID != os.Getpid() || !lockErr.Holder.Running {
		t.Errorf("expected this process as running holder, got %+v", lockErr.Holder)
	}
	msg := err.Error()
	if !strings.Contains(msg, "another LeadPipe instance") || !strings.Contains(msg, dir) {
		t.Errorf("unhelpful error message: %s", msg)
	}

	// The failed attempt must not clobber the holder's record.
	data, _ := os.ReadFile(first.Path())
	if !strings.Contains(string(data), "pid="+strconv.Itoa(os.Getpid())) {
		t.Errorf("holder record lost: %q", data)
	}
}

func TestReleaseAndReacquire(t *testing.T) {
	dir := t.TempDir()
	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Failed to acquire lock: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("Failed to release lock: %v", err)
	}
	if _, err := os.Stat(lock.Path()); !os.IsNotExist(err) {
		t.Errorf("lock file should be removed after release")
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second release should be a no-op: %v", err)
	}

	again, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Failed to reacquire lock after release: %v", err)
	}
	again.Release()
}

func TestAcquireCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	lock, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Should create the directory and lock it: %v", err)
	}
	defer lock.Release()
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory should exist: %v", err)
	}
}

func TestParseHolder(t *testing.T) {
	tests := []struct {
		name    string
		content string
		pid     int
		started bool
	}{
		{"full record", "pid=12345\nstarted=2025-11-04T09:00:00Z\n", 12345, true},
		{"pid only", "pid=67890", 67890, false},
		{"extra keys", "host=x\npid=42\nother=info", 42, false},
		{"empty", "", 0, false},
		{"invalid pid", "pid=abc\nstarted=yesterday", 0, false},
		{"no separator", "pid12345", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := parseHolder(tt.content)
			if h.PID != tt.pid || h.Started.IsZero() == tt.started {
				t.Errorf("parseHolder(%q) = %+v", tt.content, h)
			}
		})
	}
}

func TestHolderString(t *testing.T) {
	if s := (Holder{}).String(); s != "unknown process" {
		t.Errorf("unexpected %q", s)
	}
	if s := (Holder{PID: 7, Running: false}).String(); !strings.Contains(s, "stale") {
		t.Errorf("expected stale marker in %q", s)
	}
	if !isProcessRunning(os.Getpid()) {
		t.Error("own process should be detected as running")
	}
}
