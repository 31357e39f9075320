package logging

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func TestNewJSONWriter_WritesStructuredFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewJSONWriter(&buf, LevelInfo)

	logger.Debug("hidden")
	logger.InfoContext(context.Background(), "insert successful", "account_id", int64(42), "error", errors.New("boom"), "dangling")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := sonic.UnmarshalString(lines[0], &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["msg"] != "insert successful" || entry["level"] != "INFO" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["account_id"] != float64(42) {
		t.Fatalf("unexpected account_id: %v", entry["account_id"])
	}
	if entry["error"] != "boom" {
		t.Fatalf("unexpected error field: %v", entry["error"])
	}
	if _, ok := entry["dangling"]; !ok {
		t.Fatalf("expected dangling key to be kept")
	}
}

func TestLogger_WithAndNilSafety(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewJSONWriter(&buf, LevelDebug).With("run_id", "r-1")
	logger.Warn("skipping, record exists")
	if !strings.Contains(buf.String(), `"run_id":"r-1"`) {
		t.Fatalf("expected bound field, got %q", buf.String())
	}

	var nilLogger *Logger
	nilLogger.Info("does not panic")
	if nilLogger.Zap() == nil {
		t.Fatalf("expected nop zap logger")
	}
}

func TestFields_TypedValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewJSONWriter(&buf, LevelInfo).Named("ingest")
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	logger.Info("cycle", "updated_at", at, "failed", []int64{7, 9})

	var entry map[string]any
	if err := sonic.UnmarshalString(strings.TrimSpace(buf.String()), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["logger"] != "ingest" {
		t.Fatalf("unexpected logger name: %v", entry["logger"])
	}
	if entry["updated_at"] != "2024-03-01T11:00:00Z" {
		t.Fatalf("expected utc timestamp, got %v", entry["updated_at"])
	}
	failed, ok := entry["failed"].([]any)
	if !ok || len(failed) != 2 {
		t.Fatalf("unexpected failed ids: %v", entry["failed"])
	}
	if caller, _ := entry["caller"].(string); !strings.HasPrefix(caller, "logging/logger_test.go") {
		t.Fatalf("expected caller to point at the test, got %q", caller)
	}
}
