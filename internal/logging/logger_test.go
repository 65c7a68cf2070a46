package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hordeforge/engine/internal/config"
)

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newWriterLogger(&buf, InfoLevel).ForRun("run-1")

	logger.Debug("hidden")
	logger.Info("offer drawn", Int("count", 3), Float64("weight", 1.5), Error(errors.New("boom")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line above the level threshold, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if entry[RunIDField] != "run-1" {
		t.Fatalf("expected run id field, got %#v", entry)
	}
	if entry["count"] != float64(3) || entry["weight"] != 1.5 || entry["error"] != "boom" {
		t.Fatalf("unexpected fields: %#v", entry)
	}
	if entry["level"] != "info" || entry["message"] != "offer drawn" {
		t.Fatalf("unexpected level/message: %#v", entry)
	}
}

func TestWithDoesNotLeakFieldsToParent(t *testing.T) {
	parent, capture := NewCaptureLogger()
	child := parent.With(String("component", "selector"))

	parent.Info("parent")
	child.Info("child")

	entries := capture.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}
	if _, ok := entries[0]["component"]; ok {
		t.Fatalf("parent entry should not carry child fields: %#v", entries[0])
	}
	if entries[1]["component"] != "selector" {
		t.Fatalf("child entry missing component: %#v", entries[1])
	}
}

func TestCaptureMessagesFiltersByLevel(t *testing.T) {
	logger, capture := NewCaptureLogger()
	logger.Warn("first warning")
	logger.Info("note")
	logger.Warn("second warning")

	warnings := capture.Messages(WarnLevel)
	if len(warnings) != 2 || warnings[1] != "second warning" {
		t.Fatalf("unexpected warnings %#v", warnings)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		raw   string
		level Level
		err   bool
	}{
		{raw: "", level: InfoLevel},
		{raw: "DEBUG", level: DebugLevel},
		{raw: "warning", level: WarnLevel},
		{raw: "loud", level: InfoLevel, err: true},
	}
	for _, tc := range tests {
		level, err := ParseLevel(tc.raw)
		if (err != nil) != tc.err {
			t.Fatalf("ParseLevel(%q) error = %v; want error %v", tc.raw, err, tc.err)
		}
		if level != tc.level {
			t.Fatalf("ParseLevel(%q) = %v; want %v", tc.raw, level, tc.level)
		}
	}
}

func TestHTTPTraceMiddlewarePropagatesTraceID(t *testing.T) {
	logger := NewTestLogger()
	var seen string
	handler := HTTPTraceMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
		if LoggerFromContext(r.Context()) == nil {
			t.Fatal("expected logger in context")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set(TraceIDHeader, "trace-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "trace-123" {
		t.Fatalf("expected trace id to propagate, got %q", seen)
	}
	if rec.Header().Get(TraceIDHeader) != "trace-123" {
		t.Fatalf("expected trace id echoed in response header")
	}
}

func TestLoggerFromContextFallsBackToGlobal(t *testing.T) {
	if LoggerFromContext(context.Background()) != L() {
		t.Fatal("expected global logger fallback")
	}
}

func TestRotatingWriterRotatesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.log")
	writer, err := newRotatingWriter(config.LoggingConfig{Path: path, MaxSizeMB: 1, MaxBackups: 1})
	if err != nil {
		t.Fatalf("newRotatingWriter: %v", err)
	}
	writer.maxSize = 16

	for i := 0; i < 4; i++ {
		if _, err := writer.Write([]byte("0123456789abcdef")); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := writer.Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	backups := 0
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "engine.log.") {
			backups++
		}
	}
	if backups != 1 {
		t.Fatalf("expected pruning to keep one backup, found %d", backups)
	}
}
