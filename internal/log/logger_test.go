package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal(line, &m); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: "json", Component: ComponentRecords, Output: &buf})

	l.Info("hello", FieldRecordID, "_a1")
	l.WithComponent(ComponentBackup).Warn("careful")
	l.With(FieldRequestID, "req-1").Debug("details")

	lines := decodeLines(t, &buf)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0][FieldComponent] != ComponentRecords || lines[0][FieldRecordID] != "_a1" {
		t.Errorf("unexpected first line %v", lines[0])
	}
	if lines[1][FieldComponent] != ComponentBackup {
		t.Errorf("expected backup component, got %v", lines[1])
	}
	if lines[2][FieldRequestID] != "req-1" {
		t.Errorf("expected request id attribute, got %v", lines[2])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Format: "json", Component: ComponentApp, Output: &buf})
	l.Info("dropped")
	l.Error("kept")
	if lines := decodeLines(t, &buf); len(lines) != 1 || lines[0]["msg"] != "kept" {
		t.Fatalf("expected only the error line, got %v", lines)
	}
}

func TestMiddlewareStoresLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentHTTP, Output: &buf})

	h := Middleware(l)(RequestIDMiddleware(func(*http.Request) string { return "abc" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			FromContext(r.Context()).Info("inside")
		})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0][FieldRequestID] != "abc" || lines[0][FieldComponent] != ComponentHTTP {
		t.Fatalf("unexpected log lines %v", lines)
	}
}

func TestFromContextFallback(t *testing.T) {
	if l := FromContext(context.Background()); l == nil || l.Component() != "unknown" {
		t.Fatalf("expected fallback logger, got %+v", l)
	}
}

func TestStructuredLoggerLogError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelInfo, Format: "json", Component: ComponentApp, Output: &buf}))
	sl.LogError(context.Background(), "persist failed", errors.New("disk full"), ComponentStorage, OpPersist, nil)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected one line, got %d", len(lines))
	}
	if lines[0][FieldError] != "disk full" || lines[0][FieldOperation] != OpPersist || lines[0][FieldComponent] != ComponentStorage {
		t.Errorf("unexpected line %v", lines[0])
	}
}
