package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug, " WARN ": slog.LevelWarn, "warning": slog.LevelWarn,
		"error": slog.LevelError, "": slog.LevelInfo, "verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}
}

func TestLoggerTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Component: ComponentLedger, Output: &buf})
	l.Info("aggregated", FieldCount, 3)
	l.WithComponent(ComponentUpload).Warn("rejected")

	out := buf.String()
	if !strings.Contains(out, "component=ledger") || !strings.Contains(out, "count=3") {
		t.Fatalf("unexpected output: %s", out)
	}
	if !strings.Contains(out, "component=upload") {
		t.Fatalf("expected upload component: %s", out)
	}
}

func TestStructuredLoggerError(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Output: &buf, JSON: true}))
	sl.LogError(context.Background(), "store failed", errors.New("boom"), ComponentStorage, OpReplace, nil)
	out := buf.String()
	if !strings.Contains(out, `"error":"boom"`) || !strings.Contains(out, `"operation":"replace"`) {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestFromContextFallsBack(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	if FromContext(r.Context()) == nil {
		t.Fatal("expected default logger")
	}
}
