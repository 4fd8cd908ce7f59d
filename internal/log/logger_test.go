package log

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelInfo, Format: FormatJSON, Output: &buf}).
		WithComponent(ComponentRecurring)

	logger.Info("sweep finished", FieldCreated, 3)

	out := buf.String()
	if !strings.Contains(out, `"component":"recurring"`) {
		t.Fatalf("expected component field, got %s", out)
	}
	if !strings.Contains(out, `"created":3`) {
		t.Fatalf("expected created field, got %s", out)
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: slog.LevelWarn, Format: FormatText, Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Fatal("info record should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Fatal("warn record should be written")
	}
}

func TestLogFields(t *testing.T) {
	fields := NewFields().
		WithTemplate("tpl-1", "user-1").
		WithOperation(OpMaterialize).
		WithError(errors.New("boom"))

	if fields[FieldTemplateID] != "tpl-1" || fields[FieldUserID] != "user-1" {
		t.Fatalf("unexpected template fields: %v", fields)
	}
	if fields[FieldError] != "boom" {
		t.Fatalf("unexpected error field: %v", fields[FieldError])
	}
	if len(fields.ToSlice()) != 2*len(fields) {
		t.Fatal("ToSlice should emit key/value pairs")
	}
}
