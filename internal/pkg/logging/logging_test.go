package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/samirrijal/skyhop/internal/pkg/logging"
)

func TestSetupWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.SetupWriter(&buf, "skyhop-test", "debug", "json")
	logger.Debug("hello", "booking_id", "b1")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if line["service"] != "skyhop-test" || line["booking_id"] != "b1" {
		t.Fatalf("unexpected attrs: %v", line)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := logging.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestFromContext(t *testing.T) {
	if logging.FromContext(context.Background()) != slog.Default() {
		t.Fatal("expected default logger for empty context")
	}
	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := logging.WithLogger(context.Background(), l)
	if logging.FromContext(ctx) != l {
		t.Fatal("expected stored logger")
	}
}
