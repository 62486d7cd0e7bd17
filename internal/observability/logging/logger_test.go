package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Fatalf("ParseLevel(%q)=%v, want %v", raw, got, want)
		}
	}
}

func TestNewJSONLoggerToTagsServiceAndFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLoggerTo(&buf, "lovdata-mcp", "warn")

	logger.Info("ignored")
	logger.Warn("archive_member_skipped", "member", "lov.xml")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected exactly one json record, got %q: %v", buf.String(), err)
	}
	if record["service"] != "lovdata-mcp" {
		t.Fatalf("unexpected service: %v", record["service"])
	}
	if record["msg"] != "archive_member_skipped" || record["member"] != "lov.xml" {
		t.Fatalf("unexpected record: %v", record)
	}
}
