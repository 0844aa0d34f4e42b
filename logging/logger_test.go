package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "json", "INFO")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Debug().Msg("hidden")
	logger.Info().Str("backend", "gemini").Msg("suspended")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if entry["service"] != "mysterria-translator" || entry["backend"] != "gemini" || entry["level"] != "info" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestNew_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "console", "debug")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Debug().Msg("hello")
	if !strings.Contains(buf.String(), "hello") || strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected console output, got %q", buf.String())
	}
}

func TestNew_BadLevel(t *testing.T) {
	if _, err := New(&bytes.Buffer{}, "json", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestDebug(t *testing.T) {
	if Debug("warn", true) != "debug" || Debug("warn", false) != "warn" {
		t.Error("Debug should only override when enabled")
	}
}
