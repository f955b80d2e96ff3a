package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestInitJSONWithDebug(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	Init(Options{Debug: true, Format: "json", Output: &buf})
	Debug("hub request", "status", 200)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected a JSON log line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "hub request" || line["level"] != "DEBUG" {
		t.Errorf("unexpected log line: %v", line)
	}
}

func TestInitTextSkipsDebugByDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	Init(Options{Output: &buf})
	Debug("hidden")
	Warn("model not accessible", "model", "org/x")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("debug line leaked at info level: %q", out)
	}
	if !strings.Contains(out, "model=org/x") {
		t.Errorf("expected text handler output, got %q", out)
	}
}
