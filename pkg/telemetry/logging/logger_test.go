package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	if err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNew_InvalidFormat(t *testing.T) {
	_, err := New(Config{Format: "xml"})
	if err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	logger.Info("request routed", "credential_id", "alice@example.com", "attempts", 2)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if record["msg"] != "request routed" {
		t.Errorf("msg = %v", record["msg"])
	}
	if record["credential_id"] != "alice@example.com" {
		t.Errorf("credential_id = %v", record["credential_id"])
	}
	if record["attempts"] != float64(2) {
		t.Errorf("attempts = %v", record["attempts"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	logger.Info("below threshold")
	if buf.Len() != 0 {
		t.Errorf("info record emitted despite warn level: %q", buf.String())
	}

	logger.Warn("at threshold")
	if buf.Len() == 0 {
		t.Error("warn record was filtered out")
	}
}

func TestLogger_RedactsSensitiveKeys(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	secret := "AIzaSyExampleSecretKeyValue0000000000000"
	logger.Info("credential admitted", "secret", secret)

	out := buf.String()
	if strings.Contains(out, secret) {
		t.Fatalf("secret leaked into log output: %s", out)
	}
	if !strings.Contains(out, "AIza***") {
		t.Errorf("expected redacted prefix in output: %s", out)
	}
}

func TestLogger_RedactsSecretShapedValues(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// The key name is innocuous; the value shape must still be caught.
	logger.Info("upstream call", "url", "https://example.com/v1beta/models/gemini:generateContent?key=AIzaSyLeakedThroughURL000000000000000000")

	out := buf.String()
	if strings.Contains(out, "AIzaSyLeaked") {
		t.Fatalf("secret leaked through URL attribute: %s", out)
	}
}

func TestLogger_RedactsWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "info", Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	child := logger.With("api_key", "AIzaSyChildLoggerSecret00000000000000000")
	child.Info("scoped")

	if strings.Contains(buf.String(), "AIzaSyChild") {
		t.Fatalf("secret leaked via With(): %s", buf.String())
	}
}
