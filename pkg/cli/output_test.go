package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewFormatter(FormatJSON)

	data := map[string]any{"state": "active", "count": 3}
	if err := f.FormatTo(&buf, data); err != nil {
		t.Fatalf("FormatTo() error: %v", err)
	}

	var back map[string]any
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if back["state"] != "active" {
		t.Errorf("state = %v", back["state"])
	}
	if !strings.Contains(buf.String(), "  ") {
		t.Error("expected indented output")
	}
}

func TestTextFormatterIsDefault(t *testing.T) {
	if _, ok := NewFormatter("bogus").(*TextFormatter); !ok {
		t.Error("unknown formats should fall back to text")
	}

	var buf bytes.Buffer
	if err := NewFormatter(FormatText).FormatTo(&buf, "3 active"); err != nil {
		t.Fatalf("FormatTo() error: %v", err)
	}
	if buf.String() != "3 active\n" {
		t.Errorf("output = %q", buf.String())
	}
}
