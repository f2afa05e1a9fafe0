package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seeds.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write seed file: %v", err)
	}
	return path
}

func TestLoadSeeds(t *testing.T) {
	path := writeSeedFile(t, `
- id: alice@example.com
  key: AIzaSyAlice000000000000000000000000000000
- id: bob@example.com
  key: AIzaSyBob00000000000000000000000000000000
`)

	seeds, err := LoadSeeds(path)
	if err != nil {
		t.Fatalf("LoadSeeds() error: %v", err)
	}
	if len(seeds) != 2 {
		t.Fatalf("got %d seeds, want 2", len(seeds))
	}
	if seeds[0].ID != "alice@example.com" {
		t.Errorf("seeds[0].ID = %q", seeds[0].ID)
	}
	if seeds[1].Key == "" {
		t.Error("seeds[1].Key should be populated")
	}
}

func TestLoadSeeds_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name:    "missing id",
			content: "- key: AIzaNoID\n",
			wantMsg: "missing id",
		},
		{
			name:    "missing key",
			content: "- id: carol@example.com\n",
			wantMsg: "missing key",
		},
		{
			name: "duplicate id",
			content: `
- id: dave@example.com
  key: AIzaOne
- id: dave@example.com
  key: AIzaTwo
`,
			wantMsg: "duplicate id",
		},
		{
			name:    "not a list",
			content: "id: single\nkey: AIza\n",
			wantMsg: "parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSeedFile(t, tt.content)
			_, err := LoadSeeds(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoadSeeds_MissingFile(t *testing.T) {
	_, err := LoadSeeds(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
