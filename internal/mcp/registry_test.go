package mcp

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestFileRegistry(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "mcp.json")
	raw := `{
  "mcpServers": {
    "notion": {"command": "notion-mcp"},
    "github": {"command": "gh-mcp", "args": ["--stdio"]}
  }
}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewFileRegistry(path)
	if !r.HasServer("notion") || !r.HasServer("github") {
		t.Error("configured servers not found")
	}
	if r.HasServer("slack") {
		t.Error("unknown server reported present")
	}
	if got, want := r.Servers(), []string{"github", "notion"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Servers = %v, want %v", got, want)
	}
}

func TestFileRegistryMissingOrMalformed(t *testing.T) {
	t.Parallel()
	r := NewFileRegistry(filepath.Join(t.TempDir(), "nope.json"))
	if r.HasServer("anything") {
		t.Error("missing file should report no servers")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	r = NewFileRegistry(path)
	if got := r.Servers(); len(got) != 0 {
		t.Errorf("Servers = %v", got)
	}
}
