// Package mcp exposes the configured MCP servers for job validation.
//
// The source of truth is an mcp.json file mapping server names to launch
// configuration. The scheduler only needs existence checks; clients that
// actually talk to the servers live outside this repo.
package mcp

import (
	"encoding/json"
	"os"
	"sort"
)

// Registry answers "is this MCP server configured" for job validation.
type Registry interface {
	HasServer(name string) bool
}

// FileRegistry reads the mcp.json server map on every call so config edits
// are picked up without restart.
type FileRegistry struct {
	Path string
}

func NewFileRegistry(path string) *FileRegistry {
	return &FileRegistry{Path: path}
}

type mcpConfig struct {
	MCPServers map[string]json.RawMessage `json:"mcpServers"`
}

func (r *FileRegistry) HasServer(name string) bool {
	for _, s := range r.Servers() {
		if s == name {
			return true
		}
	}
	return false
}

// Servers returns the configured server names, sorted. A missing or
// malformed file yields an empty list: an unreadable registry quarantines
// jobs that reference servers, it never crashes validation.
func (r *FileRegistry) Servers() []string {
	b, err := os.ReadFile(r.Path)
	if err != nil {
		return nil
	}
	var cfg mcpConfig
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil
	}
	out := make([]string, 0, len(cfg.MCPServers))
	for name := range cfg.MCPServers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// StaticRegistry is a fixed server set, used in tests.
type StaticRegistry map[string]struct{}

func NewStaticRegistry(names ...string) StaticRegistry {
	r := StaticRegistry{}
	for _, n := range names {
		r[n] = struct{}{}
	}
	return r
}

func (r StaticRegistry) HasServer(name string) bool {
	_, ok := r[name]
	return ok
}
