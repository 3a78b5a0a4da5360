// Package skills lists the agent skills available to jobs.
//
// A skill is a directory under the skills root containing a SKILL.md whose
// frontmatter names it. The scheduler consults this registry only for
// existence checks during job validation.
package skills

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

type Skill struct {
	Name        string
	Description string
	Path        string
}

// Registry answers "does this skill exist" for job validation.
type Registry interface {
	HasSkill(name string) bool
}

// DirRegistry scans a skills directory on every call so hand-added skills
// are picked up without restart.
type DirRegistry struct {
	Root string
}

func NewDirRegistry(root string) *DirRegistry {
	return &DirRegistry{Root: root}
}

func (r *DirRegistry) HasSkill(name string) bool {
	for _, s := range r.List() {
		if s.Name == name {
			return true
		}
	}
	return false
}

// List returns the available skills in directory-name order. A missing or
// unreadable root yields an empty list, never an error: the registry is
// advisory.
func (r *DirRegistry) List() []Skill {
	entries, err := os.ReadDir(r.Root)
	if err != nil {
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var out []Skill
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(r.Root, entry.Name(), "SKILL.md")
		b, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		name, desc, ok := parseFrontmatter(string(b))
		if !ok {
			continue
		}
		out = append(out, Skill{Name: name, Description: desc, Path: path})
	}
	return out
}

type skillMeta struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

func parseFrontmatter(content string) (name, description string, ok bool) {
	rest, found := strings.CutPrefix(content, "---\n")
	if !found {
		return "", "", false
	}
	block, _, found := strings.Cut(rest, "\n---")
	if !found {
		return "", "", false
	}
	var meta skillMeta
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return "", "", false
	}
	meta.Name = strings.TrimSpace(meta.Name)
	meta.Description = strings.TrimSpace(meta.Description)
	if meta.Name == "" || meta.Description == "" {
		return "", "", false
	}
	return meta.Name, meta.Description, true
}

// StaticRegistry is a fixed skill set, used in tests and as a fallback.
type StaticRegistry map[string]struct{}

func NewStaticRegistry(names ...string) StaticRegistry {
	r := StaticRegistry{}
	for _, n := range names {
		r[n] = struct{}{}
	}
	return r
}

func (r StaticRegistry) HasSkill(name string) bool {
	_, ok := r[name]
	return ok
}
