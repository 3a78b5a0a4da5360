package skills

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSkill(t *testing.T, root, dir, frontmatter string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
		t.Fatal(err)
	}
	content := "---\n" + frontmatter + "---\n\n# Instructions\ndo things\n"
	if err := os.WriteFile(filepath.Join(root, dir, "SKILL.md"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDirRegistry(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	writeSkill(t, root, "web-search", "name: web-search\ndescription: search the web\n")
	writeSkill(t, root, "summarize", "name: summarize\ndescription: summarize text\n")
	// missing description means the skill is ignored
	writeSkill(t, root, "broken", "name: broken\n")
	// a stray file (not a directory) is ignored
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewDirRegistry(root)
	if !r.HasSkill("web-search") || !r.HasSkill("summarize") {
		t.Error("declared skills not found")
	}
	if r.HasSkill("broken") {
		t.Error("skill without description should be ignored")
	}
	if r.HasSkill("ghost-skill") {
		t.Error("unknown skill reported present")
	}

	list := r.List()
	if len(list) != 2 {
		t.Fatalf("List = %d skills", len(list))
	}
	// directory-name order
	if list[0].Name != "summarize" || list[1].Name != "web-search" {
		t.Errorf("order = %s, %s", list[0].Name, list[1].Name)
	}
}

func TestDirRegistryMissingRoot(t *testing.T) {
	t.Parallel()
	r := NewDirRegistry(filepath.Join(t.TempDir(), "nope"))
	if r.HasSkill("anything") {
		t.Error("missing root should report no skills")
	}
	if got := r.List(); len(got) != 0 {
		t.Errorf("List = %v", got)
	}
}
