package fileid

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/pageindex/internal/models"
)

func TestFromPath(t *testing.T) {
	root := filepath.FromSlash("/data/pages")
	id, err := FromPath(root, filepath.Join(root, "getting-started", "intro.md"))
	if err != nil {
		t.Fatal(err)
	}
	if id != "getting-started/intro.md" {
		t.Errorf("id = %q", id)
	}
	// trailing separators and dot segments do not change the id
	id2, _ := FromPath(root+string(filepath.Separator), filepath.Join(root, ".", "getting-started", "intro.md"))
	if id2 != id {
		t.Errorf("normalized id = %q, want %q", id2, id)
	}
}

func TestFromPath_outsideRoot(t *testing.T) {
	root := filepath.FromSlash("/data/pages")
	for _, p := range []string{filepath.FromSlash("/data/other.md"), root} {
		if _, err := FromPath(root, p); !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("FromPath(%q) err = %v, want ErrInvalidInput", p, err)
		}
	}
}

func TestToPath(t *testing.T) {
	root := filepath.FromSlash("/data/pages")
	p, err := ToPath(root, "a/b.md")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(root, "a", "b.md"); p != want {
		t.Errorf("ToPath = %q, want %q", p, want)
	}
	for _, bad := range []string{"", "../x.md", "/etc/passwd", "a/../../x.md", "a//b.md"} {
		if _, err := ToPath(root, bad); !errors.Is(err, models.ErrInvalidInput) {
			t.Errorf("ToPath(%q) err = %v, want ErrInvalidInput", bad, err)
		}
	}
}

func TestChapterOf(t *testing.T) {
	tests := map[string]string{
		"intro.md":             "",
		"guides/setup.md":      "guides",
		"guides/deep/setup.md": "guides/deep",
	}
	for id, want := range tests {
		if got := ChapterOf(id); got != want {
			t.Errorf("ChapterOf(%q) = %q, want %q", id, got, want)
		}
	}
}
