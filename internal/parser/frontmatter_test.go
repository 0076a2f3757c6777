package parser

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseFrontmatter(t *testing.T) {
	tests := []struct {
		name        string
		content     string
		wantNil     bool
		wantEndLine int
	}{
		{
			name: "basic frontmatter",
			content: `---
tags: [main]
status: active
---

# Tasks`,
			wantEndLine: 4,
		},
		{
			name:    "no frontmatter",
			content: "# Just a heading\n\nSome content",
			wantNil: true,
		},
		{
			name:        "empty frontmatter still counts as frontmatter",
			content:     "---\n---\n\n# Title",
			wantEndLine: 2,
		},
		{
			name:    "unclosed frontmatter",
			content: "---\ntags: main\n\n# Title",
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, err := ParseFrontmatter(tt.content)
			if err != nil {
				t.Fatalf("ParseFrontmatter() error = %v", err)
			}
			if tt.wantNil {
				if fm != nil {
					t.Fatalf("expected nil frontmatter, got %+v", fm)
				}
				return
			}
			if fm == nil {
				t.Fatal("expected frontmatter, got nil")
			}
			if fm.EndLine != tt.wantEndLine {
				t.Errorf("EndLine = %d, want %d", fm.EndLine, tt.wantEndLine)
			}
		})
	}
}

func TestParseFrontmatterInvalidYAML(t *testing.T) {
	_, err := ParseFrontmatter("---\ntags: [main\n---\n")
	if err == nil || !strings.Contains(err.Error(), "YAML") {
		t.Fatalf("expected YAML error, got %v", err)
	}
}

func TestFrontmatterTags(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"flow list", "---\ntags: [main, work]\n---\n", []string{"main", "work"}},
		{"block list", "---\ntags:\n  - project\n  - \"#main\"\n---\n", []string{"project", "main"}},
		{"scalar", "---\ntags: main\n---\n", []string{"main"}},
		{"comma string", "---\ntags: \"main, area\"\n---\n", []string{"main", "area"}},
		{"singular key", "---\ntag: main\n---\n", []string{"main"}},
		{"no tags", "---\ntitle: x\n---\n", nil},
		{"no frontmatter", "# Title\n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FrontmatterTags(tt.content)
			if err != nil {
				t.Fatalf("FrontmatterTags() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("tags mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestHasTag(t *testing.T) {
	fm, err := ParseFrontmatter("---\ntags: [Main]\n---\n")
	if err != nil {
		t.Fatal(err)
	}
	if !fm.HasTag("main") {
		t.Fatal("expected case-insensitive match on main")
	}
	if fm.HasTag("mainline") {
		t.Fatal("partial tag should not match")
	}
	var none *Frontmatter
	if none.HasTag("main") {
		t.Fatal("nil frontmatter has no tags")
	}
}

func TestBodyStart(t *testing.T) {
	if got := BodyStart([]string{"---", "a: 1", "---", "# Tasks"}); got != 3 {
		t.Fatalf("BodyStart = %d, want 3", got)
	}
	if got := BodyStart([]string{"# Tasks"}); got != 0 {
		t.Fatalf("BodyStart without frontmatter = %d, want 0", got)
	}
}
