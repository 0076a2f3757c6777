package ui

import (
	"strings"
	"testing"
)

func TestRenderMarkdownNormalizesTrailingNewline(t *testing.T) {
	t.Parallel()

	out, err := RenderMarkdown("- [ ] Buy milk ^abc123", 80)
	if err != nil {
		t.Fatalf("RenderMarkdown() error = %v", err)
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatalf("expected rendered markdown to end with newline, got %q", out)
	}
	if strings.HasSuffix(out, "\n\n") {
		t.Fatalf("expected single trailing newline, got %q", out)
	}
}

func TestRenderMarkdownDefaultsWidthWhenNonPositive(t *testing.T) {
	t.Parallel()

	out, err := RenderMarkdown("hello", 0)
	if err != nil {
		t.Fatalf("RenderMarkdown() error = %v", err)
	}
	if strings.TrimSpace(out) == "" {
		t.Fatalf("expected non-empty rendered output")
	}
}

func TestRenderBlockPassesRawMarkdownWhenNotATerminal(t *testing.T) {
	t.Parallel()

	lines := []string{"- [ ] Buy milk ^abc123", "\t- oat", ""}
	out, err := RenderBlock(NewDisplayContextWithWidth(80, false), lines)
	if err != nil {
		t.Fatalf("RenderBlock() error = %v", err)
	}
	want := "- [ ] Buy milk ^abc123\n\t- oat\n"
	if out != want {
		t.Fatalf("RenderBlock() = %q, want %q", out, want)
	}
}
