package ui

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
)

// MarkdownRenderMargin is the left margin used for terminal markdown rendering.
const MarkdownRenderMargin = 2

// RenderMarkdown renders markdown content for terminal display.
func RenderMarkdown(content string, width int) (string, error) {
	if width <= 0 {
		width = DefaultTermWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(blockStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	rendered, err := r.Render(content)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(rendered, "\n") + "\n", nil
}

// RenderBlock renders a task block for d. Non-terminal output gets the raw
// markdown so it can be piped back into a note.
func RenderBlock(d *DisplayContext, lines []string) (string, error) {
	raw := strings.TrimRight(strings.Join(lines, "\n"), "\n") + "\n"
	if d == nil || !d.IsTTY {
		return raw, nil
	}
	return RenderMarkdown(raw, d.AvailableWidth(MarkdownRenderMargin))
}

// blockStyle is glamour's dark theme tuned for a single task block: no
// leading blank line, checkbox glyphs and the accent palette for links.
func blockStyle() ansi.StyleConfig {
	s := styles.DarkStyleConfig
	margin := uint(MarkdownRenderMargin)
	accent, muted := accentColor, mutedColor
	bold := true

	s.Document.BlockPrefix = ""
	s.Document.Margin = &margin
	s.Task = ansi.StyleTask{Ticked: "☑ ", Unticked: "☐ "}
	s.H1 = ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{Prefix: "# ", Color: &accent, Bold: &bold}}
	s.H2 = ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{Prefix: "## ", Color: &accent}}
	s.Link.Color = &muted
	s.LinkText.Color = &accent
	return s
}
