package parser

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Section is a top-level "# " heading and the lines it governs.
type Section struct {
	// Title is the trimmed heading line, e.g. "# Journey".
	Title string
	// Start is the 0-indexed heading line.
	Start int
	// End is the 0-indexed line where the next top-level heading starts, or
	// len(lines).
	End int
}

// Contains reports whether line index i falls within the section body.
func (s Section) Contains(i int) bool {
	return i > s.Start && i < s.End
}

// Outline returns the document's top-level ATX headings in order. Headings
// inside code fences, list items or front matter are ignored.
func Outline(lines []string) []Section {
	bodyStart := BodyStart(lines)
	body := strings.Join(lines[bodyStart:], "\n")
	source := []byte(body)

	doc := goldmark.New().Parser().Parse(text.NewReader(source))
	lineStarts := computeLineStarts(body)

	var starts []int
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		heading, ok := n.(*ast.Heading)
		if !ok || heading.Level != 1 || heading.Lines().Len() == 0 {
			continue
		}
		idx := bodyStart + offsetToLine(lineStarts, heading.Lines().At(0).Start)
		if idx >= len(lines) || !strings.HasPrefix(strings.TrimLeft(lines[idx], " "), "# ") {
			// setext headings are not section markers
			continue
		}
		starts = append(starts, idx)
	}

	sections := make([]Section, 0, len(starts))
	for i, start := range starts {
		end := len(lines)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		sections = append(sections, Section{
			Title: strings.TrimSpace(lines[start]),
			Start: start,
			End:   end,
		})
	}
	return sections
}

// SectionAt returns the title of the section governing line i, or "".
func SectionAt(sections []Section, i int) string {
	for _, s := range sections {
		if s.Contains(i) {
			return s.Title
		}
	}
	return ""
}

// computeLineStarts computes the byte offset of each line start.
func computeLineStarts(content string) []int {
	starts := []int{0}
	for i, c := range content {
		if c == '\n' && i+1 < len(content) {
			starts = append(starts, i+1)
		}
	}
	return starts
}

// offsetToLine converts a byte offset to a 0-indexed line number.
func offsetToLine(lineStarts []int, offset int) int {
	for i := len(lineStarts) - 1; i >= 0; i-- {
		if lineStarts[i] <= offset {
			return i
		}
	}
	return 0
}
