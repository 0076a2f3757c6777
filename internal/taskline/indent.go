// Package taskline parses, cleans, fingerprints and renders Markdown task lines.
//
// A task line looks like:
//
//	[indent][> ]- [s] [HH:MM[ - HH:MM]] text ... ^blockid
//
// Nesting is indentation based. Tabs expand to the configured tab width and an
// optional leading blockquote marker is ignored when measuring depth.
package taskline

import (
	"strings"
)

// Divider is the hard section terminator used by project task sections.
const Divider = "----------"

// DefaultTabWidth is the visual width of a tab character.
const DefaultTabWidth = 4

// Layout carries the vault's indentation convention.
type Layout struct {
	TabWidth int
}

// DefaultLayout returns a Layout with four-column tabs.
func DefaultLayout() Layout {
	return Layout{TabWidth: DefaultTabWidth}
}

func (l Layout) tabWidth() int {
	if l.TabWidth <= 0 {
		return DefaultTabWidth
	}
	return l.TabWidth
}

// IsDivider reports whether line is exactly the section divider.
func IsDivider(line string) bool {
	return strings.TrimRight(line, " \t\r") == Divider
}

// IsBlank reports whether line holds only whitespace.
func IsBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// StripQuote removes one leading blockquote marker ("> " or ">").
func StripQuote(line string) string {
	if !strings.HasPrefix(line, ">") {
		return line
	}
	line = line[1:]
	if strings.HasPrefix(line, " ") {
		line = line[1:]
	}
	return line
}

// Depth returns the visual indentation of line in columns.
func (l Layout) Depth(line string) int {
	line = StripQuote(line)
	width := l.tabWidth()
	col := 0
	for _, r := range line {
		switch r {
		case ' ':
			col++
		case '\t':
			col += width - col%width
		default:
			return col
		}
	}
	return col
}

// IndentString renders a visual depth as tabs for whole tab stops plus spaces
// for the remainder.
func (l Layout) IndentString(depth int) string {
	if depth <= 0 {
		return ""
	}
	width := l.tabWidth()
	return strings.Repeat("\t", depth/width) + strings.Repeat(" ", depth%width)
}

// Capture returns the block anchored at lines[start] and the number of lines
// it spans.
//
// Blank lines are included. A divider ends the block. Any other line deeper
// than the anchor is included whatever its content; the first line at or above
// the anchor depth ends the block.
func (l Layout) Capture(lines []string, start int) ([]string, int) {
	if start < 0 || start >= len(lines) {
		return nil, 0
	}
	anchor := l.Depth(lines[start])
	end := start + 1
	for end < len(lines) {
		line := lines[end]
		if IsDivider(line) {
			break
		}
		if IsBlank(line) || l.Depth(line) > anchor {
			end++
			continue
		}
		break
	}
	block := make([]string, end-start)
	copy(block, lines[start:end])
	return block, end - start
}

// SplitTrailingBlank separates trailing blank lines from a captured block.
func SplitTrailingBlank(block []string) (body, trailing []string) {
	n := len(block)
	for n > 1 && IsBlank(block[n-1]) {
		n--
	}
	return block[:n], block[n:]
}
