// Package wikilink provides canonical parsing/scanning of vault wikilinks.
//
// Wikilink grammar:
//
//	[[target]]
//	[[target|display text]]
//	[[file#^blockid|⮐]]   (return link)
//
// The target is trimmed of surrounding whitespace, and so is the display text.
// This package does not understand markdown code fences; callers decide whether
// a line should be scanned at all.
package wikilink

import (
	"regexp"
	"strings"
)

// ReturnMarkers are the display glyphs that turn a block-anchored link into a
// navigation (return) link rather than authored text.
var ReturnMarkers = []string{"⮐", "⚓", "*", "🔗", "📅"}

// Match represents a wikilink found in a string (typically a single line).
type Match struct {
	Target      string
	DisplayText *string
	Start       int
	End         int
	Literal     string
}

// re matches [[target]] or [[target|display]].
// The target cannot contain [ or ] to avoid matching array syntax like [[[ref]]].
var re = regexp.MustCompile(`\[\[([^\]\[|]+)(?:\|([^\]]+))?\]\]`)

// File returns the part of the target before any '#' anchor.
func (m Match) File() string {
	file, _, _ := strings.Cut(m.Target, "#")
	return strings.TrimSpace(file)
}

// Anchor returns the part of the target after '#', or "".
func (m Match) Anchor() string {
	_, anchor, _ := strings.Cut(m.Target, "#")
	return strings.TrimSpace(anchor)
}

// BlockID returns the block identifier the link points at ("" when the
// anchor is not a block reference).
func (m Match) BlockID() string {
	anchor := m.Anchor()
	if !strings.HasPrefix(anchor, "^") {
		return ""
	}
	return strings.TrimPrefix(anchor, "^")
}

// IsReturn reports whether the link is a block-anchored navigation link such
// as [[Project#^abc123|⮐]].
func (m Match) IsReturn() bool {
	if m.BlockID() == "" || m.DisplayText == nil {
		return false
	}
	for _, marker := range ReturnMarkers {
		if *m.DisplayText == marker {
			return true
		}
	}
	return false
}

// ParseExact parses a string that is exactly a wikilink literal, returning its target and optional display text.
func ParseExact(s string) (target string, display *string, ok bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[[") || !strings.HasSuffix(s, "]]") {
		return "", nil, false
	}
	inner := strings.TrimSuffix(strings.TrimPrefix(s, "[["), "]]")
	parts := strings.SplitN(inner, "|", 2)
	target = strings.TrimSpace(parts[0])
	if target == "" {
		return "", nil, false
	}
	if len(parts) == 2 {
		d := strings.TrimSpace(parts[1])
		display = &d
	}
	return target, display, true
}

// FindAllInLine finds wikilinks in a single line.
//
// If allowTriple is false, matches preceded by '[' are skipped to avoid array syntax like [[[ref]]].
func FindAllInLine(line string, allowTriple bool) []Match {
	var out []Match

	matches := re.FindAllStringSubmatchIndex(line, -1)
	for _, m := range matches {
		if len(m) < 4 {
			continue
		}
		start, end := m[0], m[1]

		if !allowTriple && start > 0 && line[start-1] == '[' {
			continue
		}

		target := strings.TrimSpace(line[m[2]:m[3]])
		if target == "" {
			continue
		}

		var display *string
		if len(m) >= 6 && m[4] >= 0 && m[5] >= 0 {
			d := strings.TrimSpace(line[m[4]:m[5]])
			display = &d
		}

		out = append(out, Match{
			Target:      target,
			DisplayText: display,
			Start:       start,
			End:         end,
			Literal:     line[start:end],
		})
	}

	return out
}

// FirstReturn returns the first return link in line.
func FirstReturn(line string) (Match, bool) {
	for _, m := range FindAllInLine(line, true) {
		if m.IsReturn() {
			return m, true
		}
	}
	return Match{}, false
}

// StripReturns removes every return link from line. Surrounding whitespace is
// left for the caller to collapse.
func StripReturns(line string) string {
	matches := FindAllInLine(line, true)
	if len(matches) == 0 {
		return line
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		if !m.IsReturn() {
			continue
		}
		b.WriteString(line[last:m.Start])
		last = m.End
	}
	b.WriteString(line[last:])
	return b.String()
}
