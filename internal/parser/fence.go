package parser

import "strings"

// FenceState tracks whether a line-by-line scan is inside a fenced code block.
type FenceState struct {
	InFence  bool
	FenceCh  byte
	FenceLen int
}

// normalizeFenceLine strips indentation, blockquote prefixes and one list
// marker so fences nested in quotes or list items are recognised.
func normalizeFenceLine(line string) string {
	s := strings.TrimLeft(line, " \t")
	for strings.HasPrefix(s, ">") {
		s = strings.TrimLeft(strings.TrimPrefix(s, ">"), " \t")
	}
	for _, marker := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(s, marker) {
			return strings.TrimLeft(s[len(marker):], " \t")
		}
	}
	return s
}

// parseFenceMarker reports the fence character and run length at the start
// of a normalized line.
func parseFenceMarker(line string) (ch byte, n int, ok bool) {
	if len(line) < 3 || (line[0] != '`' && line[0] != '~') {
		return 0, 0, false
	}
	ch = line[0]
	for n < len(line) && line[n] == ch {
		n++
	}
	if n < 3 {
		return 0, 0, false
	}
	return ch, n, true
}

// Update advances the state past line and reports whether the line opened or
// closed a fence. A fence closes only on the same character with at least the
// opening run length.
func (fs *FenceState) Update(line string) bool {
	ch, n, ok := parseFenceMarker(normalizeFenceLine(line))
	if !ok {
		return false
	}
	if !fs.InFence {
		fs.InFence, fs.FenceCh, fs.FenceLen = true, ch, n
		return true
	}
	if ch == fs.FenceCh && n >= fs.FenceLen {
		*fs = FenceState{}
		return true
	}
	return false
}

// Skip reports whether line is fenced code (a marker or inside a block) and
// advances the state.
func (fs *FenceState) Skip(line string) bool {
	wasIn := fs.InFence
	return fs.Update(line) || wasIn
}
