package ui

import "fmt"

// Status line prefixes.
const (
	SymbolSuccess = "✓"
	SymbolWarning = "⚠"
	SymbolInfo    = "ℹ"
)

func prefixed(symbol, msg string) string {
	return symbol + " " + msg
}

// Success prefixes msg with a checkmark.
func Success(msg string) string { return prefixed(SymbolSuccess, msg) }

// Warningf formats a warning line.
func Warningf(format string, args ...any) string {
	return prefixed(SymbolWarning, fmt.Sprintf(format, args...))
}

// Infof formats an informational line.
func Infof(format string, args ...any) string {
	return prefixed(SymbolInfo, fmt.Sprintf(format, args...))
}

// Header renders a section title.
func Header(msg string) string { return Bold.Render(msg) }

// FilePath renders a path in the accent color.
func FilePath(path string) string { return Accent.Render(path) }

// Hint renders secondary text.
func Hint(msg string) string { return Muted.Render(msg) }

// Count returns a count with the right noun, e.g. "3 tasks".
func Count(n int, singular, plural string) string {
	noun := plural
	if n == 1 {
		noun = singular
	}
	return fmt.Sprintf("%d %s", n, noun)
}
