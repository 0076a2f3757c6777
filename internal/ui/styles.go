package ui

import "github.com/charmbracelet/lipgloss"

// Color palette
// - Default (white/black): primary text
// - Accent (soft purple #A78BFA): dates, block IDs, paths
// - Muted (gray): secondary info, headers of tables
// - Done (green) / Cancelled (red) only tint task status glyphs

const (
	accentColor = "#A78BFA"
	mutedColor  = "#6C7086"
)

var (
	// Accent style for file paths, block IDs, highlights
	Accent = lipgloss.NewStyle().Foreground(lipgloss.Color(accentColor))

	// Muted style for secondary info and hints
	Muted = lipgloss.NewStyle().Foreground(lipgloss.Color(mutedColor))

	// Bold style for emphasis
	Bold = lipgloss.NewStyle().Bold(true)

	// AccentBold combines accent color with bold
	AccentBold = Accent.Bold(true)

	done      = lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1"))
	cancelled = lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")).Strikethrough(true)
)

// Status renders a task checkbox character as a styled "[c]" glyph.
func Status(c string) string {
	box := "[" + c + "]"
	switch c {
	case "x", "X":
		return done.Render(box)
	case "-":
		return cancelled.Render(box)
	case " ", "":
		return "[ ]"
	default:
		return Accent.Render(box)
	}
}
