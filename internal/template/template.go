// Package template provides variable substitution for daily-note templates.
package template

import (
	"strings"
	"time"

	"github.com/aidanlsb/dailysync/internal/dates"
)

// Variables holds the available template variables for substitution.
type Variables struct {
	// Date is the note's date (YYYY-MM-DD); {{title}} is an alias.
	Date      string
	Yesterday string
	Tomorrow  string
	Year      string
	// Month is the 2 digit month.
	Month string
	// Day is the 2 digit day of month.
	Day string
	// Weekday is the day name (Monday, Tuesday, etc.)
	Weekday string
	// MonthName is the full month name (January, February, etc.)
	MonthName string
}

// NewDailyVariables creates Variables for a daily note with a specific date.
func NewDailyVariables(date time.Time) *Variables {
	return &Variables{
		Date:      dates.Format(date),
		Yesterday: dates.Format(date.AddDate(0, 0, -1)),
		Tomorrow:  dates.Format(date.AddDate(0, 0, 1)),
		Year:      date.Format("2006"),
		Month:     date.Format("01"),
		Day:       date.Format("02"),
		Weekday:   date.Weekday().String(),
		MonthName: date.Month().String(),
	}
}

const (
	escOpen  = "\x00esc-open\x00"
	escClose = "\x00esc-close\x00"
)

// Apply substitutes template variables in the content.
// Variables use {{name}} syntax. Unknown variables are left as-is.
// Escaped variables \{{name}} are converted to literal {{name}}.
func Apply(content string, vars *Variables) string {
	if content == "" || vars == nil {
		return content
	}

	content = strings.ReplaceAll(content, "\\{{", escOpen)
	content = strings.ReplaceAll(content, "\\}}", escClose)

	replacements := map[string]string{
		"{{title}}":      vars.Date,
		"{{date}}":       vars.Date,
		"{{yesterday}}":  vars.Yesterday,
		"{{tomorrow}}":   vars.Tomorrow,
		"{{year}}":       vars.Year,
		"{{month}}":      vars.Month,
		"{{day}}":        vars.Day,
		"{{weekday}}":    vars.Weekday,
		"{{month_name}}": vars.MonthName,
	}
	for placeholder, value := range replacements {
		content = strings.ReplaceAll(content, placeholder, value)
	}

	content = strings.ReplaceAll(content, escOpen, "{{")
	content = strings.ReplaceAll(content, escClose, "}}")
	return content
}

// ApplyLines is Apply over a slice of lines. The input is not modified.
func ApplyLines(lines []string, vars *Variables) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = Apply(line, vars)
	}
	return out
}
