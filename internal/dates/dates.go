// Package dates provides canonical date and clock helpers for daily notes.
//
// Daily notes are named by their calendar date (YYYY-MM-DD). Task lines may
// carry a clock time or a time range (HH:MM, HH:MM - HH:MM) right after the
// checkbox.
package dates

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Layout is the canonical daily-note date layout.
const Layout = "2006-01-02"

var (
	dateRegex    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	anyDateRegex = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	clockRegex   = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

// IsValidDate checks if a string is a valid YYYY-MM-DD date.
func IsValidDate(s string) bool {
	if !dateRegex.MatchString(s) {
		return false
	}
	_, err := time.Parse(Layout, s)
	return err == nil
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !IsValidDate(s) {
		return time.Time{}, fmt.Errorf("invalid date: %q", s)
	}
	return time.Parse(Layout, s)
}

// Format renders t as YYYY-MM-DD in t's location.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// FindFirst returns the first valid YYYY-MM-DD substring of s.
func FindFirst(s string) (string, bool) {
	for _, m := range anyDateRegex.FindAllString(s, -1) {
		if IsValidDate(m) {
			return m, true
		}
	}
	return "", false
}

// Lookback returns today and the previous n days, most recent first.
func Lookback(now time.Time, n int) []string {
	if n < 0 {
		n = 0
	}
	out := make([]string, 0, n+1)
	for i := 0; i <= n; i++ {
		out = append(out, Format(now.AddDate(0, 0, -i)))
	}
	return out
}

// Before reports whether date a sorts strictly before date b. Both must be
// YYYY-MM-DD strings, which order lexically.
func Before(a, b string) bool {
	return a < b
}

// PadClock left-pads an H:MM clock to HH:MM. Values that are not clocks are
// returned unchanged.
func PadClock(s string) string {
	m := clockRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return s
	}
	if len(m[1]) == 1 {
		return "0" + m[1] + ":" + m[2]
	}
	return m[1] + ":" + m[2]
}

// ParseDateArg parses a CLI date argument which can be:
// - "today", "yesterday", "tomorrow" (relative dates)
// - "YYYY-MM-DD" format (absolute date)
// - Empty string defaults to today
func ParseDateArg(arg string, now time.Time) (time.Time, error) {
	if arg == "" {
		return now, nil
	}

	dateArg := strings.ToLower(strings.TrimSpace(arg))
	switch dateArg {
	case "today":
		return now, nil
	case "yesterday":
		return now.AddDate(0, 0, -1), nil
	case "tomorrow":
		return now.AddDate(0, 0, 1), nil
	default:
		parsed, err := ParseDate(dateArg)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid date format '%s', use YYYY-MM-DD or today/yesterday/tomorrow", dateArg)
		}
		return parsed, nil
	}
}
