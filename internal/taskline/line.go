package taskline

import (
	"regexp"
	"strings"

	"github.com/aidanlsb/dailysync/internal/dates"
	"github.com/aidanlsb/dailysync/internal/wikilink"
)

var (
	taskRe      = regexp.MustCompile(`^([\s>]*)-\s*\[(.)\]`)
	blockIDRe   = regexp.MustCompile(`\^([a-zA-Z0-9]{6,7})\s*$`)
	connectIDRe = regexp.MustCompile(`\(connect::.*?\^([a-zA-Z0-9]{6,7})\)`)
	timeRe      = regexp.MustCompile(`^\s*(\d{1,2}:\d{2}(?:\s*-\s*\d{1,2}:\d{2})?)(?:\s+|$)`)
	doneDateRe  = regexp.MustCompile(`✅\s*(\d{4}-\d{2}-\d{2})`)
	emojiDateRe = regexp.MustCompile(`[📅✅]\s*(\d{4}-\d{2}-\d{2})`)
	dateLinkRe  = regexp.MustCompile(`\[\[(\d{4}-\d{2}-\d{2})(?:#|\||\]\])`)
)

// Line is a parsed task line.
type Line struct {
	Raw string
	// Prefix is everything before the list dash: indentation and quote markers.
	Prefix  string
	Quoted  bool
	Depth   int
	Status  string
	Time    string
	Rest    string
	BlockID string
}

// IsTask reports whether line starts with a checkbox list item.
func IsTask(line string) bool {
	return taskRe.MatchString(line)
}

// Parse parses a task line. ok is false for non-task lines.
func (l Layout) Parse(raw string) (Line, bool) {
	m := taskRe.FindStringSubmatchIndex(raw)
	if m == nil {
		return Line{}, false
	}
	prefix := raw[m[2]:m[3]]
	out := Line{
		Raw:     raw,
		Prefix:  prefix,
		Quoted:  strings.Contains(prefix, ">"),
		Depth:   l.Depth(raw),
		Status:  raw[m[4]:m[5]],
		BlockID: BlockID(raw),
	}

	rest := raw[m[1]:]
	if tm := timeRe.FindStringSubmatch(rest); tm != nil {
		out.Time = tm[1]
		rest = rest[len(tm[0]):]
	}
	rest = strings.TrimSpace(rest)
	if out.BlockID != "" {
		rest = strings.TrimSpace(blockIDRe.ReplaceAllString(rest, ""))
	}
	out.Rest = rest
	return out, true
}

// Links returns the wiki-links carried by the line body.
func (ln Line) Links() []wikilink.Match {
	return wikilink.FindAllInLine(ln.Rest, true)
}

// ReturnLink returns the line's return link, if any.
func (ln Line) ReturnLink() (wikilink.Match, bool) {
	return wikilink.FirstReturn(ln.Raw)
}

// BlockID returns the trailing ^id of line, or "".
func BlockID(line string) string {
	if m := blockIDRe.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return ""
}

// AnyID returns the trailing block ID or, failing that, the ID carried by a
// (connect::...^id) annotation.
func AnyID(line string) string {
	if id := BlockID(line); id != "" {
		return id
	}
	if m := connectIDRe.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return ""
}

// DoneDate returns the ✅ completion date carried by line.
func DoneDate(line string) string {
	if m := doneDateRe.FindStringSubmatch(line); m != nil && dates.IsValidDate(m[1]) {
		return m[1]
	}
	return ""
}

// InlineDate returns the date a task line carries on its own: an emoji date
// marker first, then a date wiki-link.
func InlineDate(line string) string {
	if m := emojiDateRe.FindStringSubmatch(line); m != nil && dates.IsValidDate(m[1]) {
		return m[1]
	}
	if m := dateLinkRe.FindStringSubmatch(line); m != nil && dates.IsValidDate(m[1]) {
		return m[1]
	}
	return ""
}

// LinkedDates returns every date the line names through date links or emoji
// date markers, in order of appearance.
func LinkedDates(line string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(d string) {
		if dates.IsValidDate(d) && !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	for _, m := range dateLinkRe.FindAllStringSubmatch(line, -1) {
		add(m[1])
	}
	for _, m := range emojiDateRe.FindAllStringSubmatch(line, -1) {
		add(m[1])
	}
	return out
}
