package reconcile

import (
	"regexp"
	"sort"
	"strings"

	"github.com/aidanlsb/dailysync/internal/dates"
	"github.com/aidanlsb/dailysync/internal/parser"
	"github.com/aidanlsb/dailysync/internal/taskline"
)

// TasksHeader opens a project file's task section.
const TasksHeader = "# Tasks"

var (
	dateHeaderRe  = regexp.MustCompile(`^#+\s*\[\[\s*(\d{4}-\d{2}-\d{2})\s*\]\]`)
	groupHeaderRe = regexp.MustCompile(`^##\s*\[\[(.*?)\]\]`)
	headDateRe    = regexp.MustCompile(`\[\[(\d{4}-\d{2}-\d{2})(?:#|\||\]\])`)
	shortRule     = "-----"
)

// taskSection returns the indices of the "# Tasks" line and the divider that
// closes it. end is -1 when the section is unterminated; start is -1 when
// there is no section.
func taskSection(lines []string) (start, end int) {
	start, end = -1, -1
	for i, line := range lines {
		if strings.TrimSpace(line) == TasksHeader {
			start = i
			break
		}
	}
	if start == -1 {
		return start, end
	}
	for i := start + 1; i < len(lines); i++ {
		if taskline.IsDivider(lines[i]) {
			return start, i
		}
	}
	return start, -1
}

// sectionBlock is one top-level entry of a task section.
type sectionBlock struct {
	id    string
	date  string
	lines []string
}

// InjectTaskSection merges incoming task lines into the file's task section
// and rebuilds it.
//
// A missing section is scaffolded after the front matter and an unterminated
// one gets a divider. Existing and incoming lines are split into blocks at
// top-level task lines. Every line deeper than a block's task line belongs to
// it whatever its content, including blank lines between children; shallow
// loose text also stays with the block it follows. Blocks are deduplicated by ID (last wins) and grouped by date: the
// date header a block already sits under wins over the date in its text.
// Dated groups are emitted newest first under "## [[date]]" headers; undated
// blocks come first without a header. Within a group, blocks carrying a time
// precede the rest, ordered by time and then ID.
func InjectTaskSection(l taskline.Layout, lines []string, incoming []string) []string {
	out := append([]string(nil), lines...)
	start, end := taskSection(out)

	switch {
	case start == -1:
		out = scaffoldTaskSection(out)
		start, end = taskSection(out)
	case end == -1:
		out = append(out, "", taskline.Divider)
		end = len(out) - 1
	}

	existing := out[start+1 : end]
	structure := make(map[string]string)
	current := ""
	anchor := -1
	for _, line := range existing {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || (anchor >= 0 && l.Depth(line) > anchor) {
			continue
		}
		anchor = -1
		if m := dateHeaderRe.FindStringSubmatch(trimmed); m != nil {
			current = m[1]
			continue
		}
		if strings.HasPrefix(trimmed, "- [") && l.Depth(line) < 2 {
			anchor = l.Depth(line)
			if id := taskline.BlockID(trimmed); id != "" && current != "" {
				structure[id] = current
			}
		}
	}

	candidates := make([]string, 0, len(existing)+len(incoming))
	candidates = append(candidates, existing...)
	candidates = append(candidates, incoming...)

	var (
		blocks    []sectionBlock
		loose     [][]string
		block     []string
		haveBlock bool
		blanks    []string
	)
	anchor = -1
	flush := func() {
		anchor, blanks = -1, nil
		if !haveBlock || len(block) == 0 {
			block, haveBlock = nil, false
			return
		}
		id := ""
		if strings.HasPrefix(strings.TrimSpace(block[0]), "- [") {
			id = taskline.BlockID(block[0])
		}
		if id == "" {
			loose = append(loose, block)
		} else {
			date := structure[id]
			if date == "" {
				if m := headDateRe.FindStringSubmatch(block[0]); m != nil && dates.IsValidDate(m[1]) {
					date = m[1]
				}
			}
			blocks = append(blocks, sectionBlock{id: id, date: date, lines: block})
		}
		block, haveBlock = nil, false
	}

	for _, line := range candidates {
		trimmed := strings.TrimSpace(line)
		// Inside a task block indentation decides membership, not content.
		if anchor >= 0 {
			if trimmed == "" {
				blanks = append(blanks, line)
				continue
			}
			if l.Depth(line) > anchor {
				block = append(block, blanks...)
				block = append(block, line)
				blanks = nil
				continue
			}
			blanks = nil
		}
		switch {
		case trimmed == "" || trimmed == shortRule || taskline.IsDivider(trimmed):
			continue
		case strings.HasPrefix(trimmed, "#"):
			flush()
		case strings.HasPrefix(trimmed, "- [") && l.Depth(line) < 2:
			flush()
			block, haveBlock = []string{line}, true
			anchor = l.Depth(line)
		default:
			if !haveBlock {
				block, haveBlock = nil, true
			}
			block = append(block, line)
		}
	}
	flush()

	// Last occurrence of an ID wins but keeps the first occurrence's slot.
	index := make(map[string]int)
	var unique []sectionBlock
	for _, b := range blocks {
		if i, ok := index[b.id]; ok {
			unique[i] = b
			continue
		}
		index[b.id] = len(unique)
		unique = append(unique, b)
	}

	groups := make(map[string][]sectionBlock)
	var keys []string
	for _, b := range unique {
		if _, ok := groups[b.date]; !ok {
			keys = append(keys, b.date)
		}
		groups[b.date] = append(groups[b.date], b)
	}
	for _, k := range keys {
		g := groups[k]
		sort.SliceStable(g, func(i, j int) bool {
			return lessBlock(l, g[i], g[j])
		})
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))

	var body []string
	for _, lines := range loose {
		body = append(body, lines...)
	}
	if undated, ok := groups[""]; ok {
		for _, b := range undated {
			body = append(body, b.lines...)
		}
	}
	for _, k := range keys {
		if k == "" {
			continue
		}
		if len(body) > 0 {
			body = append(body, "")
		}
		body = append(body, "## [["+k+"]]", "")
		for _, b := range groups[k] {
			body = append(body, b.lines...)
		}
	}

	section := []string{""}
	if len(body) > 0 {
		section = append(section, body...)
		section = append(section, "")
	}

	result := make([]string, 0, start+1+len(section)+len(out)-end)
	result = append(result, out[:start+1]...)
	result = append(result, section...)
	result = append(result, out[end:]...)
	return result
}

// lessBlock orders blocks: timed before untimed, then by time, then by ID.
func lessBlock(l taskline.Layout, a, b sectionBlock) bool {
	ka, kb := sortKey(l, a), sortKey(l, b)
	if ka.untimed != kb.untimed {
		return !ka.untimed
	}
	if ka.clock != kb.clock {
		return ka.clock < kb.clock
	}
	return a.id < b.id
}

type blockKey struct {
	untimed bool
	clock   string
}

func sortKey(l taskline.Layout, b sectionBlock) blockKey {
	if ln, ok := l.Parse(b.lines[0]); ok && ln.Time != "" {
		start, _, _ := strings.Cut(ln.Time, "-")
		return blockKey{clock: dates.PadClock(strings.TrimSpace(start))}
	}
	return blockKey{untimed: true, clock: "99:99"}
}

// scaffoldTaskSection drops stray section markers and inserts an empty task
// section after the front matter.
func scaffoldTaskSection(lines []string) []string {
	kept := make([]string, 0, len(lines)+4)
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == TasksHeader || taskline.IsDivider(trimmed) {
			continue
		}
		kept = append(kept, line)
	}
	at := parser.BodyStart(kept)
	scaffold := []string{"", TasksHeader, "", taskline.Divider}
	out := make([]string, 0, len(kept)+len(scaffold))
	out = append(out, kept[:at]...)
	out = append(out, scaffold...)
	out = append(out, kept[at:]...)
	return out
}

// EnsureStructure guarantees the planner and journey headers. A missing
// planner goes before the journey header (or at the top of the body); a
// missing journey header is appended.
func EnsureStructure(lines []string, planner, journey string) ([]string, bool) {
	hasPlanner := indexOfHeader(lines, planner) >= 0
	journeyAt := indexOfHeader(lines, journey)
	if hasPlanner && journeyAt >= 0 {
		return lines, false
	}

	out := append([]string(nil), lines...)
	if !hasPlanner {
		at := journeyAt
		if at < 0 {
			at = parser.BodyStart(out)
		}
		out = insertLines(out, at, []string{planner, ""})
	}
	if journeyAt < 0 {
		if n := len(out); n > 0 && !taskline.IsBlank(out[n-1]) {
			out = append(out, "")
		}
		out = append(out, journey, "")
	}
	return out, true
}

func indexOfHeader(lines []string, header string) int {
	for i, line := range lines {
		if strings.TrimSpace(line) == header {
			return i
		}
	}
	return -1
}

func insertLines(lines []string, at int, chunk []string) []string {
	out := make([]string, 0, len(lines)+len(chunk))
	out = append(out, lines[:at]...)
	out = append(out, chunk...)
	out = append(out, lines[at:]...)
	return out
}

// CleanupEmptyGroups removes "## [[...]]" group headers inside the given top-level
// sections that have nothing but blank lines before the next header or
// divider. The blank lines after a removed header go with it.
func CleanupEmptyGroups(lines []string, sections map[string]bool) ([]string, bool) {
	outline := parser.Outline(lines)
	out := make([]string, 0, len(lines))
	changed := false
	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		if !groupHeaderRe.MatchString(trimmed) || !sections[parser.SectionAt(outline, i)] {
			out = append(out, lines[i])
			continue
		}
		j := i + 1
		empty := true
		for ; j < len(lines); j++ {
			next := strings.TrimSpace(lines[j])
			if strings.HasPrefix(next, "# ") || strings.HasPrefix(next, "## ") || taskline.IsDivider(next) {
				break
			}
			if next != "" {
				empty = false
				break
			}
		}
		if !empty {
			out = append(out, lines[i])
			continue
		}
		changed = true
		i = j - 1
	}
	return out, changed
}

// group is a batch of blocks bound for one "## [[name]]" header.
type group struct {
	name  string
	lines []string
}

// InsertGroups places each group's lines under its "## [[name]]" header in
// the journey section, creating the header at the end of the section when it
// does not exist. Lines land after the header's existing content, before any
// trailing blank lines.
func InsertGroups(lines []string, journey string, groups []group) []string {
	out := append([]string(nil), lines...)
	journeyAt := indexOfHeader(out, journey)
	if journeyAt < 0 {
		journeyAt = len(out)
	}

	sectionEnd := func() int {
		for i := journeyAt + 1; i < len(out); i++ {
			if strings.HasPrefix(out[i], "# ") {
				return i
			}
		}
		return len(out)
	}
	backOverBlank := func(at, floor int) int {
		for at > floor && taskline.IsBlank(out[at-1]) {
			at--
		}
		return at
	}

	for _, g := range groups {
		if len(g.lines) == 0 {
			continue
		}
		end := sectionEnd()
		want := compactHeader("## [[" + g.name + "]]")
		header := -1
		for k := journeyAt; k < end; k++ {
			if compactHeader(out[k]) == want {
				header = k
				break
			}
		}

		if header >= 0 {
			at := end
			for k := header + 1; k < end; k++ {
				if strings.HasPrefix(out[k], "#") {
					at = k
					break
				}
			}
			out = insertLines(out, backOverBlank(at, header+1), g.lines)
			continue
		}

		chunk := append([]string{"", "## [[" + g.name + "]]"}, g.lines...)
		out = insertLines(out, backOverBlank(end, journeyAt+1), chunk)
	}
	return out
}

func compactHeader(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), " ", "")
}
