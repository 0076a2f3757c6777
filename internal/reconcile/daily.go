package reconcile

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/aidanlsb/dailysync/internal/dates"
	"github.com/aidanlsb/dailysync/internal/parser"
	"github.com/aidanlsb/dailysync/internal/project"
	"github.com/aidanlsb/dailysync/internal/taskline"
	"github.com/aidanlsb/dailysync/internal/wikilink"
)

// candidate is a daily task with no ID under a project group header.
type candidate struct {
	Index   int
	Lines   []string
	Head    taskline.Line
	Project project.Project
}

// dailyNote is the parsed content of one daily note.
type dailyNote struct {
	Tasks      map[string]*DailyTask
	Candidates []candidate
}

// dailyItem is one task block visited by walkDaily.
type dailyItem struct {
	Index   int
	Span    int
	Lines   []string
	Head    taskline.Line
	Section string
	Group   string
}

// walkDaily visits every top-level task block inside the allowed sections,
// skipping fenced code.
// Group tracks the "## [[name]]" header a block sits under; any other header
// or a new top-level section clears it.
func (e *Engine) walkDaily(lines []string, visit func(item dailyItem)) {
	outline := parser.Outline(lines)
	section, group := "", ""
	var fence parser.FenceState
	for i := 0; i < len(lines); {
		if fence.Skip(lines[i]) {
			i++
			continue
		}
		if s := parser.SectionAt(outline, i); s != section {
			section, group = s, ""
		}
		if !e.sections[section] {
			i++
			continue
		}
		trimmed := strings.TrimSpace(lines[i])
		if m := groupHeaderRe.FindStringSubmatch(trimmed); m != nil {
			group = groupName(m[1])
			i++
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			group = ""
			i++
			continue
		}
		ln, ok := e.layout.Parse(lines[i])
		if !ok {
			i++
			continue
		}
		block, n := e.layout.Capture(lines, i)
		body, _ := taskline.SplitTrailingBlank(block)
		visit(dailyItem{Index: i, Span: len(body), Lines: body, Head: ln, Section: section, Group: group})
		i += n
	}
}

// groupName reduces the inside of a "## [[...]]" header to a file name.
func groupName(inner string) string {
	name, _, _ := strings.Cut(inner, "|")
	name, _, _ = strings.Cut(name, "#")
	return norm.NFC.String(strings.TrimSpace(name))
}

// parseDaily extracts synced tasks (keyed by the return link's block ID) and
// registration candidates. The first occurrence of a duplicated ID wins.
func (e *Engine) parseDaily(p *Pass, lines []string) *dailyNote {
	note := &dailyNote{Tasks: make(map[string]*DailyTask)}
	e.walkDaily(lines, func(item dailyItem) {
		ln := item.Head
		if ret, ok := ln.ReturnLink(); ok {
			id := ret.BlockID()
			if _, dup := note.Tasks[id]; dup {
				e.logger.Debug("duplicate daily block id ignored", "id", id, "line", item.Index+1)
				return
			}
			p.inUse[id] = true
			text := taskline.CleanText(ln.Raw, id, ret.File())
			note.Tasks[id] = &DailyTask{
				ID:       id,
				Status:   ln.Status,
				Time:     ln.Time,
				Text:     text,
				Depth:    ln.Depth,
				Quoted:   ln.Quoted,
				FileStem: ret.File(),
				Group:    item.Group,
				Index:    item.Index,
				Lines:    item.Lines,
				Head:     ln,
				Hash:     taskline.Fingerprint(ln.Status, text, item.Lines[1:]),
			}
			return
		}
		if item.Group == "" || ln.BlockID != "" {
			return
		}
		proj, ok := p.Projects.ByName(item.Group)
		if !ok {
			return
		}
		note.Candidates = append(note.Candidates, candidate{Index: item.Index, Lines: item.Lines, Head: ln, Project: proj})
	})
	return note
}

// routing returns the first non-return, non-date link of ln that resolves to
// a vault file, with its literal text.
func routing(pm *project.Map, ln taskline.Line) (path string, link wikilink.Match, ok bool) {
	for _, m := range ln.Links() {
		if m.IsReturn() {
			continue
		}
		file := m.File()
		if dates.IsValidDate(file) {
			continue
		}
		if p, found := pm.ResolveStem(file); found {
			return p, m, true
		}
	}
	return "", wikilink.Match{}, false
}
