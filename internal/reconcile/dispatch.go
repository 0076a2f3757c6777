package reconcile

import (
	"context"
	"sort"
	"strings"

	"github.com/aidanlsb/dailysync/internal/journal"
	"github.com/aidanlsb/dailysync/internal/taskline"
	"github.com/aidanlsb/dailysync/internal/wikilink"
)

// relocation is a daily block bound for a project group.
type relocation struct {
	index int
	span  int
	id    string
	group string
	lines []string
}

// dispatch moves daily tasks into the "## [[Project]]" group of the project
// they route to. The target is the project owning the first non-return link
// that resolves to a vault file. A task moves when it sits outside any group
// (unless its return link already points into the target project) or under
// a group naming another project. It returns the rewritten lines and the IDs
// of every moved task.
func (e *Engine) dispatch(ctx context.Context, p *Pass, date string, lines []string) ([]string, map[string]bool) {
	organized := make(map[string]bool)
	var moves []relocation

	e.walkDaily(lines, func(item dailyItem) {
		ln := item.Head
		routePath, routeLink, ok := routing(p.Projects, ln)
		if !ok {
			return
		}
		target, err := p.Projects.Owner(routePath)
		if err != nil {
			return
		}
		ret, hasRet := ln.ReturnLink()
		if item.Group == "" {
			if hasRet && e.belongsTo(p, ret.File(), target.Name) {
				return
			}
		} else if item.Group == target.Name {
			return
		}

		id := ln.BlockID
		if id == "" && hasRet {
			id = ret.BlockID()
		}
		if id == "" {
			minted, err := e.mint(p)
			if err != nil {
				p.Report.fail(err)
				return
			}
			id = minted
		}

		head := taskline.DailyLine{
			Status:   ln.Status,
			Time:     ln.Time,
			FileStem: target.Name,
			BlockID:  id,
		}
		if _, isProject := p.Projects.ByName(routeLink.File()); !isProject {
			// Links to ordinary notes are kept as written.
			head.Text = collapse(wikilink.StripReturns(ln.Rest))
		} else {
			head.Text = e.withoutOtherProjects(p, taskline.CleanText(ln.Raw, id, target.Name), target.Name)
			head.Tag = true
		}

		block := append([]string{e.layout.FormatDaily(head)}, e.layout.ReindentChildren(item.Lines[1:], 0, ln.Depth, false)...)
		moves = append(moves, relocation{index: item.Index, span: item.Span, id: id, group: target.Name, lines: block})
		organized[id] = true

		from := item.Group
		if from == "" {
			from = item.Section
		}
		e.logger.Info("dispatched task", "id", id, "date", date, "from", from, "to", target.Name)
		e.record(ctx, p, journal.ActionDispatch, date, id, target.Path, from+" -> "+target.Name)
	})

	if len(moves) == 0 {
		return lines, organized
	}

	out := append([]string(nil), lines...)
	sort.Slice(moves, func(i, j int) bool { return moves[i].index > moves[j].index })
	for _, m := range moves {
		out = append(out[:m.index], out[m.index+m.span:]...)
	}

	// Groups are filled in document order.
	sort.Slice(moves, func(i, j int) bool { return moves[i].index < moves[j].index })
	var groups []group
	at := make(map[string]int)
	for _, m := range moves {
		i, ok := at[m.group]
		if !ok {
			i = len(groups)
			at[m.group] = i
			groups = append(groups, group{name: m.group})
		}
		groups[i].lines = append(groups[i].lines, m.lines...)
	}
	out = InsertGroups(out, e.opts.JourneySection, groups)
	out, _ = CleanupEmptyGroups(out, e.sections)
	return out, organized
}

// belongsTo reports whether the file named by stem lives in project name.
func (e *Engine) belongsTo(p *Pass, stem, name string) bool {
	path, ok := p.Projects.ResolveStem(stem)
	if !ok {
		return false
	}
	owner, err := p.Projects.Owner(path)
	return err == nil && owner.Name == name
}

// withoutOtherProjects drops links to projects other than keep.
func (e *Engine) withoutOtherProjects(p *Pass, text, keep string) string {
	links := wikilink.FindAllInLine(text, true)
	for i := len(links) - 1; i >= 0; i-- {
		m := links[i]
		name := m.File()
		if name == keep {
			continue
		}
		if _, ok := p.Projects.ByName(name); ok {
			text = text[:m.Start] + text[m.End:]
		}
	}
	return collapse(text)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
