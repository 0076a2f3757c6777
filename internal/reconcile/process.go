package reconcile

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/aidanlsb/dailysync/internal/dates"
	"github.com/aidanlsb/dailysync/internal/journal"
	"github.com/aidanlsb/dailysync/internal/paths"
	"github.com/aidanlsb/dailysync/internal/taskline"
	"github.com/aidanlsb/dailysync/internal/template"
	"github.com/aidanlsb/dailysync/internal/writeguard"
)

// dailyEdit replaces span lines at index. A nil replacement deletes them.
type dailyEdit struct {
	index int
	span  int
	lines []string
}

// sourceChanges batches block mutations per source file.
type sourceChanges struct {
	deletes map[string]map[string]bool
	updates map[string]map[string][]string
}

func newSourceChanges() *sourceChanges {
	return &sourceChanges{
		deletes: make(map[string]map[string]bool),
		updates: make(map[string]map[string][]string),
	}
}

func (c *sourceChanges) remove(path, id string) {
	if c.deletes[path] == nil {
		c.deletes[path] = make(map[string]bool)
	}
	c.deletes[path][id] = true
}

func (c *sourceChanges) put(path, id string, block []string) {
	if c.updates[path] == nil {
		c.updates[path] = make(map[string][]string)
	}
	c.updates[path][id] = block
}

// pendingState holds state and journal updates per file, applied only once
// that file has been written.
type pendingState map[string][]func()

func (ps pendingState) add(path string, fn func()) {
	ps[path] = append(ps[path], fn)
}

func (ps pendingState) commit(path string) {
	for _, fn := range ps[path] {
		fn()
	}
	delete(ps, path)
}

// ProcessDate reconciles one daily note with the source tasks dated for it.
func (e *Engine) ProcessDate(ctx context.Context, p *Pass, date string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sources := p.Sources[date]
	path := e.DailyPath(date)

	created := false
	if !e.files.Exists(path) {
		if len(sources) == 0 {
			return nil
		}
		if err := e.createDaily(p, path, date); err != nil {
			return err
		}
		created = true
	}

	lines, err := e.files.ReadLines(path)
	if err != nil {
		return err
	}
	if structured, changed := EnsureStructure(lines, e.opts.PlannerSection, e.opts.JourneySection); changed {
		if err := e.write(p, path, structured, "structure"); err != nil {
			return err
		}
		lines = structured
	}

	lines, organized := e.dispatch(ctx, p, date, lines)
	if len(organized) > 0 {
		if err := e.write(p, path, lines, "dispatch"); err != nil {
			return err
		}
	}

	note := e.parseDaily(p, lines)
	registered := map[string]bool{}
	if len(note.Candidates) > 0 {
		lines, registered, err = e.register(ctx, p, date, path, lines, note.Candidates)
		if err != nil {
			return err
		}
		note = e.parseDaily(p, lines)
	}

	if err := e.reconcile(ctx, p, date, path, lines, note, organized, registered, created); err != nil {
		return err
	}
	p.Report.Processed = append(p.Report.Processed, date)
	return e.state.Save()
}

// createDaily writes a new daily note from the template, with its date
// variables filled in, or from the planner/journey scaffold when no template
// is available.
func (e *Engine) createDaily(p *Pass, path, date string) error {
	lines := []string{e.opts.PlannerSection, "", e.opts.JourneySection, ""}
	if e.opts.TemplateFile != "" {
		tmpl := paths.Resolve(e.root, e.opts.TemplateFile)
		if content, err := e.files.ReadLines(tmpl); err == nil && len(content) > 0 {
			lines = content
			if t, perr := dates.ParseDate(date); perr == nil {
				lines = template.ApplyLines(content, template.NewDailyVariables(t))
			}
		} else if err != nil {
			e.errs.Once("template:"+tmpl, "template unreadable, using scaffold", "path", tmpl, "err", err)
		}
	}
	if err := e.write(p, path, lines, "create"); err != nil {
		return fmt.Errorf("create daily note %s: %w", date, err)
	}
	e.logger.Info("created daily note", "date", date)
	return nil
}

// register assigns IDs to new tasks under project groups, injects them into
// their project files and rewrites the daily lines with return links. A task
// whose project file cannot be written is left untouched for the next pass.
func (e *Engine) register(ctx context.Context, p *Pass, date, path string, lines []string, cands []candidate) ([]string, map[string]bool, error) {
	type pending struct {
		id    string
		index int
		head  string
		hash  string
	}
	batches := make(map[string][]pending)
	blocks := make(map[string][]string)

	for _, c := range cands {
		target := c.Project.Path
		if routePath, _, ok := routing(p.Projects, c.Head); ok {
			target = routePath
		}
		id, err := e.mint(p)
		if err != nil {
			return lines, nil, err
		}
		stem := paths.Stem(target)
		ln := c.Head
		children := c.Lines[1:]
		clean := taskline.CleanText(ln.Raw, "", stem)

		head := e.layout.FormatDaily(taskline.DailyLine{
			Depth:    ln.Depth,
			Quoted:   ln.Quoted,
			Status:   ln.Status,
			Time:     ln.Time,
			Text:     clean,
			FileStem: stem,
			BlockID:  id,
		})
		src := e.layout.FormatSource(taskline.SourceLine{
			Status:  ln.Status,
			Time:    ln.Time,
			Text:    clean,
			Date:    date,
			BlockID: id,
		})
		blocks[target] = append(blocks[target], src)
		blocks[target] = append(blocks[target], e.layout.ReindentChildren(children, 0, ln.Depth, false)...)
		batches[target] = append(batches[target], pending{
			id:    id,
			index: c.Index,
			head:  head,
			hash:  taskline.Fingerprint(ln.Status, clean, children),
		})
	}

	targets := make([]string, 0, len(batches))
	for t := range batches {
		targets = append(targets, t)
	}
	sort.Strings(targets)

	out := append([]string(nil), lines...)
	registered := make(map[string]bool)
	for _, target := range targets {
		srcLines, err := e.files.ReadLines(target)
		if err != nil && e.files.Exists(target) {
			p.Report.fail(err)
			continue
		}
		srcLines = InjectTaskSection(e.layout, srcLines, blocks[target])
		if err := e.write(p, target, srcLines, "register"); err != nil {
			p.Report.fail(err)
			continue
		}
		e.verifyLater(target)
		for _, r := range batches[target] {
			out[r.index] = r.head
			registered[r.id] = true
			e.state.Update(r.id, r.hash, target, date)
			e.logger.Info("registered task", "id", r.id, "date", date, "path", e.rel(target))
			e.record(ctx, p, journal.ActionRegister, date, r.id, target, "")
		}
	}

	if len(registered) == 0 {
		return lines, registered, nil
	}
	if err := e.write(p, path, out, "register"); err != nil {
		return lines, nil, err
	}
	return out, registered, nil
}

// reconcile compares every ID present on either side with its stored
// fingerprint and applies the winning side.
func (e *Engine) reconcile(ctx context.Context, p *Pass, date, path string, lines []string, note *dailyNote, organized, registered map[string]bool, created bool) error {
	sources := p.Sources[date]
	ids := make([]string, 0, len(sources)+len(note.Tasks))
	seen := make(map[string]bool)
	for id := range sources {
		seen[id] = true
		ids = append(ids, id)
	}
	for id := range note.Tasks {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var edits []dailyEdit
	appends := make(map[string][]string)
	changes := newSourceChanges()
	pending := make(pendingState)

	for _, id := range ids {
		if registered[id] {
			continue
		}
		sd, inSource := sources[id]
		dd, inDaily := note.Tasks[id]
		last := e.state.Hash(id)

		switch {
		case inSource && inDaily:
			sourceChanged := sd.Hash != last
			dailyChanged := dd.Hash != last
			switch {
			case sourceChanged && !dailyChanged:
				block := renderDaily(e.layout, sd, dd.Depth, dd.Quoted, dd.Time)
				edits = append(edits, dailyEdit{index: dd.Index, span: dd.Span(), lines: block})
				pending.add(path, func() {
					e.state.Update(id, sd.Hash, sd.Path, date)
					e.logger.Info("synced source to daily", "id", id, "date", date)
					e.record(ctx, p, journal.ActionSyncToDaily, date, id, sd.Path, "")
				})
			case dailyChanged && (!sourceChanged || sd.Hash != dd.Hash):
				changes.put(sd.Path, id, renderSource(e.layout, dd, sd.Stem, date, sd.Depth, sd.DoneDate, sd.Time))
				pending.add(sd.Path, func() {
					e.state.Update(id, dd.Hash, sd.Path, date)
					action := journal.ActionSyncToSource
					if sourceChanged {
						action = journal.ActionConflict
						e.logger.Info("conflict, daily wins", "id", id, "date", date)
					} else {
						e.logger.Info("synced daily to source", "id", id, "date", date)
					}
					e.record(ctx, p, action, date, id, sd.Path, "")
				})
			default:
				e.state.Update(id, sd.Hash, sd.Path, date)
				e.logger.Debug("heartbeat", "id", id, "date", date)
			}

		case inSource:
			if !created && e.state.Has(id) && e.state.Date(id) == date {
				changes.remove(sd.Path, id)
				pending.add(sd.Path, func() {
					e.state.Remove(id)
					e.logger.Info("removed from daily, deleting from source", "id", id, "date", date, "path", e.rel(sd.Path))
					e.record(ctx, p, journal.ActionDeleteSource, date, id, sd.Path, "")
				})
				continue
			}
			if len(sd.Linked) > 0 && !containsString(sd.Linked, date) {
				e.logger.Debug("append skipped, task names another date", "id", id, "date", date, "linked", sd.Linked)
				continue
			}
			appends[sd.Project] = append(appends[sd.Project], renderDaily(e.layout, sd, 0, false, "")...)
			pending.add(path, func() {
				e.state.Update(id, sd.Hash, sd.Path, date)
				e.logger.Info("appended to daily", "id", id, "date", date, "project", sd.Project)
				e.record(ctx, p, journal.ActionAppend, date, id, sd.Path, sd.Project)
			})

		case inDaily:
			if e.shouldPush(p, dd, organized[id]) {
				target, ok := e.graduationTarget(p, dd)
				if !ok {
					e.logger.Warn("daily task has no source file to graduate to", "id", id, "date", date)
					continue
				}
				changes.put(target, id, renderSource(e.layout, dd, paths.Stem(target), date, 0, "", ""))
				pending.add(target, func() {
					e.state.Update(id, dd.Hash, target, date)
					e.logger.Info("graduated daily task", "id", id, "date", date, "path", e.rel(target))
					e.record(ctx, p, journal.ActionGraduate, date, id, target, "")
				})
				continue
			}
			edits = append(edits, dailyEdit{index: dd.Index, span: dd.Span()})
			pending.add(path, func() {
				e.state.Remove(id)
				e.logger.Info("removed from source, deleting from daily", "id", id, "date", date)
				e.record(ctx, p, journal.ActionDeleteDaily, date, id, path, "")
			})
		}
	}

	if len(edits) > 0 || len(appends) > 0 {
		out := applyEdits(lines, edits)
		if len(appends) > 0 {
			names := make([]string, 0, len(appends))
			for name := range appends {
				names = append(names, name)
			}
			sort.Strings(names)
			groups := make([]group, 0, len(names))
			for _, name := range names {
				groups = append(groups, group{name: name, lines: appends[name]})
			}
			out = InsertGroups(out, e.opts.JourneySection, groups)
		}
		out, _ = CleanupEmptyGroups(out, e.sections)
		if err := e.write(p, path, out, "reconcile"); err != nil {
			return err
		}
	}
	pending.commit(path)

	e.applySourceChanges(p, changes, pending)
	return nil
}

// shouldPush reports whether a daily-only task belongs in a source file
// rather than being deleted: it was just dispatched, it never had a source
// outside the daily notes, or it routes to an existing file other than the
// one it was last seen in.
func (e *Engine) shouldPush(p *Pass, dd *DailyTask, organized bool) bool {
	if organized {
		return true
	}
	entry, known := e.state.Get(dd.ID)
	if !known || entry.SourcePath == "" || paths.IsWithin(e.dailyDir, entry.SourcePath) {
		return true
	}
	route, _, ok := routing(p.Projects, dd.Head)
	if !ok || !e.files.Exists(route) {
		return false
	}
	return paths.Normalize(route) != entry.SourcePath
}

// graduationTarget picks the source file for a daily-only task: its routing
// link, then its group's project file, then the file its return link names.
func (e *Engine) graduationTarget(p *Pass, dd *DailyTask) (string, bool) {
	target := ""
	if route, _, ok := routing(p.Projects, dd.Head); ok {
		target = route
	} else if proj, ok := p.Projects.ByName(dd.Group); ok && dd.Group != "" {
		target = proj.Path
	} else if file, ok := p.Projects.ResolveStem(dd.FileStem); ok {
		target = file
	}
	if target == "" || !e.files.Exists(target) {
		return "", false
	}
	return paths.Normalize(target), true
}

func applyEdits(lines []string, edits []dailyEdit) []string {
	out := append([]string(nil), lines...)
	sort.Slice(edits, func(i, j int) bool { return edits[i].index > edits[j].index })
	for _, ed := range edits {
		tail := append([]string(nil), out[ed.index+ed.span:]...)
		out = append(append(out[:ed.index], ed.lines...), tail...)
	}
	return out
}

// applySourceChanges rewrites each affected source file: deleted blocks are
// dropped, updated blocks replaced where their ID is found and injected into
// the task section otherwise. A file's pending state is committed only after
// it has been written.
func (e *Engine) applySourceChanges(p *Pass, c *sourceChanges, pending pendingState) {
	seen := make(map[string]bool)
	var files []string
	for path := range c.deletes {
		seen[path] = true
		files = append(files, path)
	}
	for path := range c.updates {
		if !seen[path] {
			files = append(files, path)
		}
	}
	sort.Strings(files)

	for _, path := range files {
		lines, err := e.files.ReadLines(path)
		if err != nil && e.files.Exists(path) {
			p.Report.fail(err)
			continue
		}
		deletes, updates := c.deletes[path], c.updates[path]
		handled := make(map[string]bool)

		out := make([]string, 0, len(lines))
		for i := 0; i < len(lines); {
			id := ""
			if taskline.IsTask(lines[i]) {
				id = taskline.AnyID(lines[i])
			}
			switch {
			case id != "" && deletes[id]:
				_, n := e.layout.Capture(lines, i)
				i += n
			case id != "" && updates[id] != nil && !handled[id]:
				_, n := e.layout.Capture(lines, i)
				out = append(out, updates[id]...)
				handled[id] = true
				i += n
			default:
				out = append(out, lines[i])
				i++
			}
		}

		var incoming []string
		ids := make([]string, 0, len(updates))
		for id := range updates {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if !handled[id] {
				incoming = append(incoming, updates[id]...)
			}
		}

		out = InjectTaskSection(e.layout, out, incoming)
		if err := e.write(p, path, out, "source update"); err != nil {
			p.Report.fail(err)
			continue
		}
		pending.commit(path)
		if len(updates) > 0 {
			e.verifyLater(path)
		}
	}
}

// verifyLater re-reads path after the verify delay and logs a snapshot.
// It never writes and its failures are ignored.
func (e *Engine) verifyLater(path string) {
	if e.opts.VerifyDelay <= 0 {
		return
	}
	e.verifyWG.Add(1)
	go func() {
		defer e.verifyWG.Done()
		select {
		case <-e.verifyCtx.Done():
			return
		case <-time.After(e.opts.VerifyDelay):
		}
		data, err := os.ReadFile(path)
		if err != nil {
			e.logger.Debug("verify snapshot failed", "path", e.rel(path), "err", err)
			return
		}
		e.logger.Debug("verify snapshot", "path", e.rel(path), "bytes", len(data), "fingerprint", writeguard.Fingerprint(data)[:12])
	}()
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
