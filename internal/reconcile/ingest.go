package reconcile

import (
	"context"
	"strings"

	"github.com/aidanlsb/dailysync/internal/journal"
	"github.com/aidanlsb/dailysync/internal/paths"
	"github.com/aidanlsb/dailysync/internal/project"
	"github.com/aidanlsb/dailysync/internal/taskline"
	"github.com/aidanlsb/dailysync/internal/vault"
)

// sourceFile is a project-owned file with a task section.
type sourceFile struct {
	path    string
	project project.Project
	lines   []string
}

// ingest reads every project file's task section into p.Sources. Lines that
// are not in canonical form are rewritten, lost IDs are rescued by
// fingerprint and missing ones minted.
func (e *Engine) ingest(ctx context.Context, p *Pass) error {
	var files []sourceFile
	err := vault.WalkMarkdownFiles(e.filter, func(res vault.WalkResult) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if res.Error != nil {
			return nil
		}
		owner, err := p.Projects.Owner(res.Path)
		if err != nil {
			return nil
		}
		lines, err := e.files.ReadLines(res.Path)
		if err != nil {
			p.Report.fail(err)
			return nil
		}
		if start, _ := taskSection(lines); start < 0 {
			return nil
		}
		files = append(files, sourceFile{path: res.Path, project: owner, lines: lines})
		return nil
	})
	if err != nil {
		return err
	}

	// Explicit IDs are reserved up front so a rescue in one file cannot
	// steal an ID another file still carries.
	for _, f := range files {
		start, end := taskSection(f.lines)
		if end < 0 {
			end = len(f.lines)
		}
		for _, line := range f.lines[start+1 : end] {
			if taskline.IsTask(line) {
				if id := taskline.AnyID(line); id != "" {
					p.inUse[id] = true
				}
			}
		}
	}

	claimed := make(map[string]bool)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.ingestFile(ctx, p, f, claimed)
	}
	return nil
}

func (e *Engine) ingestFile(ctx context.Context, p *Pass, f sourceFile, claimed map[string]bool) {
	out := append([]string(nil), f.lines...)
	start, end := taskSection(out)
	if end < 0 {
		end = len(out)
	}
	stem := paths.Stem(f.path)
	seenHeaders := make(map[string]bool)
	current := ""
	mod := false

	for i := start + 1; i < end; i++ {
		line := out[i]
		trimmed := strings.TrimSpace(line)
		if m := dateHeaderRe.FindStringSubmatch(trimmed); m != nil {
			if seenHeaders[m[1]] {
				mod = true
			}
			seenHeaders[m[1]] = true
			current = m[1]
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			current = ""
			continue
		}
		ln, ok := e.layout.Parse(line)
		if !ok || ln.Quoted {
			continue
		}

		block, n := e.layout.Capture(out[:end], i)
		body, _ := taskline.SplitTrailingBlank(block)
		children := body[1:]

		date := current
		if date == "" {
			date = taskline.InlineDate(line)
		}
		if date == "" {
			i += n - 1
			continue
		}

		id := taskline.AnyID(line)
		switch {
		case id == "":
			clean := taskline.CleanText(line, "", stem)
			fp := taskline.Fingerprint(ln.Status, clean, children)
			if found, ok := e.state.FindIDByHash(f.path, fp, p.taken); ok {
				id = found
				p.inUse[id] = true
				e.logger.Info("rescued block id", "id", id, "path", e.rel(f.path))
				e.record(ctx, p, journal.ActionRescue, date, id, f.path, clean)
			} else {
				minted, err := e.mint(p)
				if err != nil {
					p.Report.fail(err)
					i += n - 1
					continue
				}
				id = minted
				e.logger.Info("minted block id", "id", id, "path", e.rel(f.path))
				e.record(ctx, p, journal.ActionMint, date, id, f.path, clean)
			}
		case claimed[id]:
			minted, err := e.mint(p)
			if err != nil {
				p.Report.fail(err)
				i += n - 1
				continue
			}
			e.logger.Warn("duplicate block id, reassigned", "id", id, "new", minted, "path", e.rel(f.path))
			e.record(ctx, p, journal.ActionMint, date, minted, f.path, "duplicate of "+id)
			id = minted
		}
		claimed[id] = true

		text := taskline.CleanText(line, id, stem)
		doneDate := taskline.DoneDate(line)
		linked := taskline.LinkedDates(line)
		canonical := e.layout.FormatSource(taskline.SourceLine{
			Depth:    ln.Depth,
			Status:   ln.Status,
			Time:     ln.Time,
			Text:     text,
			Date:     date,
			DoneDate: doneDate,
			BlockID:  id,
		})
		if canonical != line {
			out[i] = canonical
			body[0] = canonical
			mod = true
		}
		i += n - 1

		if e.gated(date) {
			continue
		}
		if p.Sources[date] == nil {
			p.Sources[date] = make(map[string]*SourceTask)
		}
		p.Sources[date][id] = &SourceTask{
			ID:       id,
			Project:  f.project.Name,
			Path:     paths.Normalize(f.path),
			Stem:     stem,
			Date:     date,
			Status:   ln.Status,
			Time:     ln.Time,
			Text:     text,
			DoneDate: doneDate,
			Linked:   linked,
			Depth:    ln.Depth,
			Lines:    append([]string(nil), body...),
			Hash:     taskline.Fingerprint(ln.Status, text, children),
		}
	}

	if !mod {
		return
	}
	out = InjectTaskSection(e.layout, out, nil)
	if err := e.write(p, f.path, out, "canonicalize"); err != nil {
		p.Report.fail(err)
	}
}
