package taskline

import (
	"strings"
)

// SourceLine is the canonical form of a task inside a project file.
type SourceLine struct {
	Depth    int
	Status   string
	Time     string
	Text     string
	Date     string
	DoneDate string
	BlockID  string
}

// DailyLine is the canonical form of a task inside a daily note.
type DailyLine struct {
	Depth    int
	Quoted   bool
	Status   string
	Time     string
	Text     string
	FileStem string
	BlockID  string
	// Tag adds a plain [[FileStem]] link when Text does not already carry one.
	Tag bool
}

// FormatSource renders
//
//	- [s] HH:MM [[date#^id|⮐]] text ✅ done ^id
func (l Layout) FormatSource(s SourceLine) string {
	parts := []string{checkbox(s.Status)}
	if s.Time != "" {
		parts = append(parts, s.Time)
	}
	parts = append(parts, "[["+s.Date+"#^"+s.BlockID+"|⮐]]")
	if s.Text != "" {
		parts = append(parts, s.Text)
	}
	if s.DoneDate != "" {
		parts = append(parts, "✅ "+s.DoneDate)
	}
	parts = append(parts, "^"+s.BlockID)
	return l.IndentString(s.Depth) + strings.Join(parts, " ")
}

// FormatDaily renders
//
//	- [s] HH:MM [[File#^id|⮐]] text ^id
func (l Layout) FormatDaily(d DailyLine) string {
	parts := []string{checkbox(d.Status)}
	if d.Time != "" {
		parts = append(parts, d.Time)
	}
	parts = append(parts, "[["+d.FileStem+"#^"+d.BlockID+"|⮐]]")
	if d.Tag {
		tag := "[[" + d.FileStem + "]]"
		if !strings.Contains(d.Text, tag) {
			parts = append(parts, tag)
		}
	}
	if d.Text != "" {
		parts = append(parts, d.Text)
	}
	parts = append(parts, "^"+d.BlockID)
	line := l.IndentString(d.Depth) + strings.Join(parts, " ")
	if d.Quoted {
		line = "> " + line
	}
	return line
}

func checkbox(status string) string {
	if status == "" {
		status = " "
	}
	return "- [" + status + "]"
}

// ReindentChildren moves a block's child lines from under a parent at
// sourceParent depth to under a parent at targetParent depth, keeping each
// child's offset. A leading quote marker is dropped and, when quoted is set,
// re-applied to every line.
func (l Layout) ReindentChildren(children []string, targetParent, sourceParent int, quoted bool) []string {
	if len(children) == 0 {
		return nil
	}
	out := make([]string, 0, len(children))
	for _, line := range children {
		inner := StripQuote(line)
		content := strings.TrimSpace(inner)
		if content == "" {
			if quoted {
				out = append(out, ">")
			} else {
				out = append(out, "")
			}
			continue
		}
		delta := l.Depth(inner) - sourceParent
		if delta < 0 {
			delta = 0
		}
		rendered := l.IndentString(targetParent+delta) + content
		if quoted {
			rendered = "> " + rendered
		}
		out = append(out, rendered)
	}
	return out
}
