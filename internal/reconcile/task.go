// Package reconcile keeps project task sections and daily notes in sync.
//
// One pass discovers projects, ingests every project file's "# Tasks"
// section, then reconciles each daily note against the source tasks dated
// for it: new tasks are registered, misplaced ones dispatched to their
// project group, and every block ID present on either side is compared with
// its last recorded fingerprint to decide which side wins.
package reconcile

import (
	"github.com/aidanlsb/dailysync/internal/taskline"
)

// SourceTask is a task block read from a project file's task section.
type SourceTask struct {
	ID       string
	Project  string
	Path     string
	Stem     string
	Date     string
	Status   string
	Time     string
	Text     string
	DoneDate string
	// Linked holds every date the head line names.
	Linked []string
	Depth  int
	// Lines is the captured block without trailing blank lines.
	Lines []string
	Hash  string
}

// Children returns the block's nested lines.
func (t *SourceTask) Children() []string {
	if len(t.Lines) < 2 {
		return nil
	}
	return t.Lines[1:]
}

// DailyTask is a synced task block found in a daily note.
type DailyTask struct {
	ID     string
	Status string
	Time   string
	Text   string
	Depth  int
	Quoted bool
	// FileStem is the file named by the task's return link.
	FileStem string
	// Group is the "## [[name]]" header the task sits under, or "".
	Group string
	// Index is the head line; Lines excludes trailing blank lines.
	Index int
	Lines []string
	Head  taskline.Line
	Hash  string
}

// Children returns the block's nested lines.
func (t *DailyTask) Children() []string {
	if len(t.Lines) < 2 {
		return nil
	}
	return t.Lines[1:]
}

// Span is the number of lines the block body covers.
func (t *DailyTask) Span() int {
	return len(t.Lines)
}
