package reconcile

import (
	"errors"
	"fmt"

	"github.com/aidanlsb/dailysync/internal/state"
	"github.com/aidanlsb/dailysync/internal/taskline"
)

// ErrBlockNotFound is returned when no task line carries the requested ID.
var ErrBlockNotFound = errors.New("block not found")

// FindBlock returns the task block in path whose head carries id, without
// trailing blank lines.
func (e *Engine) FindBlock(path, id string) ([]string, error) {
	lines, err := e.files.ReadLines(path)
	if err != nil {
		return nil, err
	}
	for i, line := range lines {
		if !taskline.IsTask(line) || taskline.AnyID(line) != id {
			continue
		}
		block, _ := e.layout.Capture(lines, i)
		body, _ := taskline.SplitTrailingBlank(block)
		return body, nil
	}
	return nil, fmt.Errorf("%s in %s: %w", id, e.rel(path), ErrBlockNotFound)
}

// Locate finds a tracked task through the state store: its source block
// first, then its copy in the daily note of its recorded date.
func (e *Engine) Locate(id string) (path string, block []string, err error) {
	entry, ok := e.state.Get(id)
	if !ok {
		return "", nil, fmt.Errorf("%s is not tracked: %w", id, ErrBlockNotFound)
	}
	if entry.SourcePath != "" {
		if block, err := e.FindBlock(entry.SourcePath, id); err == nil {
			return entry.SourcePath, block, nil
		}
	}
	if entry.Date != "" {
		daily := e.DailyPath(entry.Date)
		if block, err := e.FindBlock(daily, id); err == nil {
			return daily, block, nil
		}
	}
	return "", nil, fmt.Errorf("%s: %w", id, ErrBlockNotFound)
}

// State exposes the engine's state store.
func (e *Engine) State() *state.Store { return e.state }
