package vault

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/aidanlsb/dailysync/internal/atomicfile"
	"github.com/aidanlsb/dailysync/internal/logging"
	"github.com/aidanlsb/dailysync/internal/paths"
	"github.com/aidanlsb/dailysync/internal/writeguard"
)

// SplitLines splits file content into lines without their newline. Empty
// content yields no lines.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(content, "\n"), "\n")
}

// JoinLines is the inverse of SplitLines; non-empty output ends with a newline.
func JoinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// Files reads and writes vault notes. Writes are atomic, skipped when the
// content is unchanged, and recorded in the self-write tracker. Failures are
// logged once per path until the path succeeds again.
type Files struct {
	Tracker *writeguard.Tracker
	Errors  *logging.ErrorRegistry
	Logger  *log.Logger

	// WriteFile performs the write. Defaults to atomicfile.WriteIfChanged.
	WriteFile func(path string, data []byte, perm os.FileMode) (bool, error)
}

// NewFiles wires a Files with its collaborators. Nil arguments get fresh
// defaults.
func NewFiles(tracker *writeguard.Tracker, errs *logging.ErrorRegistry, logger *log.Logger) *Files {
	if logger == nil {
		logger = logging.Discard()
	}
	if tracker == nil {
		tracker = writeguard.NewTracker(0)
	}
	if errs == nil {
		errs = logging.NewErrorRegistry(logger)
	}
	return &Files{Tracker: tracker, Errors: errs, Logger: logger}
}

// Exists reports whether path exists.
func (f *Files) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Read returns the content of path.
func (f *Files) Read(path string) (string, error) {
	key := "read:" + paths.Normalize(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			f.Errors.Once(key, "read failed", "path", path, "err", err)
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	f.Errors.Forget(key)
	return string(data), nil
}

// ReadLines returns the lines of path.
func (f *Files) ReadLines(path string) ([]string, error) {
	content, err := f.Read(path)
	if err != nil {
		return nil, err
	}
	return SplitLines(content), nil
}

// Write stores content at path unless the file already holds exactly that
// content. It reports whether a write happened.
func (f *Files) Write(path, content string) (bool, error) {
	key := "write:" + paths.Normalize(path)
	data := []byte(content)
	write := f.WriteFile
	if write == nil {
		write = atomicfile.WriteIfChanged
	}
	wrote, err := write(path, data, 0)
	if err != nil {
		f.Errors.Once(key, "write failed", "path", path, "err", err)
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	f.Errors.Forget(key)
	if wrote {
		f.Tracker.Record(path, data)
		f.Logger.Debug("wrote file", "path", path, "bytes", len(data))
	}
	return wrote, nil
}

// WriteLines is Write for a line slice.
func (f *Files) WriteLines(path string, lines []string) (bool, error) {
	return f.Write(path, JoinLines(lines))
}
