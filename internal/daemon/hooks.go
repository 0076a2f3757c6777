package daemon

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/aidanlsb/dailysync/internal/shellquote"
)

// Hook is an operator command run against a processed daily note.
// {path} and {date} in Command are replaced with shell-quoted values.
type Hook struct {
	Command string
	Dir     string
}

// HookResult captures the outcome of a hook invocation.
type HookResult struct {
	Ran      bool
	ExitCode int
	Changed  bool
	Output   string
}

// Run executes the hook through sh and reports whether the note's content
// changed. An empty command does nothing.
func (h Hook) Run(ctx context.Context, date, path string) (HookResult, error) {
	if h.Command == "" {
		return HookResult{}, nil
	}

	before, _ := os.ReadFile(path)

	line := shellquote.Expand(h.Command, map[string]string{"path": path, "date": date})
	cmd := exec.CommandContext(ctx, "sh", "-c", line)
	if h.Dir != "" {
		cmd.Dir = h.Dir
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	result := HookResult{
		Ran:      true,
		ExitCode: exitCodeFromError(err),
		Output:   out.String(),
	}
	if err != nil {
		return result, fmt.Errorf("hook %q failed: %w", h.Command, err)
	}

	after, _ := os.ReadFile(path)
	result.Changed = !bytes.Equal(before, after)
	return result, nil
}

func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
