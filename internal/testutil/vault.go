// Package testutil provides reusable test utilities for dailysync tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// DailyDir is the daily-note directory used by test vaults.
const DailyDir = "daily"

// TestVault represents a temporary vault for testing.
type TestVault struct {
	Path  string
	t     *testing.T
	files map[string]string
	order []string
}

// NewTestVault creates a new test vault builder.
// Call Build() to create the actual vault directory.
func NewTestVault(t *testing.T) *TestVault {
	t.Helper()
	return &TestVault{
		t:     t,
		files: make(map[string]string),
	}
}

// WithFile adds a file to the vault.
// The path is relative to the vault root.
func (v *TestVault) WithFile(path, content string) *TestVault {
	if _, ok := v.files[path]; !ok {
		v.order = append(v.order, path)
	}
	v.files[path] = content
	return v
}

// WithProject adds a main-tagged project file dir/name.md with body after the
// front matter.
func (v *TestVault) WithProject(dir, name, body string) *TestVault {
	return v.WithFile(filepath.Join(dir, name+".md"), MainFrontmatter()+body)
}

// WithDaily adds the daily note for date.
func (v *TestVault) WithDaily(date, content string) *TestVault {
	return v.WithFile(filepath.Join(DailyDir, date+".md"), content)
}

// Build creates the vault directory and all configured files.
// Returns the TestVault for method chaining.
func (v *TestVault) Build() *TestVault {
	v.t.Helper()

	v.Path = v.t.TempDir()
	if err := os.MkdirAll(filepath.Join(v.Path, DailyDir), 0o755); err != nil {
		v.t.Fatalf("failed to create daily directory: %v", err)
	}

	for _, path := range v.order {
		v.WriteFile(path, v.files[path])
	}

	return v
}

// Abs returns the absolute path of a vault-relative path.
func (v *TestVault) Abs(relPath string) string {
	return filepath.Join(v.Path, relPath)
}

// WriteFile writes a file to the vault, creating directories as needed.
func (v *TestVault) WriteFile(relPath, content string) {
	v.t.Helper()
	fullPath := v.Abs(relPath)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		v.t.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		v.t.Fatalf("failed to write file %s: %v", fullPath, err)
	}
}

// SetModTime sets a file's modification time.
func (v *TestVault) SetModTime(relPath string, mtime time.Time) {
	v.t.Helper()
	if err := os.Chtimes(v.Abs(relPath), mtime, mtime); err != nil {
		v.t.Fatalf("failed to set mtime on %s: %v", relPath, err)
	}
}

// ReadFile reads a file from the vault.
// Returns the content as a string.
func (v *TestVault) ReadFile(relPath string) string {
	v.t.Helper()
	content, err := os.ReadFile(v.Abs(relPath))
	if err != nil {
		v.t.Fatalf("failed to read file %s: %v", relPath, err)
	}
	return string(content)
}

// FileExists checks if a file exists in the vault.
func (v *TestVault) FileExists(relPath string) bool {
	v.t.Helper()
	_, err := os.Stat(v.Abs(relPath))
	return err == nil
}

// ModTime returns a file's modification time.
func (v *TestVault) ModTime(relPath string) time.Time {
	v.t.Helper()
	info, err := os.Stat(v.Abs(relPath))
	if err != nil {
		v.t.Fatalf("failed to stat %s: %v", relPath, err)
	}
	return info.ModTime()
}

// MainFrontmatter returns front matter tagging a file as a project main file.
func MainFrontmatter() string {
	return "---\ntags: [main]\n---\n"
}

// WriteAbs writes content to an absolute path outside any vault, creating
// directories as needed.
func WriteAbs(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
}
