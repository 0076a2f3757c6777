// Package vault walks the vault tree and performs the daemon's file I/O.
package vault

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/aidanlsb/dailysync/internal/paths"
)

// Filter holds the vault's directory rules. Every directory in Exclude is
// pruned from walks; directories strictly inside an Aggregate directory are
// visited but can never register as their own project.
type Filter struct {
	Root      string
	Exclude   []string
	Aggregate []string
}

// NewFilter resolves relative rule directories against root.
func NewFilter(root string, exclude, aggregate []string) Filter {
	root = paths.Normalize(root)
	resolve := func(dirs []string) []string {
		out := make([]string, 0, len(dirs))
		for _, d := range dirs {
			if strings.TrimSpace(d) == "" {
				continue
			}
			out = append(out, paths.Resolve(root, d))
		}
		return out
	}
	return Filter{Root: root, Exclude: resolve(exclude), Aggregate: resolve(aggregate)}
}

// IsExcluded reports whether p is outside the vault, inside an excluded
// directory, or inside a hidden directory such as .trash or .obsidian.
func (f Filter) IsExcluded(p string) bool {
	if !paths.IsWithin(f.Root, p) {
		return true
	}
	for _, ex := range f.Exclude {
		if paths.IsWithin(ex, p) {
			return true
		}
	}
	rel := paths.Rel(f.Root, p)
	if rel == "." {
		return false
	}
	dir := rel
	if !isDirLike(p) {
		dir = filepath.ToSlash(filepath.Dir(rel))
	}
	for _, part := range strings.Split(dir, "/") {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}

// isDirLike treats anything without a .md extension as a directory path.
func isDirLike(p string) bool {
	return !strings.EqualFold(filepath.Ext(p), ".md")
}

// IsShadowed reports whether dir lies strictly inside an aggregation directory.
func (f Filter) IsShadowed(dir string) bool {
	for _, agg := range f.Aggregate {
		if paths.IsStrictlyWithin(agg, dir) {
			return true
		}
	}
	return false
}

// WalkResult describes one markdown file found by a walk.
type WalkResult struct {
	Path         string
	RelativePath string
	Dir          string
	ModTime      time.Time
	Error        error
}

// WalkMarkdownFiles walks every non-excluded markdown file below the filter
// root in lexical order and calls handler for each. Unreadable entries are
// reported through WalkResult.Error; a handler error stops the walk.
func WalkMarkdownFiles(f Filter, handler func(result WalkResult) error) error {
	err := filepath.WalkDir(f.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return handler(WalkResult{Path: path, RelativePath: paths.Rel(f.Root, path), Error: err})
		}

		if d.IsDir() {
			if path != f.Root && f.IsExcluded(path) {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(strings.ToLower(path), ".md") || f.IsExcluded(path) {
			return nil
		}

		norm := paths.Normalize(path)
		result := WalkResult{
			Path:         norm,
			RelativePath: paths.Rel(f.Root, norm),
			Dir:          filepath.Dir(norm),
		}
		info, err := d.Info()
		if err != nil {
			result.Error = err
			return handler(result)
		}
		result.ModTime = info.ModTime()
		return handler(result)
	})
	if errors.Is(err, filepath.SkipAll) {
		return nil
	}
	return err
}
