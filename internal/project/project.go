// Package project discovers project main files and resolves which project a
// path or wiki-link belongs to.
//
// A directory is a project when it directly contains at least one markdown
// file whose front matter carries the "main" tag. Directories strictly inside
// an aggregation directory never register; their files belong to the nearest
// registered ancestor.
package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/aidanlsb/dailysync/internal/parser"
	"github.com/aidanlsb/dailysync/internal/paths"
	"github.com/aidanlsb/dailysync/internal/slugs"
	"github.com/aidanlsb/dailysync/internal/vault"
)

// MainTag marks a project's main file.
const MainTag = "main"

// ErrNoProject is returned when no registered project owns a path.
var ErrNoProject = errors.New("no project")

// Project is one registered project.
type Project struct {
	Name    string
	Dir     string
	Path    string
	ModTime time.Time
}

// Candidate is a main-tagged file competing to be its directory's project.
type Candidate struct {
	Path    string
	ModTime time.Time
}

// Reader reads file content.
type Reader interface {
	Read(path string) (string, error)
}

// Map is the result of one discovery pass.
type Map struct {
	Root     string
	byDir    map[string]Project
	byName   map[string]Project
	files    map[string]string
	projects []Project
}

// SelectMain picks the winning candidate: most recently modified first, then
// file name ascending. ok is false for an empty slice.
func SelectMain(cands []Candidate) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	sorted := append([]Candidate(nil), cands...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ModTime.Equal(sorted[j].ModTime) {
			return sorted[i].ModTime.After(sorted[j].ModTime)
		}
		return filepath.Base(sorted[i].Path) < filepath.Base(sorted[j].Path)
	})
	return sorted[0], true
}

// Scan walks the vault and builds the project map. Files that cannot be read
// or whose front matter is malformed are skipped and reported in errs.
func Scan(f vault.Filter, r Reader) (*Map, []error) {
	var errs []error
	files := make(map[string]string)
	candidates := make(map[string][]Candidate)

	walkErr := vault.WalkMarkdownFiles(f, func(res vault.WalkResult) error {
		if res.Error != nil {
			errs = append(errs, fmt.Errorf("walk %s: %w", res.RelativePath, res.Error))
			return nil
		}
		stem := paths.Stem(res.Path)
		if _, dup := files[stem]; !dup {
			files[stem] = res.Path
		}

		content, err := r.Read(res.Path)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		fm, err := parser.ParseFrontmatter(content)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.RelativePath, err))
			return nil
		}
		if fm.HasTag(MainTag) {
			candidates[res.Dir] = append(candidates[res.Dir], Candidate{Path: res.Path, ModTime: res.ModTime})
		}
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}

	m := &Map{
		Root:   f.Root,
		byDir:  make(map[string]Project),
		byName: make(map[string]Project),
		files:  files,
	}
	for dir, cands := range candidates {
		if f.IsShadowed(dir) {
			continue
		}
		winner, _ := SelectMain(cands)
		m.add(Project{Name: paths.Stem(winner.Path), Dir: dir, Path: winner.Path, ModTime: winner.ModTime})
	}
	return m, errs
}

// NewMap builds a map from known projects and files. Scan is the usual
// constructor; this one serves callers that already hold the data.
func NewMap(root string, projects []Project, files map[string]string) *Map {
	m := &Map{
		Root:   paths.Normalize(root),
		byDir:  make(map[string]Project),
		byName: make(map[string]Project),
		files:  make(map[string]string),
	}
	for stem, p := range files {
		m.files[norm.NFC.String(stem)] = paths.Normalize(p)
	}
	for _, p := range projects {
		p.Dir = paths.Normalize(p.Dir)
		p.Path = paths.Normalize(p.Path)
		if _, ok := m.files[p.Name]; !ok {
			m.files[p.Name] = p.Path
		}
		m.add(p)
	}
	return m
}

func (m *Map) add(p Project) {
	m.byDir[p.Dir] = p
	// Identically named main files in two directories: the lexically first
	// directory owns the name.
	if existing, ok := m.byName[p.Name]; !ok || p.Dir < existing.Dir {
		m.byName[p.Name] = p
	}
	m.projects = nil
}

// Projects returns the registered projects sorted by name, then directory.
func (m *Map) Projects() []Project {
	if m.projects == nil {
		for _, p := range m.byDir {
			m.projects = append(m.projects, p)
		}
		sort.Slice(m.projects, func(i, j int) bool {
			if m.projects[i].Name != m.projects[j].Name {
				return m.projects[i].Name < m.projects[j].Name
			}
			return m.projects[i].Dir < m.projects[j].Dir
		})
	}
	return m.projects
}

// ByName returns the project registered under name.
func (m *Map) ByName(name string) (Project, bool) {
	p, ok := m.byName[norm.NFC.String(strings.TrimSpace(name))]
	return p, ok
}

// ForDir returns the project registered for exactly dir.
func (m *Map) ForDir(dir string) (Project, bool) {
	p, ok := m.byDir[paths.Normalize(dir)]
	return p, ok
}

// Nearest walks from dir up to the vault root and returns the first
// registered project.
func (m *Map) Nearest(dir string) (Project, error) {
	cur := paths.Normalize(dir)
	for paths.IsWithin(m.Root, cur) {
		if p, ok := m.byDir[cur]; ok {
			return p, nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent
	}
	return Project{}, ErrNoProject
}

// Owner returns the project owning the file at path.
func (m *Map) Owner(path string) (Project, error) {
	return m.Nearest(filepath.Dir(paths.Normalize(path)))
}

// ResolveStem resolves a wiki-link target to a file path: an exact
// NFC-normalized stem first, then a unique slug match.
func (m *Map) ResolveStem(stem string) (string, bool) {
	stem = norm.NFC.String(strings.TrimSpace(stem))
	if stem == "" {
		return "", false
	}
	if strings.Contains(stem, "/") {
		stem = paths.Stem(stem)
	}
	if p, ok := m.files[stem]; ok {
		return p, true
	}
	want := slugs.Stem(stem)
	if want == "" {
		return "", false
	}
	var keys []string
	for k := range m.files {
		if slugs.Stem(k) == want {
			keys = append(keys, k)
		}
	}
	if len(keys) != 1 {
		return "", false
	}
	return m.files[keys[0]], true
}

// FileCount returns the number of markdown files seen by the scan.
func (m *Map) FileCount() int {
	return len(m.files)
}
