package project

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/aidanlsb/dailysync/internal/testutil"
	"github.com/aidanlsb/dailysync/internal/vault"
)

func TestSelectMain(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		cands []Candidate
		want  string
	}{
		{
			name: "most recent wins",
			cands: []Candidate{
				{Path: "/v/p/Old.md", ModTime: base},
				{Path: "/v/p/New.md", ModTime: base.Add(time.Hour)},
			},
			want: "/v/p/New.md",
		},
		{
			name: "tie broken by name",
			cands: []Candidate{
				{Path: "/v/p/Zeta.md", ModTime: base},
				{Path: "/v/p/Alpha.md", ModTime: base},
			},
			want: "/v/p/Alpha.md",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectMain(tt.cands)
			if !ok {
				t.Fatal("expected a winner")
			}
			if got.Path != tt.want {
				t.Fatalf("SelectMain = %q, want %q", got.Path, tt.want)
			}
		})
	}

	if _, ok := SelectMain(nil); ok {
		t.Fatal("expected no winner for empty input")
	}
}

func TestScan(t *testing.T) {
	v := testutil.NewTestVault(t).
		WithProject("Work/Alpha", "Alpha", "# Tasks\n\n----------\n").
		WithProject("Work/Alpha", "AlphaDraft", "").
		WithFile("Work/Alpha/notes/Meeting.md", "plain note\n").
		WithProject("Areas", "Areas", "").
		WithProject("Areas/Health", "Health", "").
		WithFile("Loose/Idea.md", "---\ntags: [idea]\n---\n").
		WithProject(".trash", "Gone", "").
		WithProject("Archive/Old", "Old", "").
		Build()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	v.SetModTime("Work/Alpha/Alpha.md", base.Add(time.Hour))
	v.SetModTime("Work/Alpha/AlphaDraft.md", base)

	filter := vault.NewFilter(v.Path, []string{"Archive", testutil.DailyDir}, []string{"Areas"})
	m, errs := Scan(filter, vault.NewFiles(nil, nil, nil))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	var names []string
	for _, p := range m.Projects() {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"Alpha", "Areas"}, names); diff != "" {
		t.Fatalf("projects mismatch (-want +got):\n%s", diff)
	}

	owner, err := m.Owner(v.Abs("Work/Alpha/notes/Meeting.md"))
	if err != nil || owner.Name != "Alpha" {
		t.Fatalf("Owner(Meeting) = %+v, %v; want Alpha", owner, err)
	}

	owner, err = m.Owner(v.Abs("Areas/Health/Health.md"))
	if err != nil || owner.Name != "Areas" {
		t.Fatalf("Owner(Health) = %+v, %v; want Areas (aggregated)", owner, err)
	}

	if _, err := m.Owner(v.Abs("Loose/Idea.md")); !errors.Is(err, ErrNoProject) {
		t.Fatalf("Owner(Idea) err = %v, want ErrNoProject", err)
	}

	if _, ok := m.ResolveStem("Old"); ok {
		t.Fatal("excluded file should not resolve")
	}
	if _, ok := m.ResolveStem("Gone"); ok {
		t.Fatal("hidden file should not resolve")
	}
}

func TestScanReportsMalformedFrontmatter(t *testing.T) {
	v := testutil.NewTestVault(t).
		WithFile("P/P.md", "---\ntags: [main\n---\n").
		Build()

	m, errs := Scan(vault.NewFilter(v.Path, nil, nil), vault.NewFiles(nil, nil, nil))
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if len(m.Projects()) != 0 {
		t.Fatalf("expected no projects, got %+v", m.Projects())
	}
}

func TestNearestStopsAtRoot(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Dir(root)
	m := NewMap(root, []Project{
		{Name: "Top", Dir: root, Path: filepath.Join(root, "Top.md")},
	}, nil)

	p, err := m.Nearest(filepath.Join(root, "a", "b", "c"))
	if err != nil || p.Name != "Top" {
		t.Fatalf("Nearest = %+v, %v; want Top", p, err)
	}

	if _, err := m.Nearest(outside); !errors.Is(err, ErrNoProject) {
		t.Fatalf("Nearest(outside) err = %v, want ErrNoProject", err)
	}
}

func TestResolveStem(t *testing.T) {
	root := t.TempDir()
	m := NewMap(root, nil, map[string]string{
		"Project Alpha": filepath.Join(root, "Project Alpha.md"),
		"Notes":         filepath.Join(root, "Notes.md"),
		"notes!":        filepath.Join(root, "sub", "notes!.md"),
	})

	tests := []struct {
		stem   string
		want   string
		wantOK bool
	}{
		{stem: "Project Alpha", want: filepath.Join(root, "Project Alpha.md"), wantOK: true},
		{stem: "project-alpha", want: filepath.Join(root, "Project Alpha.md"), wantOK: true},
		{stem: "Notes", want: filepath.Join(root, "Notes.md"), wantOK: true},
		// Two files slugify to "notes": ambiguous.
		{stem: "NOTES", wantOK: false},
		{stem: "Missing", wantOK: false},
		{stem: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.stem, func(t *testing.T) {
			got, ok := m.ResolveStem(tt.stem)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Fatalf("ResolveStem = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDuplicateNamesPreferLexicalDir(t *testing.T) {
	root := t.TempDir()
	m := NewMap(root, []Project{
		{Name: "Inbox", Dir: filepath.Join(root, "b"), Path: filepath.Join(root, "b", "Inbox.md")},
		{Name: "Inbox", Dir: filepath.Join(root, "a"), Path: filepath.Join(root, "a", "Inbox.md")},
	}, nil)

	p, ok := m.ByName("Inbox")
	if !ok || p.Dir != filepath.Join(root, "a") {
		t.Fatalf("ByName = %+v, %v; want dir a", p, ok)
	}
	if got, ok := m.ForDir(filepath.Join(root, "b")); !ok || got.Path != filepath.Join(root, "b", "Inbox.md") {
		t.Fatalf("ForDir(b) = %+v, %v", got, ok)
	}
}
