package reconcile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/aidanlsb/dailysync/internal/atomicfile"
	"github.com/aidanlsb/dailysync/internal/journal"
	"github.com/aidanlsb/dailysync/internal/logging"
	"github.com/aidanlsb/dailysync/internal/state"
	"github.com/aidanlsb/dailysync/internal/taskline"
	"github.com/aidanlsb/dailysync/internal/testutil"
	"github.com/aidanlsb/dailysync/internal/vault"
)

const testDate = "2024-05-01"

var dailyRel = filepath.Join(testutil.DailyDir, testDate+".md")

type harness struct {
	v     *testutil.TestVault
	st    *state.Store
	eng   *Engine
	j     *journal.Journal
	files *vault.Files
}

func newHarness(t *testing.T, v *testutil.TestVault, configure func(*Options)) *harness {
	t.Helper()
	logger := logging.Discard()
	st := state.Load(filepath.Join(v.Path, testutil.DailyDir, ".sync_state.json"), logger, nil)

	j, err := journal.OpenInMemory()
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { j.Close() })

	opts := DefaultOptions(v.Path)
	opts.LookbackDays = 0
	if configure != nil {
		configure(&opts)
	}
	files := vault.NewFiles(nil, nil, logger)
	eng := New(opts, files, st, j, logger)
	eng.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.Local) }
	t.Cleanup(eng.Close)
	return &harness{v: v, st: st, eng: eng, j: j, files: files}
}

// failWrites makes every write to rel fail until the returned func is called.
func (h *harness) failWrites(rel string) (restore func()) {
	target := h.v.Abs(rel)
	h.files.WriteFile = func(path string, data []byte, perm os.FileMode) (bool, error) {
		if path == target {
			return false, errors.New("read-only file system")
		}
		return atomicfile.WriteIfChanged(path, data, perm)
	}
	return func() { h.files.WriteFile = nil }
}

// assertConverged fails unless another pass leaves the vault untouched.
func (h *harness) assertConverged(t *testing.T) {
	t.Helper()
	if again := h.sync(t); again.Writes != 0 || again.Total() != 0 {
		t.Fatalf("second pass: writes=%d actions=%v, want none", again.Writes, again.Actions)
	}
}

func (h *harness) sync(t *testing.T) *Report {
	t.Helper()
	rep, err := h.eng.Sync(context.Background(), nil)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(rep.Errors) > 0 {
		t.Fatalf("Sync reported errors: %v", rep.Errors)
	}
	return rep
}

// track records a task as last seen with the given status and text.
func (h *harness) track(id, status, text, rel string) {
	h.st.Update(id, taskline.Fingerprint(status, text, nil), h.v.Abs(rel), testDate)
}

func tasksBody(tasks ...string) string {
	if len(tasks) == 0 {
		return "\n# Tasks\n\n----------\n"
	}
	return "\n# Tasks\n\n## [[" + testDate + "]]\n\n" + strings.Join(tasks, "\n") + "\n\n----------\n"
}

func dailyNoteText(journey ...string) string {
	s := "# Day planner\n\n# Journey\n\n"
	if len(journey) > 0 {
		s += strings.Join(journey, "\n") + "\n"
	}
	return s
}

func onlyID(t *testing.T, st *state.Store) string {
	t.Helper()
	ids := st.IDs()
	if len(ids) != 1 {
		t.Fatalf("expected exactly one tracked id, got %v", ids)
	}
	return ids[0]
}

const projA = "ProjA/ProjA.md"

func TestSyncConvergedVaultWritesNothing(t *testing.T) {
	source := testutil.MainFrontmatter() + tasksBody("- [ ] [["+testDate+"#^abc123|⮐]] Buy milk ^abc123")
	daily := dailyNoteText("## [[ProjA]]", "- [ ] [[ProjA#^abc123|⮐]] Buy milk ^abc123")
	v := testutil.NewTestVault(t).
		WithFile(projA, source).
		WithDaily(testDate, daily).
		Build()
	h := newHarness(t, v, nil)
	h.track("abc123", " ", "Buy milk", projA)
	before := h.st.Hash("abc123")

	rep := h.sync(t)

	if rep.Writes != 0 {
		t.Fatalf("Writes = %d, want 0", rep.Writes)
	}
	if rep.Total() != 0 {
		t.Fatalf("actions = %v, want none", rep.Actions)
	}
	v.AssertFileEquals(projA, source)
	v.AssertFileEquals(dailyRel, daily)
	if got := h.st.Hash("abc123"); got != before {
		t.Fatalf("hash changed: %s -> %s", before, got)
	}
	if diff := cmp.Diff([]string{testDate}, rep.Processed); diff != "" {
		t.Fatalf("processed dates mismatch (-want +got):\n%s", diff)
	}
}

func TestSyncDailyStatusFlipUpdatesSource(t *testing.T) {
	daily := dailyNoteText("## [[ProjA]]", "- [x] [[ProjA#^abc123|⮐]] Buy milk ^abc123")
	v := testutil.NewTestVault(t).
		WithFile(projA, testutil.MainFrontmatter()+tasksBody("- [ ] [["+testDate+"#^abc123|⮐]] Buy milk ^abc123")).
		WithDaily(testDate, daily).
		Build()
	h := newHarness(t, v, nil)
	h.track("abc123", " ", "Buy milk", projA)

	rep := h.sync(t)

	v.AssertFileEquals(projA, testutil.MainFrontmatter()+tasksBody("- [x] [["+testDate+"#^abc123|⮐]] Buy milk ^abc123"))
	v.AssertFileEquals(dailyRel, daily)
	if rep.Actions[journal.ActionSyncToSource] != 1 {
		t.Fatalf("actions = %v, want one sync_d2s", rep.Actions)
	}
	if got, want := h.st.Hash("abc123"), taskline.Fingerprint("x", "Buy milk", nil); got != want {
		t.Fatalf("stored hash = %s, want %s", got, want)
	}

	if again := h.sync(t); again.Writes != 0 {
		t.Fatalf("second pass wrote %d files, want 0", again.Writes)
	}
}

func TestSyncSourceChangeUpdatesDaily(t *testing.T) {
	v := testutil.NewTestVault(t).
		WithFile(projA, testutil.MainFrontmatter()+tasksBody("- [x] [["+testDate+"#^abc123|⮐]] Buy milk ^abc123")).
		WithDaily(testDate, dailyNoteText("## [[ProjA]]", "- [ ] [[ProjA#^abc123|⮐]] Buy milk ^abc123", "\t- two litres")).
		Build()
	h := newHarness(t, v, nil)
	h.st.Update("abc123", taskline.Fingerprint(" ", "Buy milk", []string{"\t- two litres"}), v.Abs(projA), testDate)

	rep := h.sync(t)

	// The source has no children, so the daily copy loses its child line.
	v.AssertFileEquals(dailyRel, dailyNoteText("## [[ProjA]]", "- [x] [[ProjA#^abc123|⮐]] [[ProjA]] Buy milk ^abc123"))
	if rep.Actions[journal.ActionSyncToDaily] != 1 {
		t.Fatalf("actions = %v, want one sync_s2d", rep.Actions)
	}
	if again := h.sync(t); again.Writes != 0 {
		t.Fatalf("second pass wrote %d files, want 0", again.Writes)
	}
}

func TestSyncRegistersNewTask(t *testing.T) {
	v := testutil.NewTestVault(t).
		WithFile(projA, testutil.MainFrontmatter()+tasksBody()).
		WithDaily(testDate, dailyNoteText("## [[ProjA]]", "- [ ] Call dentist")).
		Build()
	h := newHarness(t, v, nil)

	rep := h.sync(t)

	id := onlyID(t, h.st)
	v.AssertFileEquals(dailyRel, dailyNoteText("## [[ProjA]]", "- [ ] [[ProjA#^"+id+"|⮐]] Call dentist ^"+id))
	v.AssertFileEquals(projA, testutil.MainFrontmatter()+tasksBody("- [ ] [["+testDate+"#^"+id+"|⮐]] Call dentist ^"+id))
	if rep.Actions[journal.ActionRegister] != 1 {
		t.Fatalf("actions = %v, want one register", rep.Actions)
	}

	events, err := h.j.Recent(context.Background(), journal.Filter{Actions: []journal.Action{journal.ActionRegister}})
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 1 || events[0].BlockID != id || events[0].Path != projA {
		t.Fatalf("journal events = %+v", events)
	}

	h.assertConverged(t)
}

func TestSyncConflictDailyWins(t *testing.T) {
	v := testutil.NewTestVault(t).
		WithFile(projA, testutil.MainFrontmatter()+tasksBody("- [ ] [["+testDate+"#^abc123|⮐]] Buy oat milk ^abc123")).
		WithDaily(testDate, dailyNoteText("## [[ProjA]]", "- [ ] [[ProjA#^abc123|⮐]] Buy whole milk ^abc123")).
		Build()
	h := newHarness(t, v, nil)
	h.track("abc123", " ", "Buy milk", projA)

	rep := h.sync(t)

	v.AssertFileEquals(projA, testutil.MainFrontmatter()+tasksBody("- [ ] [["+testDate+"#^abc123|⮐]] Buy whole milk ^abc123"))
	v.AssertFileContains(dailyRel, "Buy whole milk")
	if rep.Actions[journal.ActionConflict] != 1 {
		t.Fatalf("actions = %v, want one conflict", rep.Actions)
	}
}

func TestSyncRescuesLostBlockID(t *testing.T) {
	v := testutil.NewTestVault(t).
		WithFile(projA, testutil.MainFrontmatter()+tasksBody("- [ ] Buy milk")).
		WithDaily(testDate, dailyNoteText("## [[ProjA]]", "- [ ] [[ProjA#^abc123|⮐]] Buy milk ^abc123")).
		Build()
	h := newHarness(t, v, nil)
	h.track("abc123", " ", "Buy milk", projA)

	rep := h.sync(t)

	v.AssertFileEquals(projA, testutil.MainFrontmatter()+tasksBody("- [ ] [["+testDate+"#^abc123|⮐]] Buy milk ^abc123"))
	if rep.Actions[journal.ActionRescue] != 1 || rep.Actions[journal.ActionMint] != 0 {
		t.Fatalf("actions = %v, want one rescue and no mint", rep.Actions)
	}
	if h.st.Len() != 1 {
		t.Fatalf("state holds %v, want only abc123", h.st.IDs())
	}
}

func TestSyncCreatesDailyNoteAndAppends(t *testing.T) {
	v := testutil.NewTestVault(t).
		WithFile(projA, testutil.MainFrontmatter()+tasksBody("- [ ] [["+testDate+"#^def456|⮐]] Water plants ^def456")).
		Build()
	h := newHarness(t, v, nil)

	rep := h.sync(t)

	want := "# Day planner\n\n# Journey\n\n## [[ProjA]]\n- [ ] [[ProjA#^def456|⮐]] [[ProjA]] Water plants ^def456\n\n"
	v.AssertFileEquals(dailyRel, want)
	if rep.Actions[journal.ActionAppend] != 1 {
		t.Fatalf("actions = %v, want one append", rep.Actions)
	}
	if got := h.st.Date("def456"); got != testDate {
		t.Fatalf("stored date = %q, want %q", got, testDate)
	}

	h.assertConverged(t)
}

func TestSyncCreatesDailyNoteFromTemplate(t *testing.T) {
	tmpl := "# Day planner\n\n# Journey\n\n# Notes\n{{weekday}} \\{{mood\\}}\n"
	v := testutil.NewTestVault(t).
		WithFile("templates/daily.md", tmpl).
		WithFile(projA, testutil.MainFrontmatter()+tasksBody("- [ ] [["+testDate+"#^def456|⮐]] Water plants ^def456")).
		Build()
	h := newHarness(t, v, func(o *Options) { o.TemplateFile = "templates/daily.md" })

	h.sync(t)

	want := "# Day planner\n\n# Journey\n\n## [[ProjA]]\n- [ ] [[ProjA#^def456|⮐]] [[ProjA]] Water plants ^def456\n\n# Notes\nWednesday {{mood}}\n"
	v.AssertFileEquals(dailyRel, want)
}

func TestSyncDeletesDailyTaskRemovedFromSource(t *testing.T) {
	v := testutil.NewTestVault(t).
		WithFile(projA, testutil.MainFrontmatter()+tasksBody()).
		WithDaily(testDate, dailyNoteText("## [[ProjA]]", "- [ ] [[ProjA#^gone01|⮐]] Old task ^gone01")).
		Build()
	h := newHarness(t, v, nil)
	h.track("gone01", " ", "Old task", projA)

	rep := h.sync(t)

	v.AssertFileEquals(dailyRel, dailyNoteText())
	if h.st.Has("gone01") {
		t.Fatal("gone01 should be dropped from state")
	}
	if rep.Actions[journal.ActionDeleteDaily] != 1 {
		t.Fatalf("actions = %v, want one delete_daily", rep.Actions)
	}
}

func TestSyncDeletesSourceTaskRemovedFromDaily(t *testing.T) {
	v := testutil.NewTestVault(t).
		WithFile(projA, testutil.MainFrontmatter()+tasksBody("- [ ] [["+testDate+"#^abc123|⮐]] Buy milk ^abc123")).
		WithDaily(testDate, dailyNoteText()).
		Build()
	h := newHarness(t, v, nil)
	h.track("abc123", " ", "Buy milk", projA)

	rep := h.sync(t)

	v.AssertFileEquals(projA, testutil.MainFrontmatter()+tasksBody())
	if h.st.Has("abc123") {
		t.Fatal("abc123 should be dropped from state")
	}
	if rep.Actions[journal.ActionDeleteSource] != 1 {
		t.Fatalf("actions = %v, want one delete_source", rep.Actions)
	}
}

func TestSyncAppendSkipsTaskNamingAnotherDate(t *testing.T) {
	// An inline date link disagreeing with the header keeps the task off this
	// day's note.
	v := testutil.NewTestVault(t).
		WithFile(projA, testutil.MainFrontmatter()+tasksBody("- [ ] Pay rent [[2024-04-30]] ^rent01")).
		WithDaily(testDate, dailyNoteText()).
		Build()
	h := newHarness(t, v, nil)

	rep := h.sync(t)

	v.AssertFileEquals(dailyRel, dailyNoteText())
	if rep.Actions[journal.ActionAppend] != 0 {
		t.Fatalf("actions = %v, want no append", rep.Actions)
	}
}

func TestSyncGraduatesDailyNativeTask(t *testing.T) {
	daily := dailyNoteText("## [[ProjA]]", "- [ ] [[ProjA#^new001|⮐]] Fresh idea ^new001")
	v := testutil.NewTestVault(t).
		WithFile(projA, testutil.MainFrontmatter()+tasksBody()).
		WithDaily(testDate, daily).
		Build()
	h := newHarness(t, v, nil)

	rep := h.sync(t)

	v.AssertFileEquals(projA, testutil.MainFrontmatter()+tasksBody("- [ ] [["+testDate+"#^new001|⮐]] Fresh idea ^new001"))
	v.AssertFileEquals(dailyRel, daily)
	if rep.Actions[journal.ActionGraduate] != 1 {
		t.Fatalf("actions = %v, want one graduate", rep.Actions)
	}
	h.assertConverged(t)
}

func TestSyncDispatchesToNearestProject(t *testing.T) {
	v := testutil.NewTestVault(t).
		WithProject("Books/Novel", "Novel", "").
		WithFile("Books/Novel/Chapter 1.md", "Notes about chapter one\n").
		WithDaily(testDate, "# Day planner\n- [ ] Draft outline [[Chapter 1]]\n\n# Journey\n\n").
		Build()
	h := newHarness(t, v, nil)

	rep := h.sync(t)

	id := onlyID(t, h.st)
	v.AssertFileEquals(dailyRel, dailyNoteText("## [[Novel]]", "- [ ] [[Novel#^"+id+"|⮐]] Draft outline [[Chapter 1]] ^"+id, ""))
	v.AssertFileEquals("Books/Novel/Chapter 1.md",
		"\n# Tasks\n\n## [["+testDate+"]]\n\n- [ ] [["+testDate+"#^"+id+"|⮐]] Draft outline ^"+id+"\n\n----------\nNotes about chapter one\n")
	if rep.Actions[journal.ActionDispatch] != 1 || rep.Actions[journal.ActionGraduate] != 1 {
		t.Fatalf("actions = %v, want one dispatch and one graduate", rep.Actions)
	}

	h.assertConverged(t)
}

func TestSyncCorrectsWrongProjectGroup(t *testing.T) {
	v := testutil.NewTestVault(t).
		WithProject("ProjA", "ProjA", tasksBody()).
		WithProject("ProjB", "ProjB", tasksBody()).
		WithDaily(testDate, dailyNoteText("## [[ProjA]]", "- [ ] Book venue [[ProjB]]")).
		Build()
	h := newHarness(t, v, nil)

	h.sync(t)

	id := onlyID(t, h.st)
	v.AssertFileEquals(dailyRel, dailyNoteText("## [[ProjB]]", "- [ ] [[ProjB#^"+id+"|⮐]] [[ProjB]] Book venue ^"+id))
	v.AssertFileContains("ProjB/ProjB.md", "Book venue ^"+id)
	v.AssertFileNotContains("ProjA/ProjA.md", id)
	h.assertConverged(t)
}

func TestSyncStartDateGatesOlderDates(t *testing.T) {
	source := testutil.MainFrontmatter() + tasksBody("- [ ] [["+testDate+"#^abc123|⮐]] Buy milk ^abc123")
	v := testutil.NewTestVault(t).
		WithFile(projA, source).
		Build()
	h := newHarness(t, v, func(o *Options) { o.SyncStartDate = "2024-05-02" })

	rep := h.sync(t)

	if rep.Writes != 0 || len(rep.Processed) != 0 {
		t.Fatalf("writes=%d processed=%v, want nothing", rep.Writes, rep.Processed)
	}
	v.AssertFileNotExists(dailyRel)
	v.AssertFileEquals(projA, source)
}

func TestSyncGateSkipsDate(t *testing.T) {
	daily := dailyNoteText("## [[ProjA]]", "- [x] [[ProjA#^abc123|⮐]] Buy milk ^abc123")
	source := testutil.MainFrontmatter() + tasksBody("- [ ] [["+testDate+"#^abc123|⮐]] Buy milk ^abc123")
	v := testutil.NewTestVault(t).
		WithFile(projA, source).
		WithDaily(testDate, daily).
		Build()
	h := newHarness(t, v, nil)
	h.track("abc123", " ", "Buy milk", projA)

	rep, err := h.eng.Sync(context.Background(), func(date, path string) bool { return false })
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if diff := cmp.Diff([]string{testDate}, rep.Skipped); diff != "" {
		t.Fatalf("skipped mismatch (-want +got):\n%s", diff)
	}
	v.AssertFileEquals(projA, source)
}

func TestSyncCancelled(t *testing.T) {
	v := testutil.NewTestVault(t).Build()
	h := newHarness(t, v, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.eng.Sync(ctx, nil); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestLocate(t *testing.T) {
	v := testutil.NewTestVault(t).
		WithFile(projA, testutil.MainFrontmatter()+tasksBody("- [ ] [["+testDate+"#^abc123|⮐]] Buy milk ^abc123", "\t- two litres")).
		Build()
	h := newHarness(t, v, nil)
	h.track("abc123", " ", "Buy milk", projA)

	path, block, err := h.eng.Locate("abc123")
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if path != v.Abs(projA) {
		t.Fatalf("path = %s, want %s", path, v.Abs(projA))
	}
	want := []string{"- [ ] [[" + testDate + "#^abc123|⮐]] Buy milk ^abc123", "\t- two litres"}
	if diff := cmp.Diff(want, block); diff != "" {
		t.Fatalf("block mismatch (-want +got):\n%s", diff)
	}

	if _, _, err := h.eng.Locate("zzzzzz"); err == nil {
		t.Fatal("expected error for untracked id")
	}
}

func TestSyncIgnoresTasksInCodeFences(t *testing.T) {
	source := testutil.MainFrontmatter() + tasksBody()
	daily := dailyNoteText("## [[ProjA]]", "```markdown", "- [ ] Example task", "```")
	v := testutil.NewTestVault(t).
		WithFile(projA, source).
		WithDaily(testDate, daily).
		Build()
	h := newHarness(t, v, nil)

	rep := h.sync(t)

	if ids := h.st.IDs(); len(ids) != 0 {
		t.Fatalf("fenced task was registered: %v", ids)
	}
	if rep.Actions[journal.ActionRegister] != 0 {
		t.Fatalf("actions = %v, want no registration", rep.Actions)
	}
	v.AssertFileEquals(projA, source)
	v.AssertFileEquals(dailyRel, daily)
}

func TestSyncFailedSourceWriteKeepsDailyEdit(t *testing.T) {
	daily := dailyNoteText("## [[ProjA]]", "- [x] [[ProjA#^abc123|⮐]] Buy milk ^abc123")
	source := testutil.MainFrontmatter() + tasksBody("- [ ] [["+testDate+"#^abc123|⮐]] Buy milk ^abc123")
	v := testutil.NewTestVault(t).
		WithFile(projA, source).
		WithDaily(testDate, daily).
		Build()
	h := newHarness(t, v, nil)
	h.track("abc123", " ", "Buy milk", projA)
	before := h.st.Hash("abc123")

	restore := h.failWrites(projA)
	rep, err := h.eng.Sync(context.Background(), nil)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(rep.Errors) == 0 {
		t.Fatal("expected the failed source write to be reported")
	}
	if rep.Total() != 0 {
		t.Fatalf("actions = %v, want none recorded for a failed write", rep.Actions)
	}
	if got := h.st.Hash("abc123"); got != before {
		t.Fatalf("hash advanced despite the failed write: %s -> %s", before, got)
	}
	reloaded := state.Load(filepath.Join(v.Path, testutil.DailyDir, ".sync_state.json"), logging.Discard(), nil)
	if got := reloaded.Hash("abc123"); got != before {
		t.Fatalf("persisted hash advanced despite the failed write: %s -> %s", before, got)
	}
	v.AssertFileEquals(projA, source)
	v.AssertFileEquals(dailyRel, daily)

	restore()
	rep = h.sync(t)

	if rep.Actions[journal.ActionSyncToSource] != 1 || rep.Actions[journal.ActionSyncToDaily] != 0 {
		t.Fatalf("actions = %v, want the daily completion pushed to the source", rep.Actions)
	}
	v.AssertFileEquals(dailyRel, daily)
	v.AssertFileEquals(projA, testutil.MainFrontmatter()+tasksBody("- [x] [["+testDate+"#^abc123|⮐]] Buy milk ^abc123"))
	h.assertConverged(t)
}

func TestSyncFailedDailyWriteDefersAppend(t *testing.T) {
	source := testutil.MainFrontmatter() + tasksBody("- [ ] [["+testDate+"#^def456|⮐]] Water plants ^def456")
	v := testutil.NewTestVault(t).
		WithFile(projA, source).
		WithDaily(testDate, dailyNoteText()).
		Build()
	h := newHarness(t, v, nil)

	restore := h.failWrites(dailyRel)
	rep, err := h.eng.Sync(context.Background(), nil)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(rep.Errors) == 0 {
		t.Fatal("expected the failed daily write to be reported")
	}
	if h.st.Has("def456") {
		t.Fatal("append must not be tracked before the daily note is written")
	}

	restore()
	rep = h.sync(t)

	if rep.Actions[journal.ActionAppend] != 1 {
		t.Fatalf("actions = %v, want one append", rep.Actions)
	}
	v.AssertFileContains(dailyRel, "Water plants ^def456")
	v.AssertFileEquals(projA, source)
	h.assertConverged(t)
}
