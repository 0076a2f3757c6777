package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aidanlsb/dailysync/internal/daemon"
	"github.com/aidanlsb/dailysync/internal/dates"
	"github.com/aidanlsb/dailysync/internal/journal"
	"github.com/aidanlsb/dailysync/internal/testutil"
)

// execute runs the root command with args and returns what it wrote.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = nil

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag in the command tree to its default so
// package-level flag variables do not leak between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func decode(t *testing.T, out string, data interface{}) Response {
	t.Helper()
	var resp Response
	if data != nil {
		resp.Data = data
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	return resp
}

type cliVault struct {
	v      *testutil.TestVault
	config string
	today  string
}

func newCLIVault(t *testing.T) *cliVault {
	t.Helper()
	today := dates.Format(time.Now())
	v := testutil.NewTestVault(t).
		WithProject("ProjA", "ProjA", "\n# Tasks\n\n## [["+today+"]]\n\n- [ ] Buy milk\n\n----------\n").
		Build()
	config := filepath.Join(t.TempDir(), "config.toml")
	testutil.WriteAbs(t, config, fmt.Sprintf("vault = %q\nlookback_days = 0\n\n[log]\nlevel = \"error\"\n", v.Path))
	return &cliVault{v: v, config: config, today: today}
}

func TestOnceStatusShowHistory(t *testing.T) {
	cv := newCLIVault(t)

	out, err := execute(t, "once", "--config", cv.config, "--json")
	if err != nil {
		t.Fatalf("once: %v", err)
	}
	var rep map[string]interface{}
	if resp := decode(t, out, &rep); !resp.OK {
		t.Fatalf("once failed: %s", out)
	}
	if fmt.Sprint(rep["processed"]) != "["+cv.today+"]" {
		t.Fatalf("processed = %v, want [%s]", rep["processed"], cv.today)
	}
	cv.v.AssertFileContains(filepath.Join(testutil.DailyDir, cv.today+".md"), "Buy milk")

	out, err = execute(t, "status", "--config", cv.config, "--json", "--date", cv.today)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var tasks []trackedTask
	decode(t, out, &tasks)
	if len(tasks) != 1 || tasks[0].Source != "ProjA/ProjA.md" {
		t.Fatalf("tracked tasks = %+v", tasks)
	}
	id := tasks[0].ID

	out, err = execute(t, "show", id, "--raw", "--config", cv.config)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "Buy milk") || !strings.Contains(out, "^"+id) {
		t.Fatalf("show output:\n%s", out)
	}

	out, err = execute(t, "history", "--config", cv.config, "--json", "--action", "append")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var events []journal.Event
	decode(t, out, &events)
	if len(events) != 1 || events[0].BlockID != id || events[0].Date != cv.today {
		t.Fatalf("append events = %+v", events)
	}

	out, err = execute(t, "once", "--config", cv.config)
	if err != nil {
		t.Fatalf("second once: %v", err)
	}
	if !strings.Contains(out, "0 writes") || !strings.Contains(out, "Nothing to reconcile.") {
		t.Fatalf("second pass should be quiet:\n%s", out)
	}
}

func TestShowUnknownID(t *testing.T) {
	cv := newCLIVault(t)
	out, err := execute(t, "show", "zzzzzz", "--config", cv.config, "--json")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	resp := decode(t, out, nil)
	if resp.OK || resp.Error == nil || resp.Error.Code != ErrCodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %s", out)
	}
}

func TestOnceRefusesWhileLocked(t *testing.T) {
	cv := newCLIVault(t)
	lock := daemon.NewLock(filepath.Join(cv.v.Path, testutil.DailyDir, ".dailysync.lock"), nil)
	if err := lock.TryAcquire(); err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	out, err := execute(t, "once", "--config", cv.config, "--json")
	if err != nil {
		t.Fatalf("once: %v", err)
	}
	resp := decode(t, out, nil)
	if resp.OK || resp.Error == nil || resp.Error.Code != ErrCodeLocked {
		t.Fatalf("expected LOCKED, got %s", out)
	}
	if cv.v.FileExists(filepath.Join(testutil.DailyDir, cv.today+".md")) {
		t.Fatal("once wrote the vault while locked")
	}
}

func TestProjects(t *testing.T) {
	cv := newCLIVault(t)
	out, err := execute(t, "projects", "--config", cv.config, "--json")
	if err != nil {
		t.Fatalf("projects: %v", err)
	}
	var projects []projectInfo
	decode(t, out, &projects)
	if len(projects) != 1 || projects[0].Name != "ProjA" || projects[0].Main != "ProjA/ProjA.md" {
		t.Fatalf("projects = %+v", projects)
	}
}

func TestVaultPathFlagOverridesConfig(t *testing.T) {
	cv := newCLIVault(t)
	other := testutil.NewTestVault(t).Build()

	out, err := execute(t, "projects", "--config", cv.config, "--vault-path", other.Path, "--json")
	if err != nil {
		t.Fatalf("projects: %v", err)
	}
	var projects []projectInfo
	decode(t, out, &projects)
	if len(projects) != 0 {
		t.Fatalf("expected the empty vault, got %+v", projects)
	}
}

func TestMissingVaultIsReported(t *testing.T) {
	config := filepath.Join(t.TempDir(), "config.toml")
	testutil.WriteAbs(t, config, "lookback_days = 1\n")

	_, err := execute(t, "status", "--config", config)
	if err == nil || !strings.Contains(err.Error(), "no vault configured") {
		t.Fatalf("expected missing vault error, got %v", err)
	}
}

func TestConfigInitAndPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dailysync", "config.toml")

	out, err := execute(t, "config", "init", "--config", path, "--vault", "/notes")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "wrote") {
		t.Fatalf("unexpected output: %s", out)
	}

	out, err = execute(t, "config", "init", "--config", path, "--json")
	if err != nil {
		t.Fatal(err)
	}
	var data map[string]interface{}
	decode(t, out, &data)
	if data["created"] != false {
		t.Fatalf("second init should not create: %s", out)
	}

	out, err = execute(t, "config", "path", "--config", path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != path {
		t.Fatalf("config path = %q, want %q", out, path)
	}
}
