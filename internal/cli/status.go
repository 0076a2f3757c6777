package cli

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/dailysync/internal/daemon"
	"github.com/aidanlsb/dailysync/internal/journal"
	"github.com/aidanlsb/dailysync/internal/paths"
	"github.com/aidanlsb/dailysync/internal/state"
	"github.com/aidanlsb/dailysync/internal/ui"
)

var statusDate string

type dateSummary struct {
	Date    string `json:"date"`
	Tasks   int    `json:"tasks"`
	Sources int    `json:"sources"`
}

type trackedTask struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Summarize tracked tasks by date",
	Long: `Summarize the state store: how many tasks are tracked for each date and
how many project files they come from. With --date, list that date's tasks.
Also reports whether a daemon holds the lock and the last day's activity.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		c := getConfig()
		a, err := openApp(c, true)
		if err != nil {
			return err
		}
		defer a.Close()

		root := c.VaultRoot()
		entries := a.state.Entries()

		if statusDate != "" {
			tasks := tasksForDate(root, entries, statusDate)
			if isJSONOutput() {
				outputSuccess(out, tasks, &Meta{Count: len(tasks)})
				return nil
			}
			if len(tasks) == 0 {
				fmt.Fprintln(out, ui.Hint("No tasks tracked for "+statusDate+"."))
				return nil
			}
			tbl := ui.NewTable("ID", "SOURCE").StyleColumn(0, ui.Accent)
			for _, t := range tasks {
				tbl.AddRow(t.ID, t.Source)
			}
			fmt.Fprint(out, tbl.String())
			return nil
		}

		summaries := summarizeByDate(entries)
		holder := lockHolder(c.LockPath())
		var activity map[journal.Action]int
		if a.journal != nil {
			activity, err = a.journal.Counts(context.Background(), time.Now().Add(-24*time.Hour))
			if err != nil {
				a.logger.Warn("failed to read journal", "err", err)
			}
		}

		if isJSONOutput() {
			counts := make(map[string]int, len(activity))
			for k, v := range activity {
				counts[string(k)] = v
			}
			outputSuccess(out, map[string]interface{}{
				"state_path":   a.state.Path(),
				"state_origin": a.state.Origin().String(),
				"tracked":      a.state.Len(),
				"daemon_pid":   holder,
				"dates":        summaries,
				"last_24h":     counts,
			}, &Meta{Count: len(summaries)})
			return nil
		}

		fmt.Fprintf(out, "%s %s\n", ui.Header("State:"), ui.FilePath(paths.Rel(root, a.state.Path())))
		if a.state.Origin() == state.OriginBackup || a.state.Origin() == state.OriginReset {
			fmt.Fprintln(out, ui.Warningf("state loaded from %s", a.state.Origin()))
		}
		if holder > 0 {
			fmt.Fprintln(out, ui.Infof("daemon running (pid %d)", holder))
		} else {
			fmt.Fprintln(out, ui.Hint("daemon not running"))
		}
		fmt.Fprintf(out, "%s tracked\n\n", ui.Count(a.state.Len(), "task", "tasks"))

		tbl := ui.NewTable("DATE", "TASKS", "SOURCES").StyleColumn(0, ui.Accent)
		for _, s := range summaries {
			tbl.AddRow(s.Date, strconv.Itoa(s.Tasks), strconv.Itoa(s.Sources))
		}
		fmt.Fprint(out, tbl.String())

		if len(activity) > 0 {
			fmt.Fprintln(out)
			fmt.Fprintln(out, ui.Header("Last 24h"))
			act := ui.NewTable("ACTION", "COUNT")
			for _, action := range journal.Actions {
				if n := activity[action]; n > 0 {
					act.AddRow(string(action), strconv.Itoa(n))
				}
			}
			fmt.Fprint(out, act.String())
		}
		return nil
	},
}

// summarizeByDate groups entries by date, newest first. Entries without a
// date are reported under "-".
func summarizeByDate(entries map[string]state.Entry) []dateSummary {
	tasks := make(map[string]int)
	sources := make(map[string]map[string]bool)
	for _, e := range entries {
		d := e.Date
		if d == "" {
			d = "-"
		}
		tasks[d]++
		if sources[d] == nil {
			sources[d] = make(map[string]bool)
		}
		if e.SourcePath != "" {
			sources[d][e.SourcePath] = true
		}
	}
	out := make([]dateSummary, 0, len(tasks))
	for d, n := range tasks {
		out = append(out, dateSummary{Date: d, Tasks: n, Sources: len(sources[d])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out
}

func tasksForDate(root string, entries map[string]state.Entry, date string) []trackedTask {
	var out []trackedTask
	for id, e := range entries {
		if e.Date != date {
			continue
		}
		src := ""
		if e.SourcePath != "" {
			src = paths.Rel(root, e.SourcePath)
		}
		out = append(out, trackedTask{ID: id, Source: src})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// lockHolder returns the PID of a running daemon, or 0.
func lockHolder(path string) int {
	pid, _ := daemon.Holder(path)
	return pid
}

func init() {
	statusCmd.Flags().StringVar(&statusDate, "date", "", "List the tasks tracked for this date (YYYY-MM-DD)")
	rootCmd.AddCommand(statusCmd)
}
