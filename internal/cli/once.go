package cli

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/dailysync/internal/daemon"
	"github.com/aidanlsb/dailysync/internal/dates"
	"github.com/aidanlsb/dailysync/internal/journal"
	"github.com/aidanlsb/dailysync/internal/reconcile"
	"github.com/aidanlsb/dailysync/internal/ui"
)

var onceDate string

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single reconciliation pass and print what it did",
	Long: `Run a single reconciliation pass and print what it did.

The pass ignores the typing cooldown. It refuses to run while a daemon holds
the vault's lock. With --date only that day's daily note is reconciled
("today", "yesterday" and YYYY-MM-DD are accepted).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		c := getConfig()

		var only string
		if onceDate != "" {
			d, err := dates.ParseDateArg(onceDate, time.Now())
			if err != nil {
				return handleError(out, ErrCodeInvalid, err, "Use today, yesterday or YYYY-MM-DD")
			}
			only = dates.Format(d)
		}

		a, err := openApp(c, true)
		if err != nil {
			return err
		}
		defer a.Close()

		lock := daemon.NewLock(c.LockPath(), a.logger)
		if err := lock.TryAcquire(); err != nil {
			if errors.Is(err, daemon.ErrLocked) {
				return handleError(out, ErrCodeLocked, err, "Stop the running daemon or let it do the work")
			}
			return err
		}
		defer lock.Release()

		var gate reconcile.Gate
		if only != "" {
			gate = func(date, _ string) bool { return date == only }
		}
		report, err := a.engine.Sync(cmd.Context(), gate)
		if err != nil {
			return err
		}

		if isJSONOutput() {
			outputSuccess(out, reportData(report), &Meta{Count: report.Total()})
			return nil
		}
		printReport(out, report, only != "")
		return nil
	},
}

func reportData(r *reconcile.Report) map[string]interface{} {
	actions := make(map[string]int, len(r.Actions))
	for a, n := range r.Actions {
		actions[string(a)] = n
	}
	errs := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		errs = append(errs, err.Error())
	}
	return map[string]interface{}{
		"processed": r.Processed,
		"skipped":   r.Skipped,
		"writes":    r.Writes,
		"actions":   actions,
		"errors":    errs,
	}
}

func printReport(w io.Writer, r *reconcile.Report, filtered bool) {
	summary := fmt.Sprintf("Processed %s", ui.Count(len(r.Processed), "date", "dates"))
	if len(r.Skipped) > 0 && !filtered {
		summary += fmt.Sprintf(" (%d skipped)", len(r.Skipped))
	}
	summary += fmt.Sprintf(", %s", ui.Count(r.Writes, "write", "writes"))
	fmt.Fprintln(w, ui.Success(summary))

	tbl := ui.NewTable("ACTION", "COUNT")
	for _, a := range journal.Actions {
		if n := r.Actions[a]; n > 0 {
			tbl.AddRow(string(a), strconv.Itoa(n))
		}
	}
	if tbl.Len() == 0 {
		fmt.Fprintln(w, ui.Hint("Nothing to reconcile."))
	} else {
		fmt.Fprint(w, tbl.String())
	}

	if len(r.Errors) > 0 {
		msgs := make([]string, 0, len(r.Errors))
		for _, err := range r.Errors {
			msgs = append(msgs, err.Error())
		}
		sort.Strings(msgs)
		fmt.Fprintln(w)
		for _, m := range msgs {
			fmt.Fprintln(w, ui.Warningf("%s", m))
		}
	}
}

func init() {
	onceCmd.Flags().StringVar(&onceDate, "date", "", "Only reconcile this date")
	rootCmd.AddCommand(onceCmd)
}
