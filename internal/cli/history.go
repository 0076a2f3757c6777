package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/dailysync/internal/journal"
	"github.com/aidanlsb/dailysync/internal/ui"
)

var (
	historyID     string
	historyDate   string
	historyAction []string
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent reconciliation activity",
	Long: `Show recent reconciliation activity from the journal, newest first.

Every mutation the daemon makes is journaled: register, mint, rescue,
dispatch, sync_s2d, sync_d2s, conflict, append, graduate, delete_source and
delete_daily.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		var actions []journal.Action
		for _, name := range historyAction {
			action := journal.Action(strings.TrimSpace(name))
			if action == "" {
				continue
			}
			if !knownAction(action) {
				return handleError(out, ErrCodeInvalid, fmt.Errorf("unknown action %q", name), "Valid actions: "+actionList())
			}
			actions = append(actions, action)
		}

		c := getConfig()
		j, err := journal.Open(c.JournalPath())
		if err != nil {
			return err
		}
		defer j.Close()

		events, err := j.Recent(cmd.Context(), journal.Filter{
			BlockID: strings.TrimPrefix(historyID, "^"),
			Date:    historyDate,
			Actions: actions,
			Limit:   historyLimit,
		})
		if err != nil {
			return err
		}

		if isJSONOutput() {
			outputSuccess(out, events, &Meta{Count: len(events)})
			return nil
		}
		if len(events) == 0 {
			fmt.Fprintln(out, ui.Hint("No activity recorded."))
			return nil
		}
		tbl := ui.NewTable("TIME", "DATE", "ACTION", "ID", "PATH", "DETAIL").
			StyleColumn(0, ui.Muted).
			StyleColumn(3, ui.Accent)
		for _, ev := range events {
			tbl.AddRow(ev.Time.Local().Format("2006-01-02 15:04:05"), ev.Date, string(ev.Action), ev.BlockID, ev.Path, ev.Detail)
		}
		fmt.Fprint(out, tbl.String())
		return nil
	},
}

func knownAction(a journal.Action) bool {
	for _, k := range journal.Actions {
		if k == a {
			return true
		}
	}
	return false
}

func actionList() string {
	names := make([]string, 0, len(journal.Actions))
	for _, a := range journal.Actions {
		names = append(names, string(a))
	}
	return strings.Join(names, ", ")
}

func init() {
	historyCmd.Flags().StringVar(&historyID, "id", "", "Only events for this block ID")
	historyCmd.Flags().StringVar(&historyDate, "date", "", "Only events for this date (YYYY-MM-DD)")
	historyCmd.Flags().StringSliceVar(&historyAction, "action", nil, "Only events of these actions (repeatable or comma-separated)")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", journal.DefaultLimit, "Maximum number of events")
	rootCmd.AddCommand(historyCmd)
}
