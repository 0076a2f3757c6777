package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/dailysync/internal/paths"
	"github.com/aidanlsb/dailysync/internal/reconcile"
	"github.com/aidanlsb/dailysync/internal/ui"
)

var showRaw bool

var showCmd = &cobra.Command{
	Use:   "show <block-id>",
	Short: "Render a task block by its ID",
	Long: `Render a task block by its ID.

The block is read from its project file when the state store knows one,
otherwise from the daily note of its tracked date. Output is rendered
Markdown on a terminal and the raw block otherwise (or with --raw).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		id := strings.TrimPrefix(strings.TrimSpace(args[0]), "^")

		a, err := openApp(getConfig(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		path, block, err := a.engine.Locate(id)
		if err != nil {
			if errors.Is(err, reconcile.ErrBlockNotFound) {
				return handleError(out, ErrCodeNotFound, err, "Run 'dsync status' to list tracked tasks")
			}
			return err
		}
		rel := paths.Rel(a.engine.Root(), path)

		if isJSONOutput() {
			outputSuccess(out, map[string]interface{}{
				"id":    id,
				"path":  rel,
				"block": block,
			}, nil)
			return nil
		}

		display := ui.NewDisplayContext()
		if showRaw {
			display.IsTTY = false
		}
		rendered, err := ui.RenderBlock(display, block)
		if err != nil {
			return err
		}
		if display.IsTTY {
			fmt.Fprintln(out, ui.FilePath(rel))
		}
		fmt.Fprint(out, rendered)
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "Print the block's Markdown without rendering")
	rootCmd.AddCommand(showCmd)
}
