package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/dailysync/internal/paths"
	"github.com/aidanlsb/dailysync/internal/project"
	"github.com/aidanlsb/dailysync/internal/ui"
)

type projectInfo struct {
	Name string `json:"name"`
	Dir  string `json:"dir"`
	Main string `json:"main"`
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List discovered projects",
	Long: `List the projects discovery finds: every directory holding a markdown file
tagged "main" in its front matter, outside excluded and aggregated directories.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		a, err := openApp(getConfig(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		pm, errs := project.Scan(a.engine.Filter(), a.files)
		for _, err := range errs {
			a.logger.Warn("project scan", "err", err)
		}

		root := a.engine.Root()
		var infos []projectInfo
		for _, p := range pm.Projects() {
			infos = append(infos, projectInfo{
				Name: p.Name,
				Dir:  paths.Rel(root, p.Dir),
				Main: paths.Rel(root, p.Path),
			})
		}

		if isJSONOutput() {
			outputSuccess(out, infos, &Meta{Count: len(infos)})
			return nil
		}
		if len(infos) == 0 {
			fmt.Fprintln(out, ui.Hint("No projects found. Tag a file with 'main' in its front matter."))
			return nil
		}
		tbl := ui.NewTable("PROJECT", "DIRECTORY", "MAIN FILE").StyleColumn(0, ui.AccentBold)
		for _, p := range infos {
			tbl.AddRow(p.Name, p.Dir, p.Main)
		}
		fmt.Fprint(out, tbl.String())
		fmt.Fprintln(out, ui.Hint(fmt.Sprintf("%s, %s scanned",
			ui.Count(len(infos), "project", "projects"),
			ui.Count(pm.FileCount(), "file", "files"))))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}
