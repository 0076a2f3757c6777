package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/dailysync/internal/config"
	"github.com/aidanlsb/dailysync/internal/ui"
)

var configInitVault string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a commented default config file",
	Long: `Write a commented default config file to --config or the default location.
An existing file is left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		vault := configInitVault
		if vault == "" {
			vault = vaultPathFlag
		}

		target := configPath
		if target == "" {
			target = config.DefaultPath()
		}
		_, statErr := os.Stat(target)
		existed := statErr == nil

		path, err := config.CreateDefault(target, vault)
		if err != nil {
			return err
		}

		if isJSONOutput() {
			outputSuccess(out, map[string]interface{}{"path": path, "created": !existed}, nil)
			return nil
		}
		if existed {
			fmt.Fprintln(out, ui.Infof("config already exists at %s", ui.FilePath(path)))
			return nil
		}
		fmt.Fprintln(out, ui.Success("wrote "+ui.FilePath(path)))
		if vault == "" {
			fmt.Fprintln(out, ui.Hint("Set vault in the file or pass --vault-path."))
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		_, err := os.Stat(path)
		if isJSONOutput() {
			outputSuccess(out, map[string]interface{}{"path": path, "exists": err == nil}, nil)
			return nil
		}
		fmt.Fprintln(out, path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		c, err := loadConfig()
		if err != nil {
			return err
		}
		data := map[string]interface{}{
			"config_path":     resolvedConfigPath,
			"vault":           c.VaultRoot(),
			"daily_directory": c.DailyDir(),
			"state_file":      c.StatePath(),
			"lock_file":       c.LockPath(),
			"journal_file":    c.JournalPath(),
			"daily_sections":  c.DailySections,
			"sync_start_date": c.SyncStartDate,
			"lookback_days":   c.LookbackDays,
			"tick_interval":   c.TickInterval.String(),
			"typing_cooldown": c.TypingCooldown.String(),
		}
		if isJSONOutput() {
			outputSuccess(out, data, nil)
			return nil
		}

		tbl := ui.NewTable("KEY", "VALUE").StyleColumn(0, ui.Muted)
		for _, key := range []string{
			"config_path", "vault", "daily_directory", "state_file", "lock_file",
			"journal_file", "daily_sections", "sync_start_date", "lookback_days",
			"tick_interval", "typing_cooldown",
		} {
			tbl.AddRow(key, fmt.Sprint(data[key]))
		}
		fmt.Fprint(out, tbl.String())
		if err := c.Validate(); err != nil {
			fmt.Fprintln(out, ui.Warningf("%v", err))
		}
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitVault, "vault", "", "Vault path to write into the new config")
	configCmd.AddCommand(configInitCmd, configPathCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
