package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/dailysync/internal/daemon"
	"github.com/aidanlsb/dailysync/internal/vault"
	"github.com/aidanlsb/dailysync/internal/watcher"
)

var runNoWatch bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sync daemon in the foreground",
	Long: `Run the sync daemon in the foreground.

The daemon takes the vault's lock (terminating a previous instance if one is
running), then reconciles every tick_interval. File changes in the vault wake
it early unless --no-watch is given. SIGINT or SIGTERM stop it after the
current pass has saved its state.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := getConfig()
		a, err := openApp(c, true)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		lock := daemon.NewLock(c.LockPath(), a.logger)
		if err := lock.Acquire(ctx); err != nil {
			return err
		}
		defer func() {
			if err := lock.Release(); err != nil {
				a.logger.Warn("failed to release lock", "err", err)
			}
		}()

		runner := daemon.NewRunner(a.engine, a.tracker, runnerOptions(c), a.logger)

		if !runNoWatch {
			excluded := vault.NewFilter(c.VaultRoot(), c.ExcludeDirs, nil)
			w, err := watcher.New(watcher.Config{
				VaultPath: c.VaultRoot(),
				Tracker:   a.tracker,
				Skip:      excluded.IsExcluded,
				Logger:    a.logger,
			})
			if err != nil {
				return err
			}
			go func() {
				if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					a.logger.Warn("watcher stopped", "err", err)
				}
			}()
			runner.SetWake(w.Wake())
		}

		return runner.Run(ctx)
	},
}

func init() {
	runCmd.Flags().BoolVar(&runNoWatch, "no-watch", false, "Poll only; do not watch the vault for changes")
	rootCmd.AddCommand(runCmd)
}
