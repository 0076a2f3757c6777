// Package cli implements the command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aidanlsb/dailysync/internal/config"
)

var (
	// Global flags
	configPath    string
	vaultPathFlag string
	logLevelFlag  string

	// Resolved values
	resolvedConfigPath string
	cfg                *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dsync",
	Short: "dailysync - keep daily notes and project task lists in step",
	Long: `dailysync reconciles the tasks in a Markdown vault's daily notes with the
"# Tasks" sections of project files. Tasks carry block IDs and return links so
an edit on either side reaches the other.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "version", "help", "completion":
			return nil
		}
		if cmd.Parent() != nil && cmd.Parent().Name() == "config" {
			return nil
		}

		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			if errors.Is(err, config.ErrNoVault) {
				return fmt.Errorf(`no vault configured

Either:
  1. Use --vault-path /path/to/vault
  2. Run 'dsync config init --vault /path/to/vault'
  3. Set vault in %s`, resolvedConfigPath)
			}
			return fmt.Errorf("invalid config: %w", err)
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&vaultPathFlag, "vault-path", "", "Explicit path to vault directory (overrides vault in config)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format (for script use)")
}

// loadConfig reads the config file and applies flag overrides without
// validating.
func loadConfig() (*config.Config, error) {
	resolvedConfigPath = configPath
	if resolvedConfigPath == "" {
		resolvedConfigPath = config.DefaultPath()
	}
	loaded, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if vaultPathFlag != "" {
		loaded.Vault = vaultPathFlag
	}
	if logLevelFlag != "" {
		loaded.Log.Level = logLevelFlag
	}
	return loaded, nil
}

// getConfig returns the loaded config.
func getConfig() *config.Config {
	return cfg
}
