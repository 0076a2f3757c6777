// Package config handles dailysync configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/aidanlsb/dailysync/internal/dates"
	"github.com/aidanlsb/dailysync/internal/logging"
	"github.com/aidanlsb/dailysync/internal/paths"
	"github.com/aidanlsb/dailysync/internal/reconcile"
	"github.com/aidanlsb/dailysync/internal/taskline"
)

// ErrNoVault is returned by Validate when no vault is configured.
var ErrNoVault = errors.New("no vault configured")

// Config represents the dailysync configuration.
type Config struct {
	// Vault is the root directory of the notes vault.
	Vault string `toml:"vault"`

	// DailyDirectory holds the YYYY-MM-DD.md daily notes.
	DailyDirectory string `toml:"daily_directory"`

	// TemplateFile seeds newly created daily notes. Optional.
	TemplateFile string `toml:"template_file"`

	StateFile   string `toml:"state_file"`
	LockFile    string `toml:"lock_file"`
	JournalFile string `toml:"journal_file"`

	ExcludeDirs   []string `toml:"exclude_dirs"`
	AggregateDirs []string `toml:"aggregate_dirs"`

	DailySections  []string `toml:"daily_sections"`
	PlannerSection string   `toml:"planner_section"`
	JourneySection string   `toml:"journey_section"`

	// SyncStartDate ignores tasks and daily notes before it.
	SyncStartDate string `toml:"sync_start_date"`
	LookbackDays  int    `toml:"lookback_days"`
	TabWidth      int    `toml:"tab_width"`

	TypingCooldown Duration `toml:"typing_cooldown"`
	TickInterval   Duration `toml:"tick_interval"`
	VerifyDelay    Duration `toml:"verify_delay"`

	// IdleTickInterval is the slowest tick once the vault has gone quiet.
	IdleTickInterval Duration `toml:"idle_tick_interval"`

	FormatterCommand string   `toml:"formatter_command"`
	CalendarCommand  string   `toml:"calendar_command"`
	CalendarInterval Duration `toml:"calendar_interval"`

	Log LogConfig `toml:"log"`
}

// LogConfig configures console logging.
type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	Timestamps bool   `toml:"timestamps"`
}

// Duration is a time.Duration written as a Go duration string ("6s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used for keys the file leaves unset.
func Default() *Config {
	return &Config{
		DailyDirectory:   "daily",
		DailySections:    []string{"# Day planner", "# Journey"},
		PlannerSection:   "# Day planner",
		JourneySection:   "# Journey",
		LookbackDays:     2,
		TabWidth:         taskline.DefaultTabWidth,
		TypingCooldown:   Duration{6 * time.Second},
		TickInterval:     Duration{3 * time.Second},
		IdleTickInterval: Duration{15 * time.Second},
		VerifyDelay:      Duration{10 * time.Second},
		CalendarInterval: Duration{10 * time.Second},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			Timestamps: true,
		},
	}
}

// Load loads the configuration from path, or from DefaultPath when path is
// empty. A missing default file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return Default(), nil
		}
	}
	return LoadFrom(path)
}

// LoadFrom loads the configuration from a specific path. Keys absent from
// the file keep their defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the values a daemon cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vault) == "" {
		return ErrNoVault
	}
	info, err := os.Stat(c.VaultRoot())
	if err != nil {
		return fmt.Errorf("vault %s: %w", c.Vault, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("vault %s is not a directory", c.Vault)
	}
	if c.SyncStartDate != "" && !dates.IsValidDate(c.SyncStartDate) {
		return fmt.Errorf("sync_start_date %q is not a YYYY-MM-DD date", c.SyncStartDate)
	}
	if c.LookbackDays < 0 {
		return fmt.Errorf("lookback_days must not be negative")
	}
	if c.TabWidth <= 0 {
		return fmt.Errorf("tab_width must be positive")
	}
	if c.TickInterval.Duration <= 0 {
		return fmt.Errorf("tick_interval must be positive")
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return err
	}
	return nil
}

// VaultRoot returns the normalized absolute vault path.
func (c *Config) VaultRoot() string {
	return paths.Normalize(expandHome(c.Vault))
}

// DailyDir returns the absolute daily-note directory.
func (c *Config) DailyDir() string {
	return c.resolve(c.DailyDirectory)
}

// StatePath returns the absolute state file path.
func (c *Config) StatePath() string {
	if c.StateFile != "" {
		return c.resolve(c.StateFile)
	}
	return filepath.Join(c.DailyDir(), ".sync_state.json")
}

// LockPath returns the absolute lock file path.
func (c *Config) LockPath() string {
	if c.LockFile != "" {
		return c.resolve(c.LockFile)
	}
	return filepath.Join(c.DailyDir(), ".dailysync.lock")
}

// JournalPath returns the absolute journal database path.
func (c *Config) JournalPath() string {
	if c.JournalFile != "" {
		return c.resolve(c.JournalFile)
	}
	return filepath.Join(c.DailyDir(), ".dailysync.db")
}

func (c *Config) resolve(p string) string {
	return paths.Resolve(c.VaultRoot(), expandHome(p))
}

// EngineOptions maps the configuration onto reconciliation options.
func (c *Config) EngineOptions() reconcile.Options {
	opts := reconcile.DefaultOptions(c.VaultRoot())
	opts.DailyDir = c.DailyDir()
	opts.TemplateFile = c.resolve(c.TemplateFile)
	opts.ExcludeDirs = c.ExcludeDirs
	opts.AggregateDirs = c.AggregateDirs
	if len(c.DailySections) > 0 {
		opts.DailySections = c.DailySections
	}
	if c.PlannerSection != "" {
		opts.PlannerSection = c.PlannerSection
	}
	if c.JourneySection != "" {
		opts.JourneySection = c.JourneySection
	}
	opts.SyncStartDate = c.SyncStartDate
	opts.LookbackDays = c.LookbackDays
	opts.TabWidth = c.TabWidth
	opts.VerifyDelay = c.VerifyDelay.Duration
	return opts
}

// LogOptions maps the [log] table onto logger options.
func (c *Config) LogOptions() logging.Options {
	opts := logging.DefaultOptions()
	opts.Level = c.Log.Level
	opts.Format = c.Log.Format
	opts.Timestamps = c.Log.Timestamps
	return opts
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// DefaultPath returns the default config file path.
// Checks ~/.config/dailysync/config.toml first (XDG style),
// then falls back to OS-specific location.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		xdgPath := filepath.Join(home, ".config", "dailysync", "config.toml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "dailysync", "config.toml")
	}

	return filepath.Join(".", "config.toml")
}

const defaultConfig = `# dailysync configuration

# Root of the notes vault (required).
vault = %q

# Daily notes live here as YYYY-MM-DD.md. Relative paths resolve against the vault.
# daily_directory = "daily"
# template_file = "templates/daily.md"

# Bookkeeping files (default to the daily directory).
# state_file = "daily/.sync_state.json"
# lock_file = "daily/.dailysync.lock"
# journal_file = "daily/.dailysync.db"

# Directories never scanned for project tasks.
# exclude_dirs = ["archive"]
# Directories whose subdirectories never become projects of their own.
# aggregate_dirs = ["areas"]

# daily_sections = ["# Day planner", "# Journey"]
# planner_section = "# Day planner"
# journey_section = "# Journey"

# Ignore tasks and daily notes before this date.
# sync_start_date = "2024-01-01"
# lookback_days = 2
# tab_width = 4

# typing_cooldown = "6s"
# tick_interval = "3s"
# idle_tick_interval = "15s"
# verify_delay = "10s"

# Optional hooks. {path} and {date} are substituted.
# formatter_command = "mdformat {path}"
# calendar_command = "calsync {date} {path}"
# calendar_interval = "10s"

[log]
level = "info"
format = "text"
timestamps = true
`

// CreateDefault writes a commented default config to path (DefaultPath when
// empty) unless one already exists, and returns the path.
func CreateDefault(path, vault string) (string, error) {
	if path == "" {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(defaultConfig, vault)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return path, nil
}
