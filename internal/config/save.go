package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/aidanlsb/dailysync/internal/atomicfile"
)

// persistedConfig omits keys that still hold their defaults so a saved file
// only records what the operator changed.
type persistedConfig struct {
	Vault            *string   `toml:"vault,omitempty"`
	DailyDirectory   *string   `toml:"daily_directory,omitempty"`
	TemplateFile     *string   `toml:"template_file,omitempty"`
	StateFile        *string   `toml:"state_file,omitempty"`
	LockFile         *string   `toml:"lock_file,omitempty"`
	JournalFile      *string   `toml:"journal_file,omitempty"`
	ExcludeDirs      []string  `toml:"exclude_dirs,omitempty"`
	AggregateDirs    []string  `toml:"aggregate_dirs,omitempty"`
	SyncStartDate    *string   `toml:"sync_start_date,omitempty"`
	LookbackDays     *int      `toml:"lookback_days,omitempty"`
	TabWidth         *int      `toml:"tab_width,omitempty"`
	TypingCooldown   *Duration `toml:"typing_cooldown,omitempty"`
	TickInterval     *Duration `toml:"tick_interval,omitempty"`
	FormatterCommand *string   `toml:"formatter_command,omitempty"`
	CalendarCommand  *string   `toml:"calendar_command,omitempty"`
	Log              LogConfig `toml:"log"`
}

func nonEmptyPtr(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func changedPtr[T comparable](value, def T) *T {
	if value == def {
		return nil
	}
	return &value
}

// SaveTo writes cfg to path atomically.
func SaveTo(path string, cfg *Config) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("config path is required")
	}
	if cfg == nil {
		cfg = Default()
	}
	def := Default()

	out := persistedConfig{
		Vault:            nonEmptyPtr(cfg.Vault),
		DailyDirectory:   changedPtr(cfg.DailyDirectory, def.DailyDirectory),
		TemplateFile:     nonEmptyPtr(cfg.TemplateFile),
		StateFile:        nonEmptyPtr(cfg.StateFile),
		LockFile:         nonEmptyPtr(cfg.LockFile),
		JournalFile:      nonEmptyPtr(cfg.JournalFile),
		ExcludeDirs:      cfg.ExcludeDirs,
		AggregateDirs:    cfg.AggregateDirs,
		SyncStartDate:    nonEmptyPtr(cfg.SyncStartDate),
		LookbackDays:     changedPtr(cfg.LookbackDays, def.LookbackDays),
		TabWidth:         changedPtr(cfg.TabWidth, def.TabWidth),
		TypingCooldown:   changedPtr(cfg.TypingCooldown, def.TypingCooldown),
		TickInterval:     changedPtr(cfg.TickInterval, def.TickInterval),
		FormatterCommand: nonEmptyPtr(cfg.FormatterCommand),
		CalendarCommand:  nonEmptyPtr(cfg.CalendarCommand),
		Log:              cfg.Log,
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(out); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := atomicfile.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}

	return nil
}
