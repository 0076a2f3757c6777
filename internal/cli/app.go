package cli

import (
	"github.com/charmbracelet/log"

	"github.com/aidanlsb/dailysync/internal/config"
	"github.com/aidanlsb/dailysync/internal/daemon"
	"github.com/aidanlsb/dailysync/internal/journal"
	"github.com/aidanlsb/dailysync/internal/logging"
	"github.com/aidanlsb/dailysync/internal/reconcile"
	"github.com/aidanlsb/dailysync/internal/state"
	"github.com/aidanlsb/dailysync/internal/vault"
	"github.com/aidanlsb/dailysync/internal/writeguard"
)

// app bundles the collaborators one command invocation works with.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	tracker *writeguard.Tracker
	files   *vault.Files
	state   *state.Store
	journal *journal.Journal
	engine  *reconcile.Engine
}

// openApp builds the engine for the loaded config. The journal is optional:
// when it cannot be opened the engine runs without one.
func openApp(c *config.Config, withJournal bool) (*app, error) {
	logger, err := logging.New(c.LogOptions())
	if err != nil {
		return nil, err
	}
	errs := logging.NewErrorRegistry(logger)
	tracker := writeguard.NewTracker(0)
	files := vault.NewFiles(tracker, errs, logger)
	st := state.Load(c.StatePath(), logger, errs)

	a := &app{
		cfg:     c,
		logger:  logger,
		tracker: tracker,
		files:   files,
		state:   st,
	}

	var rec reconcile.Recorder
	if withJournal {
		j, err := journal.Open(c.JournalPath())
		if err != nil {
			logger.Warn("journal unavailable, continuing without it", "path", c.JournalPath(), "err", err)
		} else {
			a.journal = j
			rec = j
		}
	}

	a.engine = reconcile.New(c.EngineOptions(), files, st, rec, logger)
	return a, nil
}

// Close waits for background verification and closes the journal.
func (a *app) Close() {
	a.engine.Close()
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("failed to close journal", "err", err)
		}
	}
}

// runnerOptions maps the config onto daemon options.
func runnerOptions(c *config.Config) daemon.Options {
	dir := c.VaultRoot()
	return daemon.Options{
		TickInterval:     c.TickInterval.Duration,
		IdleInterval:     c.IdleTickInterval.Duration,
		TypingCooldown:   c.TypingCooldown.Duration,
		Formatter:        daemon.Hook{Command: c.FormatterCommand, Dir: dir},
		Calendar:         daemon.Hook{Command: c.CalendarCommand, Dir: dir},
		CalendarInterval: c.CalendarInterval.Duration,
	}
}
