package daemon

import (
	"context"
	"math"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/aidanlsb/dailysync/internal/dates"
	"github.com/aidanlsb/dailysync/internal/logging"
	"github.com/aidanlsb/dailysync/internal/reconcile"
	"github.com/aidanlsb/dailysync/internal/writeguard"
)

const (
	// activeWindow keeps the fastest tick while the user edited recently.
	activeWindow = time.Minute
	// rampUp is how long idling takes to reach IdleInterval.
	rampUp = 30 * time.Minute
)

// Options configures a Runner.
type Options struct {
	// TickInterval is the delay between passes while the user is active.
	TickInterval time.Duration
	// IdleInterval caps the delay once the vault has been idle for a while.
	// Values below TickInterval disable the backoff.
	IdleInterval time.Duration
	// TypingCooldown is how long a daily note must sit unmodified before a
	// pass may touch it.
	TypingCooldown time.Duration
	Formatter      Hook
	Calendar       Hook
	// CalendarInterval rate-limits the calendar hook per date.
	CalendarInterval time.Duration
}

// Runner drives the engine: one pass per tick, gated by typing cooldown,
// followed by the formatter and calendar hooks for each processed date.
type Runner struct {
	engine   *reconcile.Engine
	tracker  *writeguard.Tracker
	debounce *writeguard.Debouncer
	opts     Options
	logger   *log.Logger
	wake     <-chan struct{}

	lastActive   time.Time
	lastCalendar map[string]time.Time

	// Now is the runner clock. Defaults to time.Now.
	Now func() time.Time
}

// NewRunner creates a runner. tracker is the one the engine's files record
// writes into.
func NewRunner(engine *reconcile.Engine, tracker *writeguard.Tracker, opts Options, logger *log.Logger) *Runner {
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 3 * time.Second
	}
	r := &Runner{
		engine:       engine,
		tracker:      tracker,
		opts:         opts,
		logger:       logger,
		lastCalendar: make(map[string]time.Time),
	}
	r.debounce = &writeguard.Debouncer{Tracker: tracker, Cooldown: opts.TypingCooldown, Now: r.now}
	return r
}

// SetWake makes Run start the next pass early whenever ch delivers.
func (r *Runner) SetWake(ch <-chan struct{}) {
	r.wake = ch
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run ticks until ctx is cancelled. A pass that has started is allowed to
// finish and save its state.
func (r *Runner) Run(ctx context.Context) error {
	r.lastActive = r.now()
	r.logger.Info("daemon started", "vault", r.engine.Root(), "tick", r.opts.TickInterval)
	for {
		if _, err := r.Tick(context.WithoutCancel(ctx)); err != nil {
			r.logger.Error("pass failed", "err", err)
		}

		interval := r.interval()
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("daemon stopping")
			return nil
		case <-timer.C:
		case <-r.wake:
			timer.Stop()
			r.lastActive = r.now()
			r.logger.Debug("woken by vault change")
		}
	}
}

// Tick runs one reconciliation pass and the post-pass hooks.
func (r *Runner) Tick(ctx context.Context) (*reconcile.Report, error) {
	report, err := r.engine.Sync(ctx, r.gate)
	if report == nil {
		return nil, err
	}
	if report.Writes > 0 || r.todayHot() {
		r.lastActive = r.now()
	}
	for _, date := range report.Processed {
		r.afterProcess(ctx, date)
	}
	if n := report.Total(); n > 0 || len(report.Errors) > 0 {
		r.logger.Info("pass complete",
			"dates", len(report.Processed),
			"skipped", len(report.Skipped),
			"mutations", n,
			"writes", report.Writes,
			"errors", len(report.Errors))
	}
	return report, err
}

// gate holds back daily notes the user is still typing in.
func (r *Runner) gate(date, path string) bool {
	stable, err := r.debounce.Stable(path)
	if err != nil {
		r.logger.Debug("debounce check failed", "date", date, "err", err)
		return false
	}
	if !stable {
		r.logger.Debug("typing cooldown", "date", date)
	}
	return stable
}

// todayHot reports whether today's daily note changed within activeWindow.
func (r *Runner) todayHot() bool {
	info, err := os.Stat(r.engine.DailyPath(dates.Format(r.now())))
	return err == nil && r.now().Sub(info.ModTime()) < activeWindow
}

// afterProcess runs the formatter and then, unless the formatter changed the
// note, the calendar hook.
func (r *Runner) afterProcess(ctx context.Context, date string) {
	path := r.engine.DailyPath(date)
	if _, err := os.Stat(path); err != nil {
		return
	}

	dirty := false
	if r.opts.Formatter.Command != "" {
		res, err := r.opts.Formatter.Run(ctx, date, path)
		if err != nil {
			r.logger.Warn("formatter failed", "date", date, "exit", res.ExitCode, "err", err)
		}
		if res.Changed {
			dirty = true
			if content, err := os.ReadFile(path); err == nil && r.tracker != nil {
				r.tracker.Record(path, content)
			}
			r.logger.Info("formatter rewrote daily note", "date", date)
		}
	}

	if r.opts.Calendar.Command == "" || dirty {
		return
	}
	now := r.now()
	if last, ok := r.lastCalendar[date]; ok && now.Sub(last) < r.opts.CalendarInterval {
		return
	}
	r.lastCalendar[date] = now
	if res, err := r.opts.Calendar.Run(ctx, date, path); err != nil {
		r.logger.Warn("calendar hook failed", "date", date, "exit", res.ExitCode, "err", err)
	}
}

func (r *Runner) interval() time.Duration {
	return nextInterval(r.now().Sub(r.lastActive), r.opts.TickInterval, r.opts.IdleInterval)
}

// nextInterval returns lo while idle is under activeWindow, then grows
// logarithmically so that it reaches hi after rampUp.
func nextInterval(idle, lo, hi time.Duration) time.Duration {
	if hi <= lo || idle < activeWindow {
		return lo
	}
	b := float64(hi-lo) / math.Log(rampUp.Seconds()+1)
	d := lo + time.Duration(b*math.Log(idle.Seconds()+1))
	if d > hi {
		return hi
	}
	return d
}
