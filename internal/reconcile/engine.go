package reconcile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/aidanlsb/dailysync/internal/dates"
	"github.com/aidanlsb/dailysync/internal/journal"
	"github.com/aidanlsb/dailysync/internal/logging"
	"github.com/aidanlsb/dailysync/internal/paths"
	"github.com/aidanlsb/dailysync/internal/project"
	"github.com/aidanlsb/dailysync/internal/state"
	"github.com/aidanlsb/dailysync/internal/taskline"
	"github.com/aidanlsb/dailysync/internal/vault"
)

// Options configures an Engine. Paths may be relative to VaultRoot.
type Options struct {
	VaultRoot      string
	DailyDir       string
	TemplateFile   string
	ExcludeDirs    []string
	AggregateDirs  []string
	DailySections  []string
	PlannerSection string
	JourneySection string
	// SyncStartDate drops tasks and dates before it. Empty disables the gate.
	SyncStartDate string
	LookbackDays  int
	TabWidth      int
	// VerifyDelay schedules a read-only snapshot of each written source
	// file. Zero disables it.
	VerifyDelay time.Duration
}

// DefaultOptions returns the stock daily-note conventions for root.
func DefaultOptions(root string) Options {
	return Options{
		VaultRoot:      root,
		DailyDir:       "daily",
		DailySections:  []string{"# Day planner", "# Journey"},
		PlannerSection: "# Day planner",
		JourneySection: "# Journey",
		LookbackDays:   2,
		TabWidth:       taskline.DefaultTabWidth,
	}
}

// Recorder receives every mutation the engine performs.
type Recorder interface {
	Record(ctx context.Context, ev journal.Event) error
}

// Gate decides whether a date's daily note may be processed this pass.
type Gate func(date, dailyPath string) bool

// Engine runs reconciliation passes. It is not safe for concurrent passes.
type Engine struct {
	opts     Options
	root     string
	dailyDir string
	layout   taskline.Layout
	sections map[string]bool
	filter   vault.Filter

	files   *vault.Files
	state   *state.Store
	journal Recorder
	logger  *log.Logger
	errs    *logging.ErrorRegistry

	// Now is the engine clock. Defaults to time.Now.
	Now func() time.Time

	verifyCtx    context.Context
	verifyCancel context.CancelFunc
	verifyWG     sync.WaitGroup
}

// New creates an engine. rec may be nil.
func New(opts Options, files *vault.Files, st *state.Store, rec Recorder, logger *log.Logger) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	if files == nil {
		files = vault.NewFiles(nil, nil, logger)
	}
	if opts.PlannerSection == "" {
		opts.PlannerSection = "# Day planner"
	}
	if opts.JourneySection == "" {
		opts.JourneySection = "# Journey"
	}
	if len(opts.DailySections) == 0 {
		opts.DailySections = []string{opts.PlannerSection, opts.JourneySection}
	}
	if opts.DailyDir == "" {
		opts.DailyDir = "daily"
	}

	root := paths.Normalize(opts.VaultRoot)
	dailyDir := paths.Resolve(root, opts.DailyDir)
	sections := make(map[string]bool, len(opts.DailySections))
	for _, s := range opts.DailySections {
		sections[strings.TrimSpace(s)] = true
	}
	exclude := append(append([]string(nil), opts.ExcludeDirs...), dailyDir)

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		opts:         opts,
		root:         root,
		dailyDir:     dailyDir,
		layout:       taskline.Layout{TabWidth: opts.TabWidth},
		sections:     sections,
		filter:       vault.NewFilter(root, exclude, opts.AggregateDirs),
		files:        files,
		state:        st,
		journal:      rec,
		logger:       logger,
		errs:         files.Errors,
		verifyCtx:    ctx,
		verifyCancel: cancel,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Root returns the normalized vault root.
func (e *Engine) Root() string { return e.root }

// DailyDir returns the absolute daily-note directory.
func (e *Engine) DailyDir() string { return e.dailyDir }

// DailyPath returns the daily note for date.
func (e *Engine) DailyPath(date string) string {
	return filepath.Join(e.dailyDir, date+".md")
}

// Filter returns the walk filter used for project discovery.
func (e *Engine) Filter() vault.Filter { return e.filter }

// Layout returns the indentation convention.
func (e *Engine) Layout() taskline.Layout { return e.layout }

// Close stops pending verification snapshots and waits for running ones.
func (e *Engine) Close() {
	e.verifyCancel()
	e.verifyWG.Wait()
}

// Report summarizes one pass.
type Report struct {
	Started   time.Time
	Processed []string
	Skipped   []string
	Writes    int
	Actions   map[journal.Action]int
	Errors    []error
}

func newReport(now time.Time) *Report {
	return &Report{Started: now, Actions: make(map[journal.Action]int)}
}

// Total returns the number of recorded mutations.
func (r *Report) Total() int {
	n := 0
	for _, c := range r.Actions {
		n += c
	}
	return n
}

func (r *Report) fail(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err)
	}
}

// Pass carries one discovery and ingestion result through the per-date
// reconciliation steps.
type Pass struct {
	Projects *project.Map
	// Sources maps date to block ID to task.
	Sources map[string]map[string]*SourceTask
	Dates   []string
	Report  *Report

	inUse map[string]bool
}

func (p *Pass) taken(id string) bool {
	return p.inUse[id]
}

// Prepare discovers projects and ingests every source task.
func (e *Engine) Prepare(ctx context.Context) (*Pass, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := &Pass{
		Sources: make(map[string]map[string]*SourceTask),
		Report:  newReport(e.now()),
		inUse:   make(map[string]bool),
	}

	pm, errs := project.Scan(e.filter, e.files)
	for _, err := range errs {
		e.logger.Warn("project scan", "err", err)
		p.Report.fail(err)
	}
	p.Projects = pm

	if err := e.ingest(ctx, p); err != nil {
		return nil, err
	}

	for _, d := range dates.Lookback(e.now(), e.opts.LookbackDays) {
		if _, ok := p.Sources[d]; !ok {
			p.Sources[d] = map[string]*SourceTask{}
		}
	}
	for d := range p.Sources {
		if e.gated(d) {
			continue
		}
		p.Dates = append(p.Dates, d)
	}
	sort.Strings(p.Dates)
	return p, nil
}

func (e *Engine) gated(date string) bool {
	return e.opts.SyncStartDate != "" && date < e.opts.SyncStartDate
}

// Sync runs a full pass. gate may veto individual dates; nil processes all.
// Per-file problems are collected in the report; only cancellation is
// returned as an error.
func (e *Engine) Sync(ctx context.Context, gate Gate) (*Report, error) {
	p, err := e.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	for _, date := range p.Dates {
		if err := ctx.Err(); err != nil {
			return p.Report, err
		}
		path := e.DailyPath(date)
		if gate != nil && !gate(date, path) {
			p.Report.Skipped = append(p.Report.Skipped, date)
			continue
		}
		if err := e.ProcessDate(ctx, p, date); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return p.Report, err
			}
			e.errs.Once("date:"+date, "date failed", "date", date, "err", err)
			p.Report.fail(err)
		}
	}
	return p.Report, nil
}

func (e *Engine) record(ctx context.Context, p *Pass, action journal.Action, date, id, path, detail string) {
	p.Report.Actions[action]++
	if e.journal == nil {
		return
	}
	ev := journal.Event{Time: e.now(), Date: date, BlockID: id, Action: action, Path: e.rel(path), Detail: detail}
	if err := e.journal.Record(ctx, ev); err != nil {
		e.errs.Once("journal", "journal write failed", "err", err)
		return
	}
	e.errs.Forget("journal")
}

func (e *Engine) rel(path string) string {
	if path == "" {
		return ""
	}
	return paths.Rel(e.root, path)
}

// write stores lines at path. Unchanged content is not rewritten.
func (e *Engine) write(p *Pass, path string, lines []string, reason string) error {
	wrote, err := e.files.WriteLines(path, lines)
	if err != nil {
		return err
	}
	if wrote {
		p.Report.Writes++
		e.logger.Info("wrote file", "path", e.rel(path), "reason", reason)
	}
	return nil
}

func (e *Engine) mint(p *Pass) (string, error) {
	id, err := e.state.MintID(p.taken)
	if err != nil {
		return "", fmt.Errorf("mint block id: %w", err)
	}
	p.inUse[id] = true
	return id, nil
}
