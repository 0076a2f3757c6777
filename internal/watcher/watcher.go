// Package watcher wakes the daemon when markdown files in the vault change.
//
// Events are debounced per file. Changes whose content matches the daemon's
// own last write are dropped so a reconciliation pass never triggers itself.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/aidanlsb/dailysync/internal/atomicfile"
	"github.com/aidanlsb/dailysync/internal/logging"
	"github.com/aidanlsb/dailysync/internal/writeguard"
)

// Watcher monitors a vault directory for markdown changes.
type Watcher struct {
	vaultPath string
	tracker   *writeguard.Tracker
	skip      func(path string) bool
	logger    *log.Logger

	debounceDelay time.Duration

	fsWatcher *fsnotify.Watcher
	pending   map[string]time.Time
	mu        sync.Mutex

	wake     chan struct{}
	onChange func(paths []string)

	// now is the watcher clock; tests replace it.
	now func() time.Time
}

// Config holds configuration options for the Watcher.
type Config struct {
	VaultPath string
	// Tracker filters out the daemon's own writes. Optional.
	Tracker *writeguard.Tracker
	// Skip ignores additional paths. Optional.
	Skip          func(path string) bool
	DebounceDelay time.Duration // Default: 250ms
	Logger        *log.Logger
	OnChange      func(paths []string) // Optional callback
}

// New creates a new Watcher with the given configuration.
func New(cfg Config) (*Watcher, error) {
	if cfg.VaultPath == "" {
		return nil, errors.New("vault path is required")
	}

	debounce := cfg.DebounceDelay
	if debounce == 0 {
		debounce = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Watcher{
		vaultPath:     cfg.VaultPath,
		tracker:       cfg.Tracker,
		skip:          cfg.Skip,
		logger:        logger,
		debounceDelay: debounce,
		pending:       make(map[string]time.Time),
		wake:          make(chan struct{}, 1),
		onChange:      cfg.OnChange,
		now:           time.Now,
	}, nil
}

// Wake delivers a signal after each debounced batch of changes. Signals
// coalesce: at most one is buffered.
func (w *Watcher) Wake() <-chan struct{} {
	return w.wake
}

// Start begins watching the vault for file changes.
// It blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	var err error
	w.fsWatcher, err = fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer w.fsWatcher.Close()

	if err := w.addWatchRecursive(w.vaultPath); err != nil {
		return fmt.Errorf("failed to watch vault: %w", err)
	}

	w.logger.Debug("watching vault", "path", w.vaultPath)

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Debug("watcher error", "err", err)
		}
	}
}

// handleEvent processes a single filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if !strings.HasSuffix(strings.ToLower(path), ".md") {
		// New directories are watched as they appear.
		if event.Op&fsnotify.Create != 0 {
			if info, err := os.Stat(path); err == nil && info.IsDir() && !w.shouldIgnore(path) {
				if err := w.addWatchRecursive(path); err != nil {
					w.logger.Debug("failed to watch new directory", "path", path, "err", err)
				}
			}
		}
		return
	}

	if atomicfile.IsTemp(path) || w.shouldIgnore(path) {
		return
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
		w.logger.Debug("event", "op", event.Op.String(), "path", path)
		w.schedule(path)
	}
}

// schedule adds a file to the pending queue with debouncing.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = w.now()
}

// processDebounced flushes pending changes after the debounce delay.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPending()
		}
	}
}

// processPending reports the files that have been quiet for the debounce
// delay and are not the daemon's own writes.
func (w *Watcher) processPending() {
	w.mu.Lock()
	now := w.now()
	var ready []string
	for path, scheduledAt := range w.pending {
		if now.Sub(scheduledAt) >= w.debounceDelay {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	changed := ready[:0]
	for _, path := range ready {
		if w.isSelfWrite(path) {
			w.logger.Debug("ignoring own write", "path", path)
			continue
		}
		changed = append(changed, path)
	}
	if len(changed) == 0 {
		return
	}
	sort.Strings(changed)

	if w.onChange != nil {
		w.onChange(changed)
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Watcher) isSelfWrite(path string) bool {
	if w.tracker == nil {
		return false
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return w.tracker.IsSelfWrite(path, content)
}

// addWatchRecursive adds a directory and all subdirectories to the watcher.
func (w *Watcher) addWatchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != root && w.shouldIgnore(path) {
				return filepath.SkipDir
			}
			if err := w.fsWatcher.Add(path); err != nil {
				w.logger.Debug("failed to watch", "path", path, "err", err)
			}
		}
		return nil
	})
}

// shouldIgnore reports whether path is inside a hidden directory, is a
// hidden file, or is rejected by the configured Skip function.
func (w *Watcher) shouldIgnore(path string) bool {
	rel, err := filepath.Rel(w.vaultPath, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	if rel != "." {
		for _, part := range strings.Split(rel, string(filepath.Separator)) {
			if strings.HasPrefix(part, ".") || part == "node_modules" {
				return true
			}
		}
	}
	return w.skip != nil && w.skip(path)
}
