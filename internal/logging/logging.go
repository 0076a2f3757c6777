// Package logging builds the daemon's charmbracelet logger and the registry
// that keeps repeating per-file errors from flooding the log every tick.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Options holds configuration for console logging.
type Options struct {
	Level      string
	Format     string
	Timestamps bool
	Caller     bool
	Prefix     string
	Output     io.Writer
}

// DefaultOptions returns default options for console logging.
func DefaultOptions() Options {
	return Options{
		Level:      "info",
		Format:     "text",
		Timestamps: true,
		Prefix:     "dsync",
		Output:     os.Stderr,
	}
}

// ParseFormat maps a format name to a charmbracelet formatter.
func ParseFormat(s string) (log.Formatter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text":
		return log.TextFormatter, nil
	case "json":
		return log.JSONFormatter, nil
	case "logfmt":
		return log.LogfmtFormatter, nil
	default:
		return log.TextFormatter, fmt.Errorf("unknown log format %q (want text, json or logfmt)", s)
	}
}

// New creates a logger with the given options.
func New(opts Options) (*log.Logger, error) {
	level := log.InfoLevel
	if strings.TrimSpace(opts.Level) != "" {
		parsed, err := log.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	formatter, err := ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return log.NewWithOptions(out, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: opts.Timestamps,
		ReportCaller:    opts.Caller,
		Prefix:          opts.Prefix,
	}), nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// ErrorRegistry logs an error once per cause key until the key is forgotten.
type ErrorRegistry struct {
	mu     sync.Mutex
	logger *log.Logger
	seen   map[string]struct{}
}

// NewErrorRegistry creates an empty registry that reports through logger.
func NewErrorRegistry(logger *log.Logger) *ErrorRegistry {
	if logger == nil {
		logger = Discard()
	}
	return &ErrorRegistry{logger: logger, seen: make(map[string]struct{})}
}

// Once logs msg at error level the first time key is seen and reports whether
// it logged.
func (r *ErrorRegistry) Once(key, msg string, keyvals ...interface{}) bool {
	r.mu.Lock()
	_, dup := r.seen[key]
	if !dup {
		r.seen[key] = struct{}{}
	}
	r.mu.Unlock()
	if dup {
		return false
	}
	r.logger.Error(msg, keyvals...)
	return true
}

// Forget re-arms key so its next failure is logged again.
func (r *ErrorRegistry) Forget(key string) {
	r.mu.Lock()
	delete(r.seen, key)
	r.mu.Unlock()
}

// Seen reports whether key is currently suppressed.
func (r *ErrorRegistry) Seen(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[key]
	return ok
}
