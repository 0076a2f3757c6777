// Package daemon runs reconciliation passes on a schedule while holding the
// vault's exclusive process lock.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"github.com/aidanlsb/dailysync/internal/logging"
)

// ErrLocked is returned when another instance holds the lock.
var ErrLocked = errors.New("another dailysync instance holds the lock")

// Lock is the exclusive advisory lock on a PID file.
type Lock struct {
	path   string
	fl     *flock.Flock
	logger *log.Logger

	// GracePeriod bounds how long a SIGTERMed holder may take to exit.
	GracePeriod time.Duration
	// PollInterval is how often the holder's liveness is checked.
	PollInterval time.Duration

	signal func(pid int, sig syscall.Signal) error
}

// NewLock creates an unacquired lock on path.
func NewLock(path string, logger *log.Logger) *Lock {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Lock{
		path:         path,
		fl:           flock.New(path),
		logger:       logger,
		GracePeriod:  3 * time.Second,
		PollInterval: 100 * time.Millisecond,
		signal:       unix.Kill,
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// TryAcquire takes the lock without waiting and records the current PID.
func (l *Lock) TryAcquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	locked, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring lock %s: %w", l.path, err)
	}
	if !locked {
		return ErrLocked
	}
	pid := strconv.Itoa(os.Getpid()) + "\n"
	if err := os.WriteFile(l.path, []byte(pid), 0o644); err != nil {
		_ = l.fl.Unlock()
		return fmt.Errorf("writing pid to %s: %w", l.path, err)
	}
	return nil
}

// Acquire takes the lock, terminating a previous holder if necessary.
//
// On contention the holder's PID is read from the lock file. It gets SIGTERM
// and GracePeriod to exit, then SIGKILL. The lock is retried once.
func (l *Lock) Acquire(ctx context.Context) error {
	err := l.TryAcquire()
	if !errors.Is(err, ErrLocked) {
		return err
	}

	pid, perr := l.HolderPID()
	switch {
	case perr != nil:
		l.logger.Warn("lock held but holder pid unreadable", "path", l.path, "err", perr)
	case pid == os.Getpid():
		return ErrLocked
	default:
		l.logger.Warn("lock held, taking over", "pid", pid)
		if err := l.terminate(ctx, pid); err != nil {
			return err
		}
	}

	if err := l.waitForRelease(ctx); err != nil {
		return err
	}
	if err := l.TryAcquire(); err != nil {
		return fmt.Errorf("takeover failed: %w", err)
	}
	l.logger.Info("lock taken over", "path", l.path)
	return nil
}

// HolderPID reads the PID recorded in the lock file.
func (l *Lock) HolderPID() (int, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q in %s", strings.TrimSpace(string(data)), l.path)
	}
	return pid, nil
}

func (l *Lock) terminate(ctx context.Context, pid int) error {
	if err := l.signal(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("signal holder %d: %w", pid, err)
	}
	if exited, err := l.waitExit(ctx, pid, l.GracePeriod); err != nil || exited {
		return err
	}
	l.logger.Warn("holder ignored SIGTERM, killing", "pid", pid)
	if err := l.signal(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return fmt.Errorf("kill holder %d: %w", pid, err)
	}
	return nil
}

// waitExit polls until pid is gone or timeout elapses.
func (l *Lock) waitExit(ctx context.Context, pid int, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		if !l.alive(pid) {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(l.PollInterval):
		}
	}
}

// alive checks pid with signal 0. EPERM means the process exists.
func (l *Lock) alive(pid int) bool {
	err := l.signal(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// waitForRelease gives the kernel a moment to drop a dead holder's lock.
func (l *Lock) waitForRelease(ctx context.Context) error {
	deadline := time.Now().Add(time.Second)
	trial := flock.New(l.path)
	for {
		locked, err := trial.TryLock()
		if err == nil && locked {
			return trial.Unlock()
		}
		if time.Now().After(deadline) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.PollInterval):
		}
	}
}

// Release drops the lock.
func (l *Lock) Release() error {
	if !l.fl.Locked() {
		return nil
	}
	return l.fl.Unlock()
}

// Holder reports whether another process holds the lock at path, and its PID
// when the lock file records one. It never modifies the file.
func Holder(path string) (int, bool) {
	if _, err := os.Stat(path); err != nil {
		return 0, false
	}
	trial := flock.New(path)
	locked, err := trial.TryLock()
	if err != nil {
		return 0, false
	}
	if locked {
		_ = trial.Unlock()
		return 0, false
	}
	pid, err := NewLock(path, nil).HolderPID()
	if err != nil {
		return 0, true
	}
	return pid, true
}
