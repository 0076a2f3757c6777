package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestTryAcquireWritesPIDAndExcludes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "dailysync.lock")

	first := NewLock(path, nil)
	if err := first.TryAcquire(); err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	t.Cleanup(func() { first.Release() })

	pid, err := first.HolderPID()
	if err != nil {
		t.Fatalf("HolderPID: %v", err)
	}
	if pid != os.Getpid() {
		t.Fatalf("pid = %d, want %d", pid, os.Getpid())
	}

	second := NewLock(path, nil)
	if err := second.TryAcquire(); !errors.Is(err, ErrLocked) {
		t.Fatalf("second TryAcquire error = %v, want ErrLocked", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := second.TryAcquire(); err != nil {
		t.Fatalf("TryAcquire after release: %v", err)
	}
	second.Release()
}

func TestAcquireTakesOverAfterSIGTERM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dailysync.lock")
	holder := NewLock(path, nil)
	if err := holder.TryAcquire(); err != nil {
		t.Fatal(err)
	}
	// Pretend another process holds the lock.
	if err := os.WriteFile(path, []byte("424242\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var sent []syscall.Signal
	l := NewLock(path, nil)
	l.PollInterval = time.Millisecond
	l.signal = func(pid int, sig syscall.Signal) error {
		if pid != 424242 {
			t.Fatalf("signalled pid %d", pid)
		}
		sent = append(sent, sig)
		switch sig {
		case unix.SIGTERM:
			holder.Release()
			return nil
		case 0:
			return unix.ESRCH
		}
		return nil
	}

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l.Release()

	if len(sent) != 2 || sent[0] != unix.SIGTERM || sent[1] != 0 {
		t.Fatalf("signals = %v, want SIGTERM then a liveness check", sent)
	}
	data, _ := os.ReadFile(path)
	if strings.TrimSpace(string(data)) != strconv.Itoa(os.Getpid()) {
		t.Fatalf("lock file holds %q after takeover", data)
	}
}

func TestAcquireKillsUnresponsiveHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dailysync.lock")
	holder := NewLock(path, nil)
	if err := holder.TryAcquire(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("424242\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	killed := false
	l := NewLock(path, nil)
	l.GracePeriod = 5 * time.Millisecond
	l.PollInterval = time.Millisecond
	l.signal = func(pid int, sig syscall.Signal) error {
		if sig == unix.SIGKILL {
			killed = true
			holder.Release()
		}
		return nil
	}

	if err := l.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l.Release()
	if !killed {
		t.Fatal("expected SIGKILL after the grace period")
	}
}

func TestAcquireFailsWhenHolderSurvives(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dailysync.lock")
	holder := NewLock(path, nil)
	if err := holder.TryAcquire(); err != nil {
		t.Fatal(err)
	}
	defer holder.Release()
	if err := os.WriteFile(path, []byte("424242\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLock(path, nil)
	l.GracePeriod = time.Millisecond
	l.PollInterval = time.Millisecond
	l.signal = func(int, syscall.Signal) error { return nil }

	if err := l.Acquire(context.Background()); !errors.Is(err, ErrLocked) {
		t.Fatalf("Acquire error = %v, want ErrLocked", err)
	}
}

func TestHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dailysync.lock")
	if _, held := Holder(path); held {
		t.Fatal("missing lock file reported as held")
	}

	l := NewLock(path, nil)
	if err := l.TryAcquire(); err != nil {
		t.Fatal(err)
	}
	pid, held := Holder(path)
	if !held || pid != os.Getpid() {
		t.Fatalf("Holder = (%d, %v), want (%d, true)", pid, held, os.Getpid())
	}

	l.Release()
	if _, held := Holder(path); held {
		t.Fatal("released lock reported as held")
	}
}
