// Package writeguard tells the daemon's own writes apart from user edits.
//
// Every write the daemon performs is recorded in a Tracker as a (path, content
// fingerprint) pair. When the daemon later sees that file with exactly that
// content it knows nobody has touched it since, so the file is stable at once
// instead of after the typing cooldown.
package writeguard

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"sync"
	"time"

	"github.com/aidanlsb/dailysync/internal/paths"
)

// DefaultCapacity bounds the number of remembered writes.
const DefaultCapacity = 64

// Tracker is a bounded FIFO of recent self-writes.
type Tracker struct {
	mu       sync.Mutex
	capacity int
	order    []string
	entries  map[string]string
}

// NewTracker creates a tracker holding at most capacity writes.
func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker{capacity: capacity, entries: make(map[string]string)}
}

// Fingerprint returns the content digest used by the tracker.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Record remembers that the daemon wrote content to path.
func (t *Tracker) Record(path string, content []byte) {
	key := paths.Normalize(path)
	fp := Fingerprint(content)

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[key]; ok {
		t.removeLocked(key)
	}
	t.entries[key] = fp
	t.order = append(t.order, key)
	for len(t.order) > t.capacity {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.entries, oldest)
	}
}

func (t *Tracker) removeLocked(key string) {
	delete(t.entries, key)
	for i, k := range t.order {
		if k == key {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

// IsSelfWrite reports whether content is exactly what the daemon last wrote
// to path.
func (t *Tracker) IsSelfWrite(path string, content []byte) bool {
	key := paths.Normalize(path)
	t.mu.Lock()
	fp, ok := t.entries[key]
	t.mu.Unlock()
	return ok && fp == Fingerprint(content)
}

// Len returns the number of remembered writes.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

// Debouncer decides whether a file is stable enough to reconcile.
type Debouncer struct {
	Tracker  *Tracker
	Cooldown time.Duration
	Now      func() time.Time
}

// Stable reports whether path may be processed now: either its content is the
// daemon's own last write, or it has not been modified for Cooldown. A missing
// file is stable.
func (d *Debouncer) Stable(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if d.Tracker != nil {
		content, err := os.ReadFile(path)
		if err != nil {
			return false, err
		}
		if d.Tracker.IsSelfWrite(path, content) {
			return true, nil
		}
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	return now().Sub(info.ModTime()) >= d.Cooldown, nil
}
