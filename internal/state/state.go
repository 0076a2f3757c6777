// Package state persists what the engine last knew about every task: its
// fingerprint, source file, owning date and when it was last seen.
//
// The store is a JSON object keyed by block ID. Every save first copies the
// current file to a ".bak" sibling; loading falls back from the main file to
// the backup and finally to an empty store.
package state

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/aidanlsb/dailysync/internal/atomicfile"
	"github.com/aidanlsb/dailysync/internal/logging"
	"github.com/aidanlsb/dailysync/internal/paths"
)

// ErrCorrupt is returned when a state file exists but cannot be decoded.
var ErrCorrupt = errors.New("state file corrupt")

// IDLength is the length of minted block IDs.
const IDLength = 6

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Entry is the persisted record for one block ID.
type Entry struct {
	Hash       string  `json:"hash"`
	SourcePath string  `json:"source_path"`
	LastSeen   float64 `json:"last_seen"`
	Date       string  `json:"date,omitempty"`
}

// Origin records where Load found the state.
type Origin int

const (
	// OriginEmpty means neither file existed.
	OriginEmpty Origin = iota
	// OriginMain means the main file decoded.
	OriginMain
	// OriginBackup means the main file was unusable and the backup decoded.
	OriginBackup
	// OriginReset means both files were unusable and the store was reset.
	OriginReset
)

func (o Origin) String() string {
	switch o {
	case OriginMain:
		return "main"
	case OriginBackup:
		return "backup"
	case OriginReset:
		return "reset"
	default:
		return "empty"
	}
}

// Store is the in-memory state, saved explicitly with Save.
type Store struct {
	path    string
	entries map[string]Entry
	origin  Origin

	logger *log.Logger
	errs   *logging.ErrorRegistry

	// Now stamps LastSeen. Defaults to time.Now.
	Now func() time.Time
	// Random feeds MintID. Defaults to crypto/rand.
	Random io.Reader
}

// BackupPath returns the backup file used for path.
func BackupPath(path string) string {
	return path + ".bak"
}

// Load reads the store at path. It never fails: unreadable state falls back
// to the backup and then to an empty store, with the reset logged as critical.
func Load(path string, logger *log.Logger, errs *logging.ErrorRegistry) *Store {
	if logger == nil {
		logger = logging.Discard()
	}
	if errs == nil {
		errs = logging.NewErrorRegistry(logger)
	}
	s := &Store{path: path, entries: map[string]Entry{}, logger: logger, errs: errs}

	mainExists, backupExists := fileExists(path), fileExists(BackupPath(path))

	if mainExists {
		entries, err := readFile(path)
		if err == nil {
			s.entries, s.origin = entries, OriginMain
			return s
		}
		errs.Once("state_load_main", "state file unreadable, trying backup", "path", path, "err", err)
	}

	if backupExists {
		entries, err := readFile(BackupPath(path))
		if err == nil {
			s.entries, s.origin = entries, OriginBackup
			logger.Info("restored state from backup", "path", BackupPath(path), "tasks", len(entries))
			return s
		}
		errs.Once("state_load_bak", "state backup unreadable", "path", BackupPath(path), "err", err)
	}

	if mainExists || backupExists {
		s.origin = OriginReset
		logger.Error("state unrecoverable, reset to empty", "critical", true, "path", path)
	}
	return s
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func readFile(path string) (map[string]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if entries == nil {
		entries = map[string]Entry{}
	}
	return entries, nil
}

// Path returns the state file path.
func (s *Store) Path() string { return s.path }

// Origin reports where Load found the state.
func (s *Store) Origin() Origin { return s.origin }

// Len returns the number of tracked tasks.
func (s *Store) Len() int { return len(s.entries) }

// Get returns the entry for id.
func (s *Store) Get(id string) (Entry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// Hash returns the recorded fingerprint for id, or "".
func (s *Store) Hash(id string) string {
	return s.entries[id].Hash
}

// Date returns the recorded owning date for id, or "".
func (s *Store) Date(id string) string {
	return s.entries[id].Date
}

// Has reports whether id is tracked.
func (s *Store) Has(id string) bool {
	_, ok := s.entries[id]
	return ok
}

// IDs returns every tracked ID in ascending order.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Entries returns a copy of every entry.
func (s *Store) Entries() map[string]Entry {
	out := make(map[string]Entry, len(s.entries))
	for id, e := range s.entries {
		out[id] = e
	}
	return out
}

// Update records id's current fingerprint and source. An empty date keeps
// the previously recorded one.
func (s *Store) Update(id, hash, sourcePath, date string) {
	entry := Entry{
		Hash:       hash,
		SourcePath: paths.Normalize(sourcePath),
		LastSeen:   s.stamp(),
		Date:       date,
	}
	if date == "" {
		entry.Date = s.entries[id].Date
	}
	s.entries[id] = entry
}

// Touch refreshes LastSeen and, when date is set, the owning date.
func (s *Store) Touch(id, date string) {
	e, ok := s.entries[id]
	if !ok {
		return
	}
	e.LastSeen = s.stamp()
	if date != "" {
		e.Date = date
	}
	s.entries[id] = e
}

// Remove forgets id.
func (s *Store) Remove(id string) {
	delete(s.entries, id)
}

func (s *Store) stamp() float64 {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return float64(now().UnixNano()) / float64(time.Second)
}

// FindIDByHash returns the ID recorded for (sourcePath, hash). IDs are
// searched in ascending order and skip reports IDs that are already claimed
// elsewhere in the current pass.
func (s *Store) FindIDByHash(sourcePath, hash string, skip func(id string) bool) (string, bool) {
	if hash == "" {
		return "", false
	}
	want := paths.Normalize(sourcePath)
	for _, id := range s.IDs() {
		e := s.entries[id]
		if e.SourcePath != want || e.Hash != hash {
			continue
		}
		if skip != nil && skip(id) {
			continue
		}
		return id, true
	}
	return "", false
}

// MintID returns a fresh random ID that is neither tracked nor taken.
func (s *Store) MintID(taken func(id string) bool) (string, error) {
	src := s.Random
	if src == nil {
		src = rand.Reader
	}
	buf := make([]byte, IDLength)
	for attempt := 0; attempt < 1000; attempt++ {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", fmt.Errorf("mint id: %w", err)
		}
		id := make([]byte, IDLength)
		for i, b := range buf {
			id[i] = idAlphabet[int(b)%len(idAlphabet)]
		}
		candidate := string(id)
		if s.Has(candidate) || (taken != nil && taken(candidate)) {
			continue
		}
		return candidate, nil
	}
	return "", errors.New("mint id: no free id after 1000 attempts")
}

// Save writes the store, copying the previous file to the backup first.
// A main file that failed to load is never rotated over the backup.
func (s *Store) Save() error {
	if s.origin == OriginBackup {
		s.logger.Debug("state backup kept", "path", BackupPath(s.path))
	} else if prev, err := os.ReadFile(s.path); err == nil {
		if err := atomicfile.WriteFile(BackupPath(s.path), prev, 0o644); err != nil {
			s.logger.Warn("state backup failed", "path", BackupPath(s.path), "err", err)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.entries); err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err := atomicfile.WriteFile(s.path, buf.Bytes(), 0o644); err != nil {
		s.errs.Once("state_save", "state save failed", "path", s.path, "err", err)
		return fmt.Errorf("save state: %w", err)
	}
	s.errs.Forget("state_save")
	s.origin = OriginMain
	return nil
}
