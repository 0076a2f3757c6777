// Package journal records every reconciliation mutation in a SQLite database
// so an operator can see what the daemon did and why.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aidanlsb/dailysync/internal/sqlutil"
)

// Action names one kind of mutation.
type Action string

const (
	ActionRegister     Action = "register"
	ActionSyncToDaily  Action = "sync_s2d"
	ActionSyncToSource Action = "sync_d2s"
	ActionConflict     Action = "conflict"
	ActionAppend       Action = "append"
	ActionGraduate     Action = "graduate"
	ActionDeleteSource Action = "delete_source"
	ActionDeleteDaily  Action = "delete_daily"
	ActionDispatch     Action = "dispatch"
	ActionRescue       Action = "rescue"
	ActionMint         Action = "mint"
)

// Actions lists every action in display order.
var Actions = []Action{
	ActionRegister, ActionMint, ActionRescue, ActionDispatch,
	ActionSyncToDaily, ActionSyncToSource, ActionConflict,
	ActionAppend, ActionGraduate, ActionDeleteSource, ActionDeleteDaily,
}

// Event is one recorded mutation.
type Event struct {
	ID      int64     `json:"id"`
	Time    time.Time `json:"time"`
	Date    string    `json:"date,omitempty"`
	BlockID string    `json:"block_id,omitempty"`
	Action  Action    `json:"action"`
	Path    string    `json:"path,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// Filter narrows Recent. Zero fields match everything.
type Filter struct {
	BlockID string
	Date    string
	Actions []Action
	Limit   int
}

// DefaultLimit bounds Recent when Filter.Limit is zero.
const DefaultLimit = 50

// CurrentVersion is the journal schema version.
const CurrentVersion = 1

// Journal is the SQLite journal handle.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	j := &Journal{db: db}
	if err := j.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// OpenInMemory opens an in-memory journal (for testing).
func OpenInMemory() (*Journal, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// Every pooled connection would otherwise get its own empty database.
	db.SetMaxOpenConns(1)
	j := &Journal{db: db}
	if err := j.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the journal.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) initialize() error {
	schema := `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at INTEGER NOT NULL,          -- Unix nanoseconds
			date TEXT NOT NULL,           -- owning daily-note date
			block_id TEXT NOT NULL,
			action TEXT NOT NULL,
			path TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_events_block ON events(block_id);
		CREATE INDEX IF NOT EXISTS idx_events_date ON events(date);
		CREATE INDEX IF NOT EXISTS idx_events_action ON events(action);
	`
	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	_, err := j.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('version', ?)`,
		fmt.Sprintf("%d", CurrentVersion))
	if err != nil {
		return fmt.Errorf("failed to set journal version: %w", err)
	}
	return nil
}

// Record appends ev. A zero Time is stamped with the current time.
func (j *Journal) Record(ctx context.Context, ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (at, date, block_id, action, path, detail) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.Time.UnixNano(), ev.Date, ev.BlockID, string(ev.Action), ev.Path, ev.Detail)
	if err != nil {
		return fmt.Errorf("record %s %s: %w", ev.Action, ev.BlockID, err)
	}
	return nil
}

// Recent returns matching events, newest first.
func (j *Journal) Recent(ctx context.Context, f Filter) ([]Event, error) {
	var where []string
	var args []any
	if f.BlockID != "" {
		where = append(where, "block_id = ?")
		args = append(args, f.BlockID)
	}
	if f.Date != "" {
		where = append(where, "date = ?")
		args = append(args, f.Date)
	}
	if len(f.Actions) > 0 {
		ph, actionArgs := sqlutil.In(f.Actions)
		where = append(where, "action IN ("+ph+")")
		args = append(args, actionArgs...)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `SELECT id, at, date, block_id, action, path, detail FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	return sqlutil.ScanRows(rows, scanEvent)
}

func scanEvent(rows *sql.Rows) (Event, error) {
	var ev Event
	var at int64
	var action string
	if err := rows.Scan(&ev.ID, &at, &ev.Date, &ev.BlockID, &action, &ev.Path, &ev.Detail); err != nil {
		return Event{}, err
	}
	ev.Time = time.Unix(0, at)
	ev.Action = Action(action)
	return ev, nil
}

// Counts returns the number of events per action recorded at or after since.
func (j *Journal) Counts(ctx context.Context, since time.Time) (map[Action]int, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT action, COUNT(*) FROM events WHERE at >= ? GROUP BY action`, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("count journal: %w", err)
	}
	defer rows.Close()

	out := make(map[Action]int)
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, err
		}
		out[Action(action)] = n
	}
	return out, rows.Err()
}

// Prune deletes events older than before and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM events WHERE at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune journal: %w", err)
	}
	return res.RowsAffected()
}
