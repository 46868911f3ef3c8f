// Package history records finished playback sessions in a local SQLite
// database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/xid"
	_ "modernc.org/sqlite"

	"github.com/autotap/autotap/internal/scheduler"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("history entry not found")

// Entry is one recorded session.
type Entry struct {
	ID          string
	Timeline    string
	State       string
	Reason      string
	Started     time.Time
	Ended       time.Time
	Total       int
	Dispatched  int
	LateGroups  int
	BaseDelay   time.Duration
	FinalOffset time.Duration
	MaxLate     time.Duration
	Error       string
}

// FromResult builds an Entry for a scheduler result. ref should already be
// free of credentials.
func FromResult(ref string, res *scheduler.Result, runErr error) Entry {
	e := Entry{
		ID:          res.ID,
		Timeline:    ref,
		State:       res.State.String(),
		Reason:      res.Reason.String(),
		Started:     res.Started,
		Ended:       res.Ended,
		Total:       res.Total,
		Dispatched:  res.Dispatched,
		LateGroups:  res.LateGroups,
		BaseDelay:   res.BaseDelay,
		FinalOffset: res.FinalOffset,
		MaxLate:     res.MaxLate,
	}
	if runErr != nil {
		e.Error = runErr.Error()
	}
	return e
}

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id           TEXT PRIMARY KEY,
	timeline     TEXT NOT NULL,
	state        TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	started_ms   INTEGER NOT NULL DEFAULT 0,
	ended_ms     INTEGER NOT NULL DEFAULT 0,
	total        INTEGER NOT NULL DEFAULT 0,
	dispatched   INTEGER NOT NULL DEFAULT 0,
	late_groups  INTEGER NOT NULL DEFAULT 0,
	base_delay_us   INTEGER NOT NULL DEFAULT 0,
	final_offset_us INTEGER NOT NULL DEFAULT 0,
	max_late_us     INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS sessions_ended ON sessions (ended_ms DESC);
`

// Store is the session history database.
type Store struct {
	db *sql.DB
}

// DefaultPath is <user config dir>/autotap/history.db.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "autotap", "history.db")
}

// Open opens or creates the database at path. ":memory:" opens a private
// in-memory database.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("error: cannot create history directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("error: cannot open history database: %w", err)
	}
	// one connection keeps an in-memory database alive and serializes writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("error: cannot create history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func unixMS(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMS(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Record inserts e, replacing an entry with the same id. An empty id gets
// a fresh one, returned.
func (s *Store) Record(ctx context.Context, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = xid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions (
			id, timeline, state, reason, started_ms, ended_ms, total, dispatched,
			late_groups, base_delay_us, final_offset_us, max_late_us, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Timeline, e.State, e.Reason, unixMS(e.Started), unixMS(e.Ended),
		e.Total, e.Dispatched, e.LateGroups, e.BaseDelay.Microseconds(),
		e.FinalOffset.Microseconds(), e.MaxLate.Microseconds(), e.Error,
	)
	if err != nil {
		return "", fmt.Errorf("error: failed to record session: %w", err)
	}
	return e.ID, nil
}

const selectColumns = `id, timeline, state, reason, started_ms, ended_ms, total, dispatched,
	late_groups, base_delay_us, final_offset_us, max_late_us, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(r scanner) (Entry, error) {
	var (
		e                          Entry
		started, ended             int64
		baseDelay, offset, maxLate int64
	)
	err := r.Scan(&e.ID, &e.Timeline, &e.State, &e.Reason, &started, &ended,
		&e.Total, &e.Dispatched, &e.LateGroups, &baseDelay, &offset, &maxLate, &e.Error)
	if err != nil {
		return Entry{}, err
	}
	e.Started = fromUnixMS(started)
	e.Ended = fromUnixMS(ended)
	e.BaseDelay = time.Duration(baseDelay) * time.Microsecond
	e.FinalOffset = time.Duration(offset) * time.Microsecond
	e.MaxLate = time.Duration(maxLate) * time.Microsecond
	return e, nil
}

// List returns up to limit entries, most recently ended first. A limit of
// zero or less returns every entry.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM sessions ORDER BY ended_ms DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("error: failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("error: failed to scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error: failed to iterate history rows: %w", err)
	}
	return entries, nil
}

// Get returns the entry with the given id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM sessions WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// Flush deletes every entry and returns how many were removed.
func (s *Store) Flush(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions`)
	if err != nil {
		return 0, fmt.Errorf("error: failed to flush history: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) Close() error {
	return s.db.Close()
}
