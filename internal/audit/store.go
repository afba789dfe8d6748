// Package audit keeps a SQLite trail of resolved requests: who asked, for
// what kind of operation, and how the reviewer decided. Payloads and secrets
// are never stored.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	signbroker "github.com/vaultsandbox/signbroker-go"
)

// Entry is one stored resolution.
type Entry struct {
	ID         string
	RequestID  uint64
	Origin     string
	Kind       signbroker.Kind
	Outcome    signbroker.Outcome
	CreatedAt  time.Time
	ResolvedAt time.Time
	Duration   time.Duration
}

// timeFormat is fixed-width so that stored timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements signbroker.Recorder on a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ signbroker.Recorder = (*SQLiteStore)(nil)

// Open opens (and creates if needed) the database at path. Use ":memory:"
// for a throwaway store.
func Open(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	// every connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)

	s, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open database and creates the schema.
func New(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate audit database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS resolutions (
		id TEXT PRIMARY KEY,
		request_id INTEGER NOT NULL,
		origin TEXT NOT NULL,
		kind TEXT NOT NULL,
		outcome TEXT NOT NULL,
		created_at TEXT NOT NULL,
		resolved_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS resolutions_resolved_at ON resolutions (resolved_at);`)
	return err
}

// Record implements signbroker.Recorder.
func (s *SQLiteStore) Record(ctx context.Context, r signbroker.Resolution) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO resolutions (
		id, request_id, origin, kind, outcome, created_at, resolved_at, duration_ms
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		int64(r.RequestID),
		r.Origin,
		string(r.Kind),
		string(r.Outcome),
		r.CreatedAt.UTC().Format(timeFormat),
		r.ResolvedAt.UTC().Format(timeFormat),
		r.ResolvedAt.Sub(r.CreatedAt).Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert resolution %d: %w", r.RequestID, err)
	}
	return nil
}

// List returns up to limit entries, most recently resolved first.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, origin, kind, outcome, created_at, resolved_at, duration_ms
		FROM resolutions
		ORDER BY resolved_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the number of entries with the given outcome, or all
// entries when outcome is empty.
func (s *SQLiteStore) Count(ctx context.Context, outcome signbroker.Outcome) (int, error) {
	var n int
	var err error
	if outcome == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resolutions`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resolutions WHERE outcome = ?`, string(outcome)).Scan(&n)
	}
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e                 Entry
		requestID         int64
		kind, outcome     string
		created, resolved string
		durationMS        int64
	)
	if err := rows.Scan(&e.ID, &requestID, &e.Origin, &kind, &outcome, &created, &resolved, &durationMS); err != nil {
		return Entry{}, err
	}

	var err error
	if e.CreatedAt, err = time.Parse(timeFormat, created); err != nil {
		return Entry{}, fmt.Errorf("parse created_at: %w", err)
	}
	if e.ResolvedAt, err = time.Parse(timeFormat, resolved); err != nil {
		return Entry{}, fmt.Errorf("parse resolved_at: %w", err)
	}
	e.RequestID = uint64(requestID)
	e.Kind = signbroker.Kind(kind)
	e.Outcome = signbroker.Outcome(outcome)
	e.Duration = time.Duration(durationMS) * time.Millisecond
	return e, nil
}
