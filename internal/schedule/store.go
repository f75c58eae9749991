package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-scheduler/internal/command"
)

// Store defines schedule persistence. Implementations must make Append
// durable before returning and must treat MarkExecuted and Remove on a
// missing or already-final entry as a no-op.
type Store interface {
	Append(ctx context.Context, cmd command.Command, dueAt time.Time) (int64, error)
	ListPending(ctx context.Context) ([]Entry, error)
	Get(ctx context.Context, id int64) (Entry, error)
	ListAll(ctx context.Context) ([]Entry, error)
	MarkExecuted(ctx context.Context, id int64) error
	Remove(ctx context.Context, id int64) error
}

// entryColumns is the SELECT column list for schedule queries.
const entryColumns = `id, device_id, action, value, schedule_time, is_executed, created_at, executed_at`

// SQLiteStore implements Store on the schedules table.
//
// Every call holds mu for its whole duration, so a MarkExecuted can never
// interleave with a Remove of the same row.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	loc *time.Location
	now func() time.Time
}

// NewSQLiteStore creates a store over db. Due times are written and read
// as naive local times in loc; nil means time.Local.
func NewSQLiteStore(db *sql.DB, loc *time.Location) *SQLiteStore {
	if loc == nil {
		loc = time.Local
	}
	return &SQLiteStore{db: db, loc: loc, now: time.Now}
}

// Location returns the zone due times are interpreted in.
func (s *SQLiteStore) Location() *time.Location {
	return s.loc
}

// Append inserts a pending entry and returns its ID.
// The row is committed when Append returns.
func (s *SQLiteStore) Append(ctx context.Context, cmd command.Command, dueAt time.Time) (int64, error) {
	return s.insert(ctx, cmd, FormatDue(dueAt, s.loc))
}

// InsertRaw inserts a pending entry with dueRaw stored verbatim.
// It bypasses every check the engine applies and exists for repair
// tooling and tests that need past or corrupt due times.
func (s *SQLiteStore) InsertRaw(ctx context.Context, cmd command.Command, dueRaw string) (int64, error) {
	return s.insert(ctx, cmd, dueRaw)
}

func (s *SQLiteStore) insert(ctx context.Context, cmd command.Command, due string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `INSERT INTO schedules (device_id, action, value, schedule_time, created_at)
		VALUES (?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, query,
		cmd.DeviceID,
		cmd.Action,
		nullableString(cmd.Value),
		due,
		s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: inserting schedule: %v", ErrPersistence, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: reading schedule id: %v", ErrPersistence, err)
	}
	return id, nil
}

// ListPending returns all pending entries ordered by due time, then ID.
// Entries whose due time does not parse sort last, by ID.
func (s *SQLiteStore) ListPending(ctx context.Context) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM schedules WHERE is_executed = 0`

	entries, err := s.query(ctx, query)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		switch {
		case a.DueErr != nil && b.DueErr != nil:
			return a.ID < b.ID
		case a.DueErr != nil:
			return false
		case b.DueErr != nil:
			return true
		case !a.DueAt.Equal(b.DueAt):
			return a.DueAt.Before(b.DueAt)
		default:
			return a.ID < b.ID
		}
	})
	return entries, nil
}

// ListAll returns every entry, pending or executed, ordered by ID.
func (s *SQLiteStore) ListAll(ctx context.Context) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM schedules ORDER BY id`
	return s.query(ctx, query)
}

// Get returns one entry or ErrEntryNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id int64) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT ` + entryColumns + ` FROM schedules WHERE id = ?`
	entry, err := s.scanEntry(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrEntryNotFound
		}
		return Entry{}, fmt.Errorf("%w: querying schedule %d: %v", ErrPersistence, id, err)
	}
	return entry, nil
}

// MarkExecuted flips a pending entry to executed. Missing and already
// executed entries are left alone and no error is returned.
func (s *SQLiteStore) MarkExecuted(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `UPDATE schedules SET is_executed = 1, executed_at = ?
		WHERE id = ? AND is_executed = 0`

	if _, err := s.db.ExecContext(ctx, query, s.now().UTC().Format(time.RFC3339), id); err != nil {
		return fmt.Errorf("%w: marking schedule %d executed: %v", ErrPersistence, id, err)
	}
	return nil
}

// Remove deletes an entry in any state. A missing entry is not an error.
func (s *SQLiteStore) Remove(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: deleting schedule %d: %v", ErrPersistence, id, err)
	}
	return nil
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying schedules: %v", ErrPersistence, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := s.scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning schedule: %v", ErrPersistence, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating schedules: %v", ErrPersistence, err)
	}
	return entries, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanEntry(row scanner) (Entry, error) {
	var (
		e          Entry
		value      sql.NullString
		executed   int
		createdAt  sql.NullString
		executedAt sql.NullString
	)

	err := row.Scan(
		&e.ID,
		&e.Command.DeviceID,
		&e.Command.Action,
		&value,
		&e.DueRaw,
		&executed,
		&createdAt,
		&executedAt,
	)
	if err != nil {
		return Entry{}, err
	}

	if value.Valid && value.String != "" {
		v := value.String
		e.Command.Value = &v
	}

	e.State = StatePending
	if executed != 0 {
		e.State = StateExecuted
	}

	e.DueAt, e.DueErr = ParseDue(e.DueRaw, s.loc)
	e.CreatedAt = parseTimestamp(createdAt)
	e.ExecutedAt = parseTimestamp(executedAt)

	return e, nil
}

func parseTimestamp(ns sql.NullString) *time.Time {
	if !ns.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullableString(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}
