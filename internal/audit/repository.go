// Package audit keeps an append-only history of device state changes and
// schedule lifecycle events in the audit_logs table.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timeLayout sorts lexicographically in UTC.
const timeLayout = "2006-01-02T15:04:05.000000Z"

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Entity types.
const (
	EntityDevice   = "device"
	EntitySchedule = "schedule"
)

// AuditLog is one row of audit_logs.
type AuditLog struct { //nolint:revive // audit.AuditLog reads better at call sites
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id,omitempty"`
	Source     string         `json:"source"`
	Details    map[string]any `json:"details,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	Limit      int // 1..200, default 50
	Offset     int
}

// ListResult is one page of audit logs plus the unpaged total.
type ListResult struct {
	Logs   []AuditLog `json:"logs"`
	Total  int        `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// Repository persists audit logs.
type Repository interface {
	Create(ctx context.Context, log *AuditLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository implements Repository over the audit_logs table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a repository using db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create stores log, filling in ID and CreatedAt when unset.
func (r *SQLiteRepository) Create(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	log.CreatedAt = log.CreatedAt.UTC()

	var details sql.NullString
	if len(log.Details) > 0 {
		b, err := json.Marshal(log.Details)
		if err != nil {
			return fmt.Errorf("encoding audit details: %w", err)
		}
		details = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, entity_type, entity_id, source, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.Action, log.EntityType,
		sql.NullString{String: log.EntityID, Valid: log.EntityID != ""},
		log.Source, details, log.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}
	return nil
}

// clamp normalises paging bounds.
func (f Filter) clamp() Filter {
	switch {
	case f.Limit <= 0:
		f.Limit = defaultLimit
	case f.Limit > maxLimit:
		f.Limit = maxLimit
	}
	f.Offset = max(f.Offset, 0)
	return f
}

// where renders the filter as a WHERE clause with positional args.
func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	for _, c := range []struct{ col, val string }{
		{"action", f.Action},
		{"entity_type", f.EntityType},
		{"entity_id", f.EntityID},
	} {
		if c.val != "" {
			clauses = append(clauses, c.col+" = ?")
			args = append(args, c.val)
		}
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List returns the matching page, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	filter = filter.clamp()
	where, args := filter.where()

	res := &ListResult{Logs: []AuditLog{}, Limit: filter.Limit, Offset: filter.Offset}

	//nolint:gosec // where holds only fixed column names
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs"+where, args...).Scan(&res.Total); err != nil {
		return nil, fmt.Errorf("counting audit logs: %w", err)
	}

	//nolint:gosec // where holds only fixed column names
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, action, entity_type, entity_id, source, details, created_at
		 FROM audit_logs`+where+` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		append(args, filter.Limit, filter.Offset)...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit logs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		log, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		res.Logs = append(res.Logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit logs: %w", err)
	}
	return res, nil
}

func scanLog(rows *sql.Rows) (AuditLog, error) {
	var (
		log               AuditLog
		entityID, details sql.NullString
		createdAt         string
	)
	if err := rows.Scan(&log.ID, &log.Action, &log.EntityType, &entityID, &log.Source, &details, &createdAt); err != nil {
		return log, fmt.Errorf("scanning audit log: %w", err)
	}
	log.EntityID = entityID.String

	if details.String != "" {
		if err := json.Unmarshal([]byte(details.String), &log.Details); err != nil {
			return log, fmt.Errorf("decoding details of audit log %s: %w", log.ID, err)
		}
	}

	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return log, fmt.Errorf("parsing audit log timestamp %q: %w", createdAt, err)
	}
	log.CreatedAt = t
	return log, nil
}
