package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-scheduler/internal/command"
)

// DueLayout is the persisted form of a due time: timezone-naive local time
// at second precision.
const DueLayout = "2006-01-02T15:04:05"

// State is the execution state of an entry.
type State string

const (
	StatePending  State = "pending"
	StateExecuted State = "executed"
)

// Entry is one persisted deferred command.
type Entry struct {
	ID      int64           `json:"id"`
	Command command.Command `json:"command"`

	// DueAt is the parsed due time. Zero when DueErr is set.
	DueAt time.Time `json:"due_at"`

	// DueRaw is the due time exactly as stored.
	DueRaw string `json:"due_raw"`

	// DueErr is non-nil when DueRaw does not parse. Such entries are
	// never executed.
	DueErr error `json:"-"`

	State      State      `json:"state"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	ExecutedAt *time.Time `json:"executed_at,omitempty"`
}

// IsDue reports whether the entry should run at now.
func (e Entry) IsDue(now time.Time) bool {
	return e.State == StatePending && e.DueErr == nil && !e.DueAt.After(now)
}

// FormatDue renders t in loc using DueLayout. Sub-second precision is dropped.
func FormatDue(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DueLayout)
}

// dueLayouts are the ISO-8601 forms accepted for naive local times.
var dueLayouts = []string{
	DueLayout,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDue parses raw as a due time in loc.
//
// Naive forms are interpreted in loc. A string carrying an explicit offset
// (RFC 3339) is honoured and converted to loc.
func ParseDue(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDueTime)
	}

	for _, layout := range dueLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDueTime, raw)
}
