package automation

import (
	"time"

	"github.com/nerrad567/gray-logic-scheduler/internal/schedule"
)

// minutePrecisionLen is the length of "2006-01-02T15:04".
const minutePrecisionLen = 16

// ParseDueTime parses an ISO-8601 local due time in loc.
// Minute precision is accepted and the seconds default to :00.
func ParseDueTime(s string, loc *time.Location) (time.Time, error) {
	if len(s) == minutePrecisionLen {
		s += ":00"
	}
	return schedule.ParseDue(s, loc)
}
