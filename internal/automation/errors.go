package automation

import (
	"errors"

	"github.com/nerrad567/gray-logic-scheduler/internal/schedule"
)

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, automation.ErrRejectedPastDue) {
//	    // tell the caller to pick a later time
//	}
var (
	// ErrRejectedPastDue is returned when a deferred command's due time is
	// not in the future. Nothing is written.
	ErrRejectedPastDue = errors.New("automation: schedule time must be in the future")

	// ErrInvalidDueTime is returned when a due-time string does not parse.
	ErrInvalidDueTime = schedule.ErrInvalidDueTime
)
