package schedule

import "errors"

var (
	// ErrPersistence wraps every store failure (I/O, locked database,
	// closed handle). Submitters must see it; the scheduler loop logs it.
	ErrPersistence = errors.New("schedule: persistence failure")

	// ErrEntryNotFound is returned by Get for an unknown ID.
	ErrEntryNotFound = errors.New("schedule: entry not found")

	// ErrInvalidDueTime is returned when a due-time string cannot be parsed.
	ErrInvalidDueTime = errors.New("schedule: invalid due time")
)
