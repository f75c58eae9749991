// Package schedule persists deferred commands and runs them when due.
//
// SQLiteStore keeps entries in the schedules table. Due times are stored as
// naive local timestamps (DueLayout) so a database written by an earlier
// deployment stays readable.
//
// Scheduler polls the store every PollInterval. Each cycle reads the clock
// once, walks the pending entries in (due time, id) order and executes the
// ones that are due. Success marks the entry executed; failure leaves it
// pending for the next cycle. Entries with an unparsable due time are
// skipped forever.
//
// Cancelling concurrently with a cycle is safe: MarkExecuted and Remove are
// both no-ops on a missing row, so an entry ends up either executed and
// gone or never executed and gone.
package schedule
