// Package database provides SQLite connectivity for the scheduler.
//
// It manages:
//   - Opening the database file with WAL mode and busy timeout
//   - Durable writes (synchronous=FULL) for the schedule ledger
//   - Embedded, additive schema migrations
//
// All queries elsewhere use parameterised statements. The database file is
// created with 0600 permissions.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
