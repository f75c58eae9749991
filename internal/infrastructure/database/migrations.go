package database

import (
	"cmp"
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
	"sync"
	"time"
)

// Migration is one YYYYMMDD_HHMMSS_name.up.sql file. Schema changes are
// additive; there are no down migrations.
type Migration struct {
	Version string
	Name    string
	UpSQL   string
}

// AppliedMigration is a row of schema_migrations.
type AppliedMigration struct {
	Version   string
	AppliedAt time.Time
}

var (
	registryMu sync.RWMutex
	sourceFS   fs.FS
	sourceDir  string
)

// RegisterMigrations sets where Migrate finds its *.up.sql files. The
// migrations package calls it from init with its embedded files.
func RegisterMigrations(fsys fs.FS, dir string) {
	registryMu.Lock()
	sourceFS, sourceDir = fsys, dir
	registryMu.Unlock()
}

// Migrate applies every unapplied migration in version order, one
// transaction each. It stops at the first failure; a rerun resumes there.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	pending, err := db.PendingMigrations(ctx)
	if err != nil {
		return err
	}
	for _, m := range pending {
		if err := db.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %s_%s: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// AppliedMigrations lists schema_migrations oldest first.
func (db *DB) AppliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	rows, err := db.QueryContext(ctx, "SELECT version, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("querying schema_migrations: %w", err)
	}
	defer rows.Close()

	var out []AppliedMigration
	for rows.Next() {
		var (
			a  AppliedMigration
			at string
		)
		if err := rows.Scan(&a.Version, &at); err != nil {
			return nil, fmt.Errorf("scanning schema_migrations: %w", err)
		}
		if a.AppliedAt, err = time.Parse(time.RFC3339, at); err != nil {
			return nil, fmt.Errorf("migration %s applied_at %q: %w", a.Version, at, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// PendingMigrations returns registered migrations not yet applied.
func (db *DB) PendingMigrations(ctx context.Context) ([]Migration, error) {
	applied, err := db.AppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	all, err := loadMigrations()
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(m Migration) bool {
		return slices.ContainsFunc(applied, func(a AppliedMigration) bool { return a.Version == m.Version })
	}), nil
}

func (db *DB) apply(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		m.Version, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording version: %w", err)
	}
	return tx.Commit()
}

// loadMigrations reads the registered *.up.sql files sorted by version.
func loadMigrations() ([]Migration, error) {
	registryMu.RLock()
	fsys, dir := sourceFS, sourceDir
	registryMu.RUnlock()
	if fsys == nil {
		return nil, nil
	}

	files, err := fs.Glob(fsys, path.Join(dir, "*.up.sql"))
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	var out []Migration
	for _, file := range files {
		version, name, ok := parseMigrationFilename(path.Base(file))
		if !ok {
			continue
		}
		body, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		out = append(out, Migration{Version: version, Name: name, UpSQL: string(body)})
	}
	slices.SortFunc(out, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}

// parseMigrationFilename splits "20260118_120000_schedules.up.sql" into
// ("20260118_120000", "schedules").
func parseMigrationFilename(filename string) (version, name string, ok bool) {
	base, ok := strings.CutSuffix(filename, ".up.sql")
	if !ok {
		return "", "", false
	}
	parts := strings.SplitN(base, "_", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	version = parts[0] + "_" + parts[1]
	if len(parts) == 3 {
		return version, parts[2], true
	}
	return version, base, true
}
