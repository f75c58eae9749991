package database

import (
	"context"
	"embed"
	"io/fs"
	"testing"
)

//go:embed testdata/*
var testMigrationsFS embed.FS

// useMigrations registers fsys/dir for the duration of a test.
func useMigrations(t *testing.T, fsys fs.FS, dir string) {
	t.Helper()

	registryMu.RLock()
	origFS, origDir := sourceFS, sourceDir
	registryMu.RUnlock()

	RegisterMigrations(fsys, dir)
	t.Cleanup(func() { RegisterMigrations(origFS, origDir) })
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrationsFS, "testdata")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// Both migrations ran, in version order: colour exists on widgets.
	if _, err := db.ExecContext(ctx, "INSERT INTO widgets (label, colour) VALUES ('a', 'red')"); err != nil {
		t.Fatalf("insert into migrated table: %v", err)
	}

	applied, err := db.AppliedMigrations(ctx)
	if err != nil {
		t.Fatalf("AppliedMigrations() error = %v", err)
	}
	pending, err := db.PendingMigrations(ctx)
	if err != nil {
		t.Fatalf("PendingMigrations() error = %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("applied = %d, want 2", len(applied))
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
	if applied[0].Version != "20260101_000000" || applied[0].AppliedAt.IsZero() {
		t.Errorf("applied[0] = %+v", applied[0])
	}

	// Idempotent.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	useMigrations(t, nil, "")

	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantOK      bool
	}{
		{"20260118_120000_schedules.up.sql", "20260118_120000", "schedules", true},
		{"20260118_120000_add_executed_at.up.sql", "20260118_120000", "add_executed_at", true},
		{"20260118_120000.up.sql", "20260118_120000", "20260118_120000", true},
		{"20260118_120000_schedules.down.sql", "", "", false},
		{"20260118_120000_schedules.sql", "", "", false},
		{"README.txt", "", "", false},
		{"nounderscore.up.sql", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK || version != tt.wantVersion || name != tt.wantName {
				t.Errorf("parseMigrationFilename(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.filename, version, name, ok, tt.wantVersion, tt.wantName, tt.wantOK)
			}
		})
	}
}
