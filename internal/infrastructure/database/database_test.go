package database

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("creates database file and directory", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "test.db")

		db, err := Open(ctx, Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := db.ExecContext(ctx, "CREATE TABLE t (x INTEGER)"); err != nil {
			t.Fatalf("create table: %v", err)
		}
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != dbPath {
			t.Errorf("Path() = %v, want %v", db.Path(), dbPath)
		}
	})

	t.Run("in-memory database is shared by the pool", func(t *testing.T) {
		db, err := Open(ctx, Config{Path: ":memory:", BusyTimeout: 1})
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		defer db.Close() //nolint:errcheck // Test cleanup

		if _, err := db.ExecContext(ctx, "CREATE TABLE t (x INTEGER)"); err != nil {
			t.Fatalf("create table: %v", err)
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO t (x) VALUES (1)"); err != nil {
			t.Fatalf("insert: %v", err)
		}
		if db.Stats().MaxOpenConnections != 1 {
			t.Errorf("MaxOpenConnections = %d, want 1", db.Stats().MaxOpenConnections)
		}
	})
}

func TestConnectionString(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    []string
		wantNot []string
	}{
		{
			name: "durable wal",
			cfg:  Config{Path: "/data/a.db", WALMode: true, BusyTimeout: 5, DurableWrites: true},
			want: []string{"_busy_timeout=5000", "_journal_mode=WAL", "_synchronous=FULL"},
		},
		{
			name:    "fast writes",
			cfg:     Config{Path: "/data/a.db", BusyTimeout: 1},
			want:    []string{"_synchronous=NORMAL"},
			wantNot: []string{"_journal_mode=WAL"},
		},
		{
			name:    "memory never uses wal",
			cfg:     Config{Path: ":memory:", WALMode: true},
			wantNot: []string{"_journal_mode=WAL"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := connectionString(tt.cfg)
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("connectionString() = %q, missing %q", got, w)
				}
			}
			for _, w := range tt.wantNot {
				if strings.Contains(got, w) {
					t.Errorf("connectionString() = %q, should not contain %q", got, w)
				}
			}
		})
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := db.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() on closed database should fail")
	}
}

// openTestDB creates a temporary file database for testing.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(context.Background(), Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	return db
}
