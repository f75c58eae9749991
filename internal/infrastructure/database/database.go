package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
)

const (
	memoryPath  = ":memory:"
	dirMode     = 0o750
	fileMode    = 0o600
	openTimeout = 5 * time.Second
)

// Config maps the database section of config.yaml.
type Config struct {
	// Path of the SQLite file, or ":memory:". Missing directories are created.
	Path string

	// WALMode lets readers proceed while the scheduler writes.
	WALMode bool

	// BusyTimeout is how long to wait on a locked database, in seconds.
	BusyTimeout int

	// DurableWrites selects synchronous=FULL so an acknowledged schedule
	// survives power loss. Otherwise synchronous=NORMAL.
	DurableWrites bool
}

// DB is the scheduler's SQLite handle.
type DB struct {
	*sql.DB
	path string
}

// Open connects to the database in cfg and pings it. The pool holds exactly
// one connection: SQLite allows a single writer and ":memory:" lives and
// dies with its connection.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	onDisk := cfg.Path != memoryPath
	if onDisk {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirMode); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", connectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	pingCtx, cancel := context.WithTimeout(ctx, openTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if onDisk {
		_ = os.Chmod(cfg.Path, fileMode) //nolint:errcheck // file appears on first write
	}
	return &DB{DB: sqlDB, path: cfg.Path}, nil
}

// connectionString renders the go-sqlite3 DSN for cfg.
func connectionString(cfg Config) string {
	q := url.Values{}
	q.Set("_busy_timeout", strconv.Itoa(cfg.BusyTimeout*int(time.Second/time.Millisecond)))
	q.Set("_foreign_keys", "on")
	q.Set("_synchronous", "NORMAL")
	if cfg.DurableWrites {
		q.Set("_synchronous", "FULL")
	}
	if cfg.WALMode && cfg.Path != memoryPath {
		q.Set("_journal_mode", "WAL")
	}
	return "file:" + cfg.Path + "?" + q.Encode()
}

// Path returns the configured database path.
func (db *DB) Path() string { return db.path }

// Close releases the connection.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// HealthCheck runs SELECT 1.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check: %w", err)
	}
	return nil
}
