// Package store provides the durable, concurrency-safe conversation
// store: an embedded SQLite file holding per-thread message history and
// workflow checkpoints (spec.md §4.3).
package store

import (
	"context"
	stdsql "database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // registers the pure-Go "sqlite" database/sql driver
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds the settings needed to open the conversation store.
type Config struct {
	// Path is the filesystem location of the SQLite database file
	// (conversation_db_path).
	Path string

	// BusyTimeout bounds how long a writer waits on SQLITE_BUSY before
	// giving up, on top of WAL mode's normal concurrent-reader support.
	BusyTimeout time.Duration
}

// DefaultBusyTimeout matches spec.md §4.3's "multi-second busy timeout".
const DefaultBusyTimeout = 5 * time.Second

// Client wraps the underlying *sql.DB plus the in-process per-thread
// lock registry. Safe for concurrent use.
type Client struct {
	db    *stdsql.DB
	locks *ThreadLockRegistry
}

// DB returns the underlying connection pool, for health checks.
func (c *Client) DB() *stdsql.DB {
	return c.db
}

// Close releases the underlying database connection.
func (c *Client) Close() error {
	return c.db.Close()
}

// NewClient opens (creating if necessary) the SQLite database at
// cfg.Path, applies the WAL/synchronous/busy_timeout pragmas spec.md
// §4.3 requires, and runs pending migrations.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = DefaultBusyTimeout
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create conversation db directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", cfg.Path, cfg.BusyTimeout.Milliseconds())
	db, err := stdsql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open conversation db: %w", err)
	}

	// A single connection avoids SQLITE_BUSY under WAL by serializing
	// all in-process access through it, reads as well as writes.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping conversation db: %w", err)
	}

	if err := runMigrations(db, cfg.Path); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run conversation db migrations: %w", err)
	}

	return &Client{db: db, locks: NewThreadLockRegistry()}, nil
}

func applyPragmas(ctx context.Context, db *stdsql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("apply %q: %w", p, err)
		}
	}
	return nil
}

func runMigrations(db *stdsql.DB, dbName string) error {
	hasMigrations, err := hasEmbeddedMigrations()
	if err != nil {
		return fmt.Errorf("check embedded migrations: %w", err)
	}
	if !hasMigrations {
		return fmt.Errorf("no embedded migration files found — binary built incorrectly")
	}

	// database/sqlite (not sqlite3) matches the modernc.org/sqlite pure-Go
	// driver db was opened with above; sqlite3 expects a mattn/go-sqlite3
	// (CGO) connection and would misbehave against this one.
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite migrate driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, dbName, driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	// Close only the source; closing the migrate driver would close db,
	// which the caller still owns.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("close migration source: %w", err)
	}

	slog.Info("conversation store migrations applied", "db", dbName)
	return nil
}

func hasEmbeddedMigrations() (bool, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return false, fmt.Errorf("read embedded migrations: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".sql" {
			return true, nil
		}
	}
	return false, nil
}
