package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// DefaultBusyTimeout is how long a connection waits for a lock.
const DefaultBusyTimeout = 5 * time.Second

// migration upgrades a database to version.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations run in order for every version above the database's
// user_version. schema.sql already contains their result for new
// databases; the statements must therefore be idempotent.
var migrations = []migration{
	{1, "intent index", `CREATE INDEX IF NOT EXISTS idx_matches_intent ON matches(intent, seq)`},
	{2, "recorded_at index", `CREATE INDEX IF NOT EXISTS idx_matches_recorded ON matches(recorded_at)`},
}

// schemaVersion is the user_version of a fully migrated database.
var schemaVersion = migrations[len(migrations)-1].version

// Store provides durable storage for the match log and workflow snapshots.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures Open.
type Option func(*openConfig)

type openConfig struct {
	logger      *slog.Logger
	busyTimeout time.Duration
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *openConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithBusyTimeout sets the SQLite busy timeout. Default: DefaultBusyTimeout.
func WithBusyTimeout(d time.Duration) Option {
	return func(c *openConfig) {
		c.busyTimeout = d
	}
}

// Open creates or opens a SQLite database at path, then applies pragmas,
// the schema and any pending migrations. Opening an existing database
// again is safe.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - the busy timeout for lock contention
func Open(path string, opts ...Option) (*Store, error) {
	cfg := openConfig{logger: slog.Default(), busyTimeout: DefaultBusyTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, logger: cfg.logger}
	if err := s.init(cfg); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(cfg openConfig) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout.Milliseconds()),
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("failed to apply pragmas: %q: %w", p, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return s.migrate()
}

// migrate runs the migrations newer than user_version in one transaction.
func (s *Store) migrate() error {
	version, err := s.Version()
	if err != nil {
		return err
	}
	if version >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			return fmt.Errorf("migrate to v%d (%s): %w", m.version, m.name, err)
		}
		s.logger.Info("store migrated", "version", m.version, "migration", m.name)
	}
	// PRAGMA does not take bind parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return tx.Commit()
}

// Version returns the schema version recorded in the database.
func (s *Store) Version() (int, error) {
	var v int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return v, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// pragma reads a pragma as text.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("failed to query %s: %w", name, err)
	}
	return value, nil
}
