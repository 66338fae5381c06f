/**
 * CONTEXT:   SQLite connection management for the screentimed embedded store
 * INPUT:     Database path and connection pool configuration
 * OUTPUT:    A pooled, WAL-mode SQLite connection with the schema applied
 * BUSINESS:  The store is the single writer of all persisted state (spec 5)
 * RISK:      Medium - database initialization failure is the one fatal daemon condition
 */
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aaronsb/screentimed/internal/errkind"
	"github.com/aaronsb/screentimed/pkg/logger"
)

//go:embed schema.sql
var schemaFS embed.FS

// Store is the embedded relational database described in spec section 3.
// It is the single writer; every other component reaches persisted state
// only through its methods.
type Store struct {
	db     *sql.DB
	path   string
	mu     sync.RWMutex
	log    logger.Logger
}

// Config configures the pooled connection.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns sensible pool defaults for a single-host daemon.
func DefaultConfig(path string) Config {
	return Config{
		Path:            path,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	}
}

// Open creates the data directory if needed, opens a pooled WAL-mode
// SQLite connection, and applies the schema. A failure here is the one
// condition spec section 7 calls fatal: StoreUnavailable.
func Open(cfg Config, log logger.Logger) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: database path cannot be empty", errkind.ConfigInvalid)
	}

	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create database directory: %v", errkind.StoreUnavailable, err)
	}

	dsn := cfg.Path +
		"?_foreign_keys=on" +
		"&_journal_mode=WAL" +
		"&_synchronous=NORMAL" +
		"&_busy_timeout=5000"

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite database: %v", errkind.StoreUnavailable, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	s := &Store{db: db, path: cfg.Path, log: log}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping database: %v", errkind.StoreUnavailable, err)
	}

	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("%w: read embedded schema: %v", errkind.StoreUnavailable, err)
	}

	if err := s.WithTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, string(schemaSQL))
		return err
	}); err != nil {
		return fmt.Errorf("%w: apply schema: %v", errkind.StoreUnavailable, err)
	}

	if err := s.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: apply migrations: %v", errkind.StoreUnavailable, err)
	}

	if err := s.SeedDefaultTemplates(ctx); err != nil {
		return fmt.Errorf("%w: seed default templates: %v", errkind.StoreUnavailable, err)
	}

	s.log.Info("store initialized", "path", s.path)
	return nil
}

// WithTransaction runs fn inside a transaction, committing on success and
// rolling back on any error fn returns.
func (s *Store) WithTransaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// ChangeEpoch returns the current change-epoch counter, which the Daemon
// Loop compares against its last-seen value at the top of every tick to
// decide whether to invalidate its pattern/user caches (spec 4.10).
func (s *Store) ChangeEpoch(ctx context.Context) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'change_epoch'`).Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("read change epoch: %w", err)
	}
	return v, nil
}

// bumpEpoch increments the change-epoch counter. Must be called inside
// the same transaction as the write that should invalidate caches.
func bumpEpoch(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `UPDATE meta SET value = CAST(value AS INTEGER) + 1 WHERE key = 'change_epoch'`)
	return err
}
