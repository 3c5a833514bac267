package sessiontable

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// SQLiteConfig holds configuration for a SQLite-backed store.
type SQLiteConfig struct {
	DSN             string
	Table           string
	Expired         *SweepConfig
	Cache           *memcache.Client
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MaxSessionBytes int
	Logger          *zerolog.Logger
}

// NewSQLiteStore opens a SQLite database at dsn and creates a store over
// it with default configuration.
func NewSQLiteStore(dsn string) (*Store, error) {
	return NewSQLiteStoreWithConfig(SQLiteConfig{
		DSN:          dsn,
		MaxOpenConns: 16, // concurrent readers; writes are serialized by mutex
		MaxIdleConns: 16,
	})
}

// NewSQLiteStoreWithConfig opens a SQLite database and creates a store
// over it with custom configuration. The store owns the handle and closes
// it on Close.
func NewSQLiteStoreWithConfig(cfg SQLiteConfig) (*Store, error) {
	// Inject PRAGMAs into the DSN so they apply to every pooled
	// connection, not just the first one.

	// synchronous=NORMAL is safe in WAL mode and faster.
	if !strings.Contains(cfg.DSN, "synchronous") {
		cfg.DSN = appendDSNParam(cfg.DSN, "_pragma=synchronous=NORMAL")
	}

	// busy_timeout to wait for locks instead of failing immediately.
	if !strings.Contains(cfg.DSN, "busy_timeout") {
		cfg.DSN = appendDSNParam(cfg.DSN, "_pragma=busy_timeout=5000")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	// WAL mode is persistent for the database file, so executing it once
	// is sufficient.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store, err := New(Config{
		Client:          db,
		Dialect:         SQLite,
		Table:           cfg.Table,
		Expired:         cfg.Expired,
		Cache:           cfg.Cache,
		MaxSessionBytes: cfg.MaxSessionBytes,
		Logger:          cfg.Logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	store.ownsDB = true
	return store, nil
}

func appendDSNParam(dsn, param string) string {
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + param
}
