package sessiontable

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

// PostgreSQLConfig holds configuration for a PostgreSQL-backed store.
type PostgreSQLConfig struct {
	DSN             string
	Table           string
	Expired         *SweepConfig
	Cache           *memcache.Client
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MaxSessionBytes int
	Logger          *zerolog.Logger
}

// NewPostgreSQLStore opens a PostgreSQL database at dsn and creates a
// store over it with default configuration.
func NewPostgreSQLStore(dsn string) (*Store, error) {
	return NewPostgreSQLStoreWithConfig(PostgreSQLConfig{
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
	})
}

// NewPostgreSQLStoreWithConfig opens a PostgreSQL database and creates a
// store over it with custom configuration. The store owns the handle and
// closes it on Close.
func NewPostgreSQLStoreWithConfig(cfg PostgreSQLConfig) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgresql database: %w", err)
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
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	// Test the connection before provisioning anything.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgresql database: %w", err)
	}

	store, err := New(Config{
		Client:          db,
		Dialect:         PostgreSQL,
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
