package sessiontable

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/rs/zerolog"
)

var (
	// ErrMissingClient is returned by New when no storage engine handle is
	// supplied.
	ErrMissingClient = errors.New("missing database client")

	// ErrInvalidTable is returned when the configured table name is not a
	// plain identifier.
	ErrInvalidTable = errors.New("invalid table name")

	// ErrSessionTooLarge is returned when the encoded session payload
	// exceeds the configured MaxSessionBytes.
	ErrSessionTooLarge = errors.New("session data too large")
)

// Store persists opaque session payloads in a three-column table keyed by
// session identifier, with absolute expiry timestamps and an optional
// background sweeper reclaiming logically expired rows.
//
// A Store is safe for concurrent use. Individual statements are the only
// unit of atomicity; correctness of concurrent Set/Touch/sweep relies on
// the engine's statement-level guarantees, not on any locking here.
type Store struct {
	db      *sql.DB
	ownsDB  bool
	dialect Dialect
	table   string

	mu              sync.Mutex // serializes SQLite writes to avoid SQLITE_BUSY
	serializeWrites bool

	upsertStmt *sql.Stmt
	getStmt    *sql.Stmt
	touchStmt  *sql.Stmt
	deleteStmt *sql.Stmt
	clearStmt  *sql.Stmt
	countStmt  *sql.Stmt
	allStmt    *sql.Stmt
	sweepStmt  *sql.Stmt

	cache           *sessionCache
	maxSessionBytes int
	sweeper         *sweeper
	logger          zerolog.Logger
	now             func() time.Time
}

// SweepConfig enables background reclamation of expired rows.
type SweepConfig struct {
	// Clear turns the sweeper on.
	Clear bool
	// Interval between sweeps. Defaults to 15 minutes.
	Interval time.Duration
	// DetachedClose lets Store.Close return without waiting for the
	// sweeper goroutine, mirroring a timer that does not keep the host
	// process alive. Fixed for the lifetime of the store.
	DetachedClose bool
}

// Config configures a Store. Client is mandatory; everything else has
// working defaults.
type Config struct {
	// Client is the storage engine handle. The store never closes a
	// handle it did not open itself, so several stores may share one;
	// each independently provisions the schema and runs its own sweeper.
	Client *sql.DB
	// Dialect of the engine behind Client. Defaults to SQLite.
	Dialect Dialect
	// Table the sessions are kept in. Defaults to "sessions".
	Table string
	// Expired configures the background sweeper; nil disables it.
	Expired *SweepConfig
	// Cache, when set, is consulted before the table on reads and kept in
	// sync on writes. The table stays authoritative; the cache is assumed
	// dedicated to this store.
	Cache *memcache.Client
	// MaxSessionBytes caps the encoded payload size. 0 means unlimited.
	MaxSessionBytes int
	// Logger receives sweeper failures and construction diagnostics.
	// Defaults to a no-op logger.
	Logger *zerolog.Logger
}

// New creates a Store over an existing engine handle, provisioning the
// sessions table if it is absent. Constructing several stores against the
// same handle is safe; the schema is created only once.
func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrMissingClient
	}
	if cfg.Table == "" {
		cfg.Table = "sessions"
	}
	if !isValidTable(cfg.Table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTable, cfg.Table)
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	s := &Store{
		db:              cfg.Client,
		dialect:         cfg.Dialect,
		table:           cfg.Table,
		serializeWrites: cfg.Dialect == SQLite,
		maxSessionBytes: cfg.MaxSessionBytes,
		logger:          logger,
		now:             time.Now,
	}
	if cfg.Cache != nil {
		s.cache = newSessionCache(cfg.Cache)
	}

	q := cfg.Dialect.queries(cfg.Table)

	if _, err := s.db.Exec(q.createSchema); err != nil {
		return nil, fmt.Errorf("failed to create %s table: %w", cfg.Table, err)
	}

	for _, p := range []struct {
		dst  **sql.Stmt
		text string
		name string
	}{
		{&s.upsertStmt, q.upsert, "upsert"},
		{&s.getStmt, q.get, "get"},
		{&s.touchStmt, q.touch, "touch"},
		{&s.deleteStmt, q.del, "delete"},
		{&s.clearStmt, q.clearAll, "clear"},
		{&s.countStmt, q.count, "count"},
		{&s.allStmt, q.all, "all"},
		{&s.sweepStmt, q.sweep, "sweep"},
	} {
		stmt, err := s.db.Prepare(p.text)
		if err != nil {
			s.closeStmts()
			return nil, fmt.Errorf("failed to prepare %s statement: %w", p.name, err)
		}
		*p.dst = stmt
	}

	if cfg.Expired != nil && cfg.Expired.Clear {
		interval := cfg.Expired.Interval
		if interval <= 0 {
			interval = 15 * time.Minute
		}
		s.sweeper = startSweeper(s, interval, cfg.Expired.DetachedClose)
		s.logger.Debug().Dur("interval", interval).Msg("session sweeper armed")
	}

	return s, nil
}

// Set resolves the payload's expiry from its cookie metadata, encodes the
// payload, and atomically inserts or replaces the row for sid.
func (s *Store) Set(ctx context.Context, sid string, sess map[string]any) error {
	expire, err := resolveExpire(sess, s.now())
	if err != nil {
		return err
	}

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer putBuffer(buf)
	if err := encodeSession(buf, sess); err != nil {
		return err
	}
	if s.maxSessionBytes > 0 && buf.Len() > s.maxSessionBytes {
		return ErrSessionTooLarge
	}
	encoded := buf.String()

	if s.serializeWrites {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	if _, err := s.upsertStmt.ExecContext(ctx, sid, encoded, formatExpire(expire)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if s.cache != nil {
		s.cache.set(sid, []byte(encoded), expire, s.now())
	}
	return nil
}

// Get returns the decoded payload for sid, or nil when the row is absent
// or logically expired. A row whose expiry has passed but which the
// sweeper has not yet reclaimed is indistinguishable from a missing one.
func (s *Store) Get(ctx context.Context, sid string) (map[string]any, error) {
	now := s.now()
	if s.cache != nil {
		if sess, ok := s.cache.get(sid, now); ok {
			return sess, nil
		}
	}

	var data []byte
	var expireText string
	err := s.getStmt.QueryRowContext(ctx, sid, formatExpire(now)).Scan(&data, &expireText)
	if err == sql.ErrNoRows {
		return nil, nil // not found or expired
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	if s.maxSessionBytes > 0 && len(data) > s.maxSessionBytes {
		return nil, ErrSessionTooLarge
	}

	sess, err := decodeSession(data)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if expire, perr := parseStoredExpire(expireText); perr == nil {
			s.cache.set(sid, data, expire, now)
		}
	}
	return sess, nil
}

// Touch recomputes the row's expiry from the payload's cookie metadata,
// leaving the stored payload untouched. An absent or already expired row
// is left alone; that still counts as success, so an expired session is
// never resurrected by a touch.
func (s *Store) Touch(ctx context.Context, sid string, sess map[string]any) error {
	now := s.now()
	expire, err := resolveExpire(sess, now)
	if err != nil {
		return err
	}

	if s.serializeWrites {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	if _, err := s.touchStmt.ExecContext(ctx, formatExpire(expire), sid, formatExpire(now)); err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	if s.cache != nil {
		// The cached envelope's expiry is now stale either way; the next
		// Get repopulates it from the table.
		s.cache.remove(sid)
	}
	return nil
}

// Destroy deletes the row for sid. A missing row is not an error.
func (s *Store) Destroy(ctx context.Context, sid string) error {
	if s.serializeWrites {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	if _, err := s.deleteStmt.ExecContext(ctx, sid); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if s.cache != nil {
		s.cache.remove(sid)
	}
	return nil
}

// Clear deletes every row in the table.
func (s *Store) Clear(ctx context.Context) error {
	if s.serializeWrites {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	if _, err := s.clearStmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("failed to clear sessions: %w", err)
	}
	if s.cache != nil {
		s.cache.flush()
	}
	return nil
}

// Count reports the number of rows in the table, logically expired but
// not-yet-swept ones included.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.countStmt.QueryRowContext(ctx).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// All returns every row decoded, with no expiry filtering.
func (s *Store) All(ctx context.Context) ([]*Record, error) {
	rows, err := s.allStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var sid, expireText string
		var data []byte
		if err := rows.Scan(&sid, &data, &expireText); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sess, err := decodeSession(data)
		if err != nil {
			return nil, err
		}
		expire, err := parseStoredExpire(expireText)
		if err != nil {
			return nil, err
		}
		records = append(records, &Record{SID: sid, Sess: sess, Expire: expire})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	return records, nil
}

// sweepExpired bulk-deletes every row whose expiry is at or before now.
func (s *Store) sweepExpired(ctx context.Context) error {
	if s.serializeWrites {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	if _, err := s.sweepStmt.ExecContext(ctx, formatExpire(s.now())); err != nil {
		return fmt.Errorf("failed to sweep expired sessions: %w", err)
	}
	return nil
}

// Close stops the sweeper and releases the prepared statements. The
// underlying engine handle is closed only if the store opened it itself.
func (s *Store) Close() error {
	if s.sweeper != nil {
		s.sweeper.stop()
	}
	s.closeStmts()
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

func (s *Store) closeStmts() {
	for _, stmt := range []*sql.Stmt{
		s.upsertStmt, s.getStmt, s.touchStmt, s.deleteStmt,
		s.clearStmt, s.countStmt, s.allStmt, s.sweepStmt,
	} {
		if stmt != nil {
			stmt.Close()
		}
	}
}

// isValidTable accepts plain identifiers only; the table name is spliced
// into statement text and must never carry quoting or punctuation.
func isValidTable(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			continue
		}
		return false
	}
	return true
}
