/*
Package sessiontable persists opaque, per-client session state in a SQL
table keyed by session identifier, with TTL semantics and background
reclamation of expired rows.

It stores each session as a three-column row (sid, JSON payload, absolute
expiry timestamp) and exposes the operation surface a session middleware
expects: Get, Set, Destroy, Touch, Clear, Count, and All. The expiry of a
row is derived from the payload's cookie metadata: a non-negative maxAge
in milliseconds wins, an explicit expires date is taken verbatim, and
sessions without either hint live for 24 hours.

Key behaviors:

  - Expiry-aware reads: a row whose expiry has passed is treated as
    absent even before the sweeper has physically removed it.
  - Atomic upserts: writing an existing sid replaces the row with no
    observable partial state.
  - Optional background sweeper: a periodic bulk delete of expired rows
    that survives engine failures and can be configured to not hold up
    Close.
  - Optional Memcached read-through cache in front of the table.

Usage:

	store, err := sessiontable.NewSQLiteStore("sessions.db")
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	ctx := context.Background()
	err = store.Set(ctx, sid, map[string]any{
		"cookie": map[string]any{"maxAge": float64(30 * 60 * 1000)},
		"user":   "mordicus",
	})
	sess, err := store.Get(ctx, sid) // nil once expired

Engine support:

  - SQLite: uses modernc.org/sqlite for a CGO-free, embedded database
    experience.
  - PostgreSQL: uses github.com/lib/pq for robust, relational storage.
  - Memcached (cache tier only): uses github.com/bradfitz/gomemcache.

An existing *sql.DB handle can also be wrapped directly with New; several
stores may share one handle, each provisioning the schema idempotently
and running its own sweeper.

Thread Safety:

A Store is safe for concurrent use by multiple goroutines. Each operation
is a single atomic statement against the engine; there is no
multi-statement transaction spanning an operation.
*/
package sessiontable
