package sessiontable

import "time"

// Record is a persisted session row: the session identifier, the opaque
// middleware-defined payload, and the absolute instant after which the
// record is logically dead. A record whose Expire has passed may still be
// physically present until the sweeper reclaims it.
type Record struct {
	SID    string
	Sess   map[string]any
	Expire time.Time
}

// Expired reports whether the record is logically expired at now.
func (r *Record) Expired(now time.Time) bool {
	return !r.Expire.After(now)
}
