package sessiontable

import "fmt"

// Dialect selects the SQL flavor of the underlying storage engine.
type Dialect int

const (
	SQLite Dialect = iota
	PostgreSQL
)

// queries holds the per-engine statement text for one sessions table.
type queries struct {
	createSchema string
	upsert       string
	get          string
	touch        string
	del          string
	clearAll     string
	count        string
	all          string
	sweep        string
}

func (d Dialect) queries(table string) queries {
	if d == PostgreSQL {
		return queries{
			createSchema: fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		sid TEXT PRIMARY KEY,
		sess JSON NOT NULL,
		expire TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_expire ON %[1]s (expire);
	`, table),
			upsert: fmt.Sprintf(`
		INSERT INTO %s (sid, sess, expire)
		VALUES ($1, $2, $3)
		ON CONFLICT(sid) DO UPDATE SET
			sess = EXCLUDED.sess,
			expire = EXCLUDED.expire
	`, table),
			get:      fmt.Sprintf("SELECT sess, expire FROM %s WHERE sid = $1 AND expire > $2", table),
			touch:    fmt.Sprintf("UPDATE %s SET expire = $1 WHERE sid = $2 AND expire > $3", table),
			del:      fmt.Sprintf("DELETE FROM %s WHERE sid = $1", table),
			clearAll: fmt.Sprintf("DELETE FROM %s", table),
			count:    fmt.Sprintf("SELECT COUNT(*) FROM %s", table),
			all:      fmt.Sprintf("SELECT sid, sess, expire FROM %s", table),
			sweep:    fmt.Sprintf("DELETE FROM %s WHERE expire <= $1", table),
		}
	}

	return queries{
		createSchema: fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %[1]s (
		sid TEXT PRIMARY KEY,
		sess TEXT NOT NULL,
		expire TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_%[1]s_expire ON %[1]s (expire);
	`, table),
		upsert: fmt.Sprintf(`
		INSERT INTO %s (sid, sess, expire)
		VALUES (?, ?, ?)
		ON CONFLICT(sid) DO UPDATE SET
			sess = excluded.sess,
			expire = excluded.expire
	`, table),
		get:      fmt.Sprintf("SELECT sess, expire FROM %s WHERE sid = ? AND expire > ?", table),
		touch:    fmt.Sprintf("UPDATE %s SET expire = ? WHERE sid = ? AND expire > ?", table),
		del:      fmt.Sprintf("DELETE FROM %s WHERE sid = ?", table),
		clearAll: fmt.Sprintf("DELETE FROM %s", table),
		count:    fmt.Sprintf("SELECT COUNT(*) FROM %s", table),
		all:      fmt.Sprintf("SELECT sid, sess, expire FROM %s", table),
		sweep:    fmt.Sprintf("DELETE FROM %s WHERE expire <= ?", table),
	}
}
