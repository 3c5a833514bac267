package sessiontable

import (
	"encoding/json"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// sessionCache is an optional read-through tier in front of the table. It
// holds the encoded payload together with its expiry instant so a cache
// hit never outlives the row it mirrors; memcached's own one-second TTL
// granularity is not trusted for the exact cutoff. The table stays
// authoritative and every cache failure silently degrades to a table
// access.
type sessionCache struct {
	client *memcache.Client
	prefix string
}

func newSessionCache(client *memcache.Client) *sessionCache {
	return &sessionCache{client: client, prefix: "sess:"}
}

type cacheEnvelope struct {
	Sess   json.RawMessage `json:"sess"`
	Expire time.Time       `json:"expire"`
}

func (c *sessionCache) get(sid string, now time.Time) (map[string]any, bool) {
	item, err := c.client.Get(c.prefix + sid)
	if err != nil {
		return nil, false // miss or cache failure, either way fall through
	}

	var env cacheEnvelope
	if err := json.Unmarshal(item.Value, &env); err != nil {
		return nil, false
	}
	if !env.Expire.After(now) {
		return nil, false
	}

	sess, err := decodeSession(env.Sess)
	if err != nil {
		return nil, false
	}
	return sess, true
}

func (c *sessionCache) set(sid string, encoded []byte, expire, now time.Time) {
	if !expire.After(now) {
		return // already dead, nothing worth caching
	}

	env := cacheEnvelope{
		Sess:   append(json.RawMessage(nil), encoded...),
		Expire: expire,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return
	}

	_ = c.client.Set(&memcache.Item{
		Key:        c.prefix + sid,
		Value:      value,
		Expiration: cacheExpiration(now, expire),
	})
}

func (c *sessionCache) remove(sid string) {
	// ErrCacheMiss and transport failures alike are ignored; the table is
	// authoritative.
	_ = c.client.Delete(c.prefix + sid)
}

func (c *sessionCache) flush() {
	_ = c.client.FlushAll()
}

// cacheExpiration converts an absolute expiry into memcached's expiration
// field. Memcached treats values above 30 days (60*60*24*30 seconds) as
// absolute Unix timestamps; anything at or below is a delta in seconds
// from the current time.
func cacheExpiration(now, expire time.Time) int32 {
	const maxDelta = 30 * 24 * 60 * 60 // 30 days in seconds

	duration := expire.Sub(now)

	// A large delta would be read as a timestamp in 1970, so long-lived
	// items must carry the absolute form.
	if duration > maxDelta*time.Second {
		return int32(expire.Unix())
	}

	secs := int32(duration / time.Second)
	if secs < 1 {
		// Sub-second lifetimes round up; zero means "never expire".
		return 1
	}
	return secs
}
