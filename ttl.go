package sessiontable

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultTTL is the session lifetime applied when the payload carries no
// expiry hint at all.
const DefaultTTL = 24 * time.Hour

// ErrBadExpires is returned when a cookie "expires" value cannot be
// interpreted as an instant.
var ErrBadExpires = errors.New("unparseable cookie expires value")

// expireLayout is fixed-width UTC with millisecond precision, so stored
// expire text compares lexicographically in chronological order.
const expireLayout = "2006-01-02T15:04:05.000Z"

func formatExpire(t time.Time) string {
	return t.UTC().Format(expireLayout)
}

func parseStoredExpire(s string) (time.Time, error) {
	t, err := time.Parse(expireLayout, s)
	if err != nil {
		// Rows written by other tooling may carry full RFC 3339 text.
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored expire %q: %w", s, err)
	}
	return t, nil
}

// resolveExpire derives the absolute expiry instant for a session payload
// from its cookie metadata. A finite, non-negative cookie.maxAge
// (milliseconds) always wins, even when an explicit cookie.expires is also
// present; an explicit expires is taken verbatim, never recomputed against
// now; with neither hint the session lives for DefaultTTL from now.
//
// maxAge of zero is valid and yields an already-expired instant; the
// resolver does not clamp to a minimum.
func resolveExpire(sess map[string]any, now time.Time) (time.Time, error) {
	if cookie, ok := sess["cookie"].(map[string]any); ok {
		if v, present := cookie["maxAge"]; present {
			if ms, usable := maxAgeMillis(v); usable {
				return now.Add(time.Duration(ms * float64(time.Millisecond))), nil
			}
		}
		if v, present := cookie["expires"]; present && v != nil {
			return parseExpires(v)
		}
	}
	return now.Add(DefaultTTL), nil
}

// maxAgeMillis normalizes the numeric forms a maxAge shows up in after
// JSON decoding or direct construction. Negative, NaN, infinite, or
// non-numeric values do not count as a usable maxAge; precedence then
// falls through to expires.
func maxAgeMillis(v any) (float64, bool) {
	var ms float64
	switch n := v.(type) {
	case float64:
		ms = n
	case int:
		ms = float64(n)
	case int64:
		ms = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		ms = f
	default:
		return 0, false
	}
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
		return 0, false
	}
	return ms, true
}

// parseExpires normalizes the heterogeneous expires forms (time.Time,
// RFC 3339 text, RFC 1123 cookie dates) into one instant.
func parseExpires(v any) (time.Time, error) {
	switch e := v.(type) {
	case time.Time:
		return e, nil
	case *time.Time:
		if e != nil {
			return *e, nil
		}
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC1123, time.RFC1123Z} {
			if t, err := time.Parse(layout, e); err == nil {
				return t, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("%w: %v", ErrBadExpires, v)
}
