package token

import (
	"encoding/json"
	"time"
)

// Claim keys written by Mint and read by the request authenticator
const (
	ClaimSubject   = "sub"
	ClaimEmail     = "email"
	ClaimName      = "name"
	ClaimIssuedAt  = "iat"
	ClaimExpiresAt = "exp"
)

// ClaimSet is the set of primitive claims carried in a session token.
// Keys other than the ones above are passed through untouched.
type ClaimSet map[string]any

// Clone returns a shallow copy
func (c ClaimSet) Clone() ClaimSet {
	out := make(ClaimSet, len(c)+3)
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Subject returns the "sub" claim
func (c ClaimSet) Subject() string { return c.str(ClaimSubject) }

// Email returns the "email" claim
func (c ClaimSet) Email() string { return c.str(ClaimEmail) }

// Name returns the "name" (display name) claim
func (c ClaimSet) Name() string { return c.str(ClaimName) }

// IssuedAt returns the "iat" claim, or the zero time if absent
func (c ClaimSet) IssuedAt() time.Time { return c.unix(ClaimIssuedAt) }

// ExpiresAt returns the "exp" claim, or the zero time if absent
func (c ClaimSet) ExpiresAt() time.Time { return c.unix(ClaimExpiresAt) }

func (c ClaimSet) str(key string) string {
	v, _ := c[key].(string)
	return v
}

func (c ClaimSet) unix(key string) time.Time {
	secs, ok := toInt64(c[key])
	if !ok {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}

// normalizeTimes rewrites iat/exp to int64 after JSON decoding produced float64
func (c ClaimSet) normalizeTimes() {
	for _, key := range []string{ClaimIssuedAt, ClaimExpiresAt} {
		if secs, ok := toInt64(c[key]); ok {
			c[key] = secs
		}
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
