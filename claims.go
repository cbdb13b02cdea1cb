// claims.go

package authtoken

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Reserved claim names used by the engine. User-id and family claim names
// are configurable; these are the defaults plus the fixed JWT claims.
const (
	ClaimTokenType     = "token_type"
	ClaimExpiry        = "exp"
	ClaimJTI           = "jti"
	ClaimIssuedAt      = "iat"
	ClaimAudience      = "aud"
	ClaimIssuer        = "iss"
	ClaimUserID        = "user_id"
	ClaimUsername      = "username"
	ClaimFamily        = "token_family"
	ClaimFamilyExpiry  = "token_family_exp"
	ClaimRefreshExpiry = "refresh_exp"
	ClaimSecretHash    = "secret_hash"
)

// ClaimSet is the payload of a token: claim name to scalar value. Values
// are the usual JSON scalar types plus int64 for epoch-seconds claims
// stamped by the engine itself.
type ClaimSet map[string]any

// Clone returns a shallow copy so encode paths never mutate the caller's set.
func (c ClaimSet) Clone() ClaimSet {
	out := make(ClaimSet, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// GetString returns the named claim when present and string-typed.
func (c ClaimSet) GetString(name string) (string, bool) {
	v, ok := c[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetUnix returns the named claim as epoch seconds. Decoded JSON numbers
// arrive as float64; engine-stamped values are int64.
func (c ClaimSet) GetUnix(name string) (int64, bool) {
	v, ok := c[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// GetTime returns the named epoch-seconds claim as a time.Time.
func (c ClaimSet) GetTime(name string) (time.Time, bool) {
	unix, ok := c.GetUnix(name)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(unix, 0), true
}

// SetTime stamps the named claim as epoch seconds.
func (c ClaimSet) SetTime(name string, t time.Time) {
	c[name] = t.Unix()
}

func (c ClaimSet) toMapClaims() jwt.MapClaims {
	out := make(jwt.MapClaims, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

func claimSetFromMapClaims(m jwt.MapClaims) ClaimSet {
	out := make(ClaimSet, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
