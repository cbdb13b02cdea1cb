// token.go

package authtoken

import (
	"context"
	"fmt"
	"time"
)

// Token wraps a claim set together with the variant it was built for and a
// current-time snapshot captured at construction. Every expiry comparison
// during this token's lifetime uses that snapshot, never wall clock, so a
// verification pass is internally consistent across all of its checks.
//
// A Token is constructed either fresh (trusted mint, no verification
// needed) or from a wire string via Engine.Parse, in which case it must
// pass Verify before being used as a credential.
type Token struct {
	engine      *Engine
	spec        VariantSpec
	claims      ClaimSet
	currentTime time.Time
	raw         string
}

// verifyOpts tunes internal verification paths. The zero value is the full
// check set used for trust decisions.
type verifyOpts struct {
	skipExp        bool // sliding refresh validates refresh_exp instead of exp
	skipRevocation bool // blacklist flows verify claims on a token they are about to revoke
}

// Variant returns the variant this token was constructed for.
func (t *Token) Variant() VariantSpec { return t.spec }

// Claims returns the live claim set. Mutating it invalidates any cached
// wire encoding only via Set; direct map writes after SignedString are the
// caller's responsibility.
func (t *Token) Claims() ClaimSet { return t.claims }

// Get returns a claim value.
func (t *Token) Get(name string) (any, bool) {
	v, ok := t.claims[name]
	return v, ok
}

// Set writes a claim value and drops the cached wire encoding.
func (t *Token) Set(name string, value any) {
	t.claims[name] = value
	t.raw = ""
}

// JTI returns the token id claim, empty when absent.
func (t *Token) JTI() string {
	jti, _ := t.claims.GetString(ClaimJTI)
	return jti
}

// Type returns the token_type claim, empty when absent.
func (t *Token) Type() string {
	typ, _ := t.claims.GetString(ClaimTokenType)
	return typ
}

// FamilyID returns the configured family claim, empty when absent.
func (t *Token) FamilyID() string {
	id, _ := t.claims.GetString(t.engine.config.Family.FamilyClaim)
	return id
}

// UserID returns the configured user id claim.
func (t *Token) UserID() (any, bool) {
	v, ok := t.claims[t.engine.config.UserIDClaim]
	return v, ok
}

// ExpiresAt returns the exp claim as a time.
func (t *Token) ExpiresAt() (time.Time, bool) {
	return t.claims.GetTime(ClaimExpiry)
}

// CurrentTime returns the snapshot captured when this token was constructed.
func (t *Token) CurrentTime() time.Time { return t.currentTime }

// SignedString encodes and signs the claim set, caching the result until a
// claim changes.
func (t *Token) SignedString() (string, error) {
	if t.raw != "" {
		return t.raw, nil
	}
	raw, err := t.engine.codec.Encode(t.claims)
	if err != nil {
		return "", err
	}
	t.raw = raw
	return raw, nil
}

// Verify runs the full claim and revocation check set: expiry (exclusive,
// with leeway), id presence, type match (unless the variant is untyped),
// blacklist, and family checks per configuration. A nil return means the
// token is safe to use.
func (t *Token) Verify(ctx context.Context) error {
	return t.verify(ctx, verifyOpts{})
}

func (t *Token) verify(ctx context.Context, opts verifyOpts) error {
	if !opts.skipExp {
		if err := t.CheckExpiry(ClaimExpiry); err != nil {
			return err
		}
	}

	if _, ok := t.claims.GetString(ClaimJTI); !ok {
		return ErrTokenNoID
	}

	if !t.spec.SkipTypeCheck {
		typ, ok := t.claims.GetString(ClaimTokenType)
		if !ok || typ != t.spec.TypeTag {
			return ErrTokenWrongType
		}
	}

	if opts.skipRevocation {
		return nil
	}

	if t.engine.config.BlacklistEnabled && t.spec.Revocable {
		if err := t.engine.blacklist.Check(ctx, t); err != nil {
			return err
		}
	}

	if t.engine.config.Family.Enabled && t.familyChecked() {
		if err := t.engine.family.Check(ctx, t); err != nil {
			return err
		}
	}

	return nil
}

// familyChecked reports whether family checks apply to this token's
// variant: refresh tokens always, access tokens when propagation is
// configured.
func (t *Token) familyChecked() bool {
	if t.spec.FamilyLineage {
		return true
	}
	return t.spec.Name == VariantAccess && t.engine.config.Family.CheckOnAccess
}

// CheckExpiry checks the named epoch-seconds claim against this token's
// captured current time plus the configured leeway. Expiry is exclusive: a
// claim equal to "now" has expired. A missing claim fails.
func (t *Token) CheckExpiry(claim string) error {
	expiresAt, ok := t.claims.GetTime(claim)
	if !ok {
		if claim == ClaimExpiry {
			return ErrTokenNoExpiry
		}
		return &TokenError{Code: CodeTokenNoExpiry, Message: fmt.Sprintf("token has no %q claim", claim)}
	}

	if expiresAt.Add(t.engine.config.Leeway).After(t.currentTime) {
		return nil
	}

	if claim == ClaimRefreshExpiry {
		return ErrRefreshExpired
	}
	return ErrTokenExpired
}
