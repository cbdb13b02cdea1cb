// gate.go

package authtoken

import (
	"context"
	"errors"
	"strings"
)

// UserStore resolves authenticated principals from durable storage.
// FindByID must return ErrUserNotFound (possibly wrapped) on a miss.
type UserStore interface {
	FindByID(ctx context.Context, field string, value any) (Principal, error)
}

// TokenUser is the stateless principal: built directly from token claims
// with no store lookup. The exposed attributes are this explicit, finite
// set; arbitrary claims stay accessible through the validated token, not
// through the principal.
type TokenUser struct {
	ID       any
	Username string
}

func (u *TokenUser) PrincipalID() any { return u.ID }

// IsActive is always true for stateless principals: with no user store
// there is nothing to consult, which is the trade-off this mode makes.
func (u *TokenUser) IsActive() bool { return true }

// Gate authenticates raw authorization header values: it extracts the
// credential, tries each configured token variant in order, and resolves a
// principal either through a user store (stateful) or directly from the
// claims (stateless, when the store is nil).
type Gate struct {
	engine   *Engine
	users    UserStore
	variants []string
}

// NewGate builds a gate trying the given variants in order against each
// presented token. With no variants, only access tokens are accepted. A
// nil user store selects stateless principal resolution.
func NewGate(engine *Engine, users UserStore, variants ...string) *Gate {
	if len(variants) == 0 {
		variants = []string{VariantAccess}
	}
	return &Gate{engine: engine, users: users, variants: variants}
}

// Authenticate drives the full chain: header parsing, codec and claim
// verification, revocation checks, and principal resolution.
//
// A missing header returns (nil, nil, nil): no authentication was
// attempted, letting anonymous access fall through to other schemes. A
// header using a scheme keyword not configured here also returns
// (nil, nil, nil): the credential belongs to some other authenticator. A
// present, matching, but malformed header is an error.
func (g *Gate) Authenticate(ctx context.Context, headerValue string) (Principal, *Token, error) {
	raw, attempted, err := g.extractToken(headerValue)
	if err != nil {
		return nil, nil, err
	}
	if !attempted {
		return nil, nil, nil
	}

	validated, err := g.tryVariants(ctx, raw)
	if err != nil {
		return nil, nil, err
	}

	principal, err := g.resolvePrincipal(ctx, validated)
	if err != nil {
		return nil, nil, err
	}
	return principal, validated, nil
}

// extractToken splits the header into scheme keyword and credential.
func (g *Gate) extractToken(headerValue string) (raw string, attempted bool, err error) {
	parts := strings.Fields(headerValue)
	if len(parts) == 0 {
		return "", false, nil
	}

	matched := false
	for _, scheme := range g.engine.config.AuthHeaderTypes {
		if strings.EqualFold(parts[0], scheme) {
			matched = true
			break
		}
	}
	if !matched {
		return "", false, nil
	}

	if len(parts) != 2 {
		return "", false, ErrMalformedHeader
	}
	return parts[1], true, nil
}

// tryVariants returns the first variant that verifies the raw token, or an
// InvalidTokenError aggregating every variant's rejection. Only token
// rejections fold into the aggregate; a store or cache failure during a
// revocation check is a backend fault, not a verdict on the token, and
// propagates unchanged so callers do not report it as a client error.
func (g *Gate) tryVariants(ctx context.Context, raw string) (*Token, error) {
	failures := make([]VariantFailure, 0, len(g.variants))
	for _, name := range g.variants {
		tok, err := g.engine.Parse(ctx, name, raw, true)
		if err == nil {
			return tok, nil
		}
		var te *TokenError
		if !errors.As(err, &te) {
			return nil, err
		}
		spec, specErr := g.engine.variant(name)
		if specErr != nil {
			return nil, specErr
		}
		failures = append(failures, VariantFailure{
			Variant: name,
			TypeTag: spec.TypeTag,
			Message: err.Error(),
		})
	}
	return nil, &InvalidTokenError{Failures: failures}
}

func (g *Gate) resolvePrincipal(ctx context.Context, tok *Token) (Principal, error) {
	idValue, ok := tok.UserID()
	if !ok {
		return nil, ErrNoUserIDClaim
	}

	if g.users == nil {
		username, _ := tok.claims.GetString(ClaimUsername)
		return &TokenUser{ID: idValue, Username: username}, nil
	}

	principal, err := g.users.FindByID(ctx, g.engine.config.UserIDField, idValue)
	if err != nil {
		return nil, err
	}
	if !principal.IsActive() {
		return nil, ErrUserInactive
	}

	if g.engine.config.RevokeOnSecretChange {
		if err := checkSecretHash(principal, tok); err != nil {
			return nil, err
		}
	}

	return principal, nil
}

// checkSecretHash invalidates tokens issued before the principal's secret
// changed, even when not yet expired. The claim carries a hash of the
// secret at mint time; it must match the hash of the current secret or of
// one of the accepted historical secrets. Principals that expose no secret
// are exempt. A token without the claim cannot prove anything and is
// rejected.
func checkSecretHash(principal Principal, tok *Token) error {
	holder, ok := principal.(SecretHolder)
	if !ok {
		return nil
	}

	claimHash, ok := tok.claims.GetString(ClaimSecretHash)
	if !ok {
		return ErrSecretChanged
	}

	if claimHash == hashSecret(holder.SecretHash()) {
		return nil
	}
	for _, fallback := range holder.FallbackSecretHashes() {
		if claimHash == hashSecret(fallback) {
			return nil
		}
	}
	return ErrSecretChanged
}
