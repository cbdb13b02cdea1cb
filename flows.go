// flows.go

package authtoken

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Credentials is the input of the credential-based obtain flows.
type Credentials struct {
	Username string
	Password string
}

// CredentialValidator checks credentials against an external credential
// store and returns the matching principal. Any failure (unknown user,
// wrong password) should be an error; the flows collapse every cause into
// ErrNoActiveAccount so callers cannot enumerate accounts.
type CredentialValidator interface {
	Validate(ctx context.Context, creds Credentials) (Principal, error)
}

// LoginRecorder is optionally implemented by credential validators that
// track last-login timestamps. Invoked by the obtain flows when
// UpdateLastLogin is configured.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, principal Principal) error
}

// TokenPair is the result of the obtain and refresh flows. Refresh is
// empty when rotation is not configured on the refresh flow.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// ObtainTokenPair authenticates credentials and mints a refresh token plus
// a derived access token sharing its time base. Every authentication
// failure surfaces as ErrNoActiveAccount.
func (e *Engine) ObtainTokenPair(ctx context.Context, validator CredentialValidator, creds Credentials) (*TokenPair, error) {
	principal, err := e.authenticateCredentials(ctx, validator, creds)
	if err != nil {
		return nil, err
	}

	refresh, err := e.MintForUser(ctx, VariantRefresh, principal)
	if err != nil {
		return nil, err
	}
	access, err := e.DeriveAccess(refresh)
	if err != nil {
		return nil, err
	}

	refreshString, err := refresh.SignedString()
	if err != nil {
		return nil, err
	}
	accessString, err := access.SignedString()
	if err != nil {
		return nil, err
	}

	return &TokenPair{Access: accessString, Refresh: refreshString}, nil
}

// Refresh verifies a refresh token and returns a new access token. When
// rotation is configured the pair also carries a successor refresh token,
// and when blacklist-after-rotation is configured the presented token is
// revoked so it cannot be replayed.
func (e *Engine) Refresh(ctx context.Context, rawRefresh string) (*TokenPair, error) {
	refresh, err := e.Parse(ctx, VariantRefresh, rawRefresh, true)
	if err != nil {
		return nil, err
	}

	access, err := e.DeriveAccess(refresh)
	if err != nil {
		return nil, err
	}
	accessString, err := access.SignedString()
	if err != nil {
		return nil, err
	}

	pair := &TokenPair{Access: accessString}

	if e.config.RotateRefreshTokens {
		if e.config.BlacklistAfterRotation {
			if _, _, err := e.blacklist.Blacklist(ctx, refresh); err != nil {
				return nil, err
			}
		}

		rotated, err := e.Rotate(ctx, refresh)
		if err != nil {
			return nil, err
		}
		rotatedString, err := rotated.SignedString()
		if err != nil {
			return nil, err
		}
		pair.Refresh = rotatedString
	}

	return pair, nil
}

// ObtainSliding authenticates credentials and mints a sliding token: one
// token serving as both credential and refresh handle, bounded by its
// refresh-expiry claim.
func (e *Engine) ObtainSliding(ctx context.Context, validator CredentialValidator, creds Credentials) (string, error) {
	principal, err := e.authenticateCredentials(ctx, validator, creds)
	if err != nil {
		return "", err
	}

	sliding, err := e.MintForUser(ctx, VariantSliding, principal)
	if err != nil {
		return "", err
	}
	return sliding.SignedString()
}

// RefreshSliding renews a sliding token. The token's own expiry may have
// passed, since the refresh window is governed by the refresh-expiry claim
// alone, but the signature, id, type, and revocation checks still apply.
// The renewed token keeps its refresh-expiry claim untouched.
func (e *Engine) RefreshSliding(ctx context.Context, rawSliding string) (string, error) {
	sliding, err := e.parse(ctx, VariantSliding, rawSliding, true, verifyOpts{skipExp: true})
	if err != nil {
		return "", err
	}

	if err := sliding.CheckExpiry(ClaimRefreshExpiry); err != nil {
		return "", err
	}

	if err := e.Slide(sliding); err != nil {
		return "", err
	}
	return sliding.SignedString()
}

// VerifyToken checks a token string of any variant: signature, expiry, id
// presence, and blacklist. It reveals nothing about the token beyond
// validity.
func (e *Engine) VerifyToken(ctx context.Context, raw string) error {
	tok, err := e.Parse(ctx, VariantUntyped, raw, true)
	if err != nil {
		return err
	}

	// Untyped verification skips the revocation checks; the verify flow
	// still refuses blacklisted tokens of any kind.
	if e.config.BlacklistEnabled {
		if err := e.blacklist.Check(ctx, tok); err != nil {
			return err
		}
	}
	return nil
}

// BlacklistToken revokes a single refresh token. The claim checks run but
// the revocation checks are skipped: revoking an already-revoked token is
// a harmless no-op, reported by the returned bool.
func (e *Engine) BlacklistToken(ctx context.Context, rawRefresh string) (bool, error) {
	refresh, err := e.parse(ctx, VariantRefresh, rawRefresh, true, verifyOpts{skipRevocation: true})
	if err != nil {
		return false, err
	}

	_, created, err := e.blacklist.Blacklist(ctx, refresh)
	if err != nil {
		return false, err
	}
	return created, nil
}

// BlacklistTokenFamily revokes the whole family of a refresh token,
// invalidating every token carrying its family id, including tokens
// minted before this call. Raises ErrNoFamily for tokens without a family
// claim.
func (e *Engine) BlacklistTokenFamily(ctx context.Context, rawRefresh string) (bool, error) {
	refresh, err := e.parse(ctx, VariantRefresh, rawRefresh, true, verifyOpts{skipRevocation: true})
	if err != nil {
		return false, err
	}

	_, created, err := e.family.BlacklistFamily(ctx, refresh)
	if err != nil {
		return false, err
	}
	return created, nil
}

// SweepExpired runs the durable store's expiry sweeps: expired outstanding
// tokens (cascading to their blacklist records) and expired families.
// Intended to be driven by a scheduled job.
func (e *Engine) SweepExpired(ctx context.Context) (tokens, families int64, err error) {
	if e.store == nil {
		return 0, 0, nil
	}

	now := e.now()
	tokens, err = e.store.SweepExpiredTokens(ctx, now)
	if err != nil {
		return tokens, 0, fmt.Errorf("failed to sweep expired tokens: %w", err)
	}
	families, err = e.store.SweepExpiredFamilies(ctx, now)
	if err != nil {
		return tokens, families, fmt.Errorf("failed to sweep expired families: %w", err)
	}

	if tokens > 0 || families > 0 {
		e.logger.Info("expiry sweep complete",
			zap.Int64("tokens", tokens),
			zap.Int64("families", families))
	}
	return tokens, families, nil
}

func (e *Engine) authenticateCredentials(ctx context.Context, validator CredentialValidator, creds Credentials) (Principal, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, ErrMissingCredentials
	}

	principal, err := validator.Validate(ctx, creds)
	if err != nil || principal == nil || !principal.IsActive() {
		// Generic failure regardless of cause: credential flows must not
		// reveal whether the account exists.
		return nil, ErrNoActiveAccount
	}

	if e.config.UpdateLastLogin {
		if recorder, ok := validator.(LoginRecorder); ok {
			if err := recorder.RecordLogin(ctx, principal); err != nil {
				e.logger.Warn("failed to record login", zap.Error(err))
			}
		}
	}

	return principal, nil
}
