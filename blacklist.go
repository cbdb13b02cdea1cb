// blacklist.go

package authtoken

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// blacklistGuard implements single-token revocation for refresh and
// sliding tokens: outstanding tracking at mint, idempotent blacklisting,
// and cache-accelerated verification checks.
//
// Cache discipline: entries are written only when the durable fact is also
// written, so a cache hit may short-circuit the store. A cache miss or a
// cache error is never trusted as "not revoked"; both fall through to the
// durable store.
type blacklistGuard struct {
	engine *Engine
}

func (g *blacklistGuard) cacheKey(jti string) string {
	return g.engine.config.Cache.BlacklistKeyPrefix + jti
}

// RecordOutstanding inserts the durable outstanding record for a freshly
// minted or rotated token, create-if-absent so repeat calls are harmless.
func (g *blacklistGuard) RecordOutstanding(ctx context.Context, tok *Token, userRef string) error {
	jti, ok := tok.claims.GetString(ClaimJTI)
	if !ok {
		return ErrTokenNoID
	}

	raw, err := tok.SignedString()
	if err != nil {
		return err
	}

	expiresAt, _ := tok.claims.GetTime(ClaimExpiry)
	_, _, err = g.engine.store.CreateOutstanding(ctx, OutstandingToken{
		JTI:       jti,
		Token:     raw,
		UserID:    userRef,
		CreatedAt: tok.currentTime,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to record outstanding token: %w", err)
	}
	return nil
}

// Blacklist revokes one token: it ensures the outstanding record exists,
// then creates the blacklist record, both create-if-absent. The returned
// bool reports whether this call created the blacklist record, making the
// operation idempotent. When the cache is enabled the jti is written
// through with the configured TTL.
func (g *blacklistGuard) Blacklist(ctx context.Context, tok *Token) (*BlacklistedToken, bool, error) {
	jti, ok := tok.claims.GetString(ClaimJTI)
	if !ok {
		return nil, false, ErrTokenNoID
	}

	userRef := ""
	if v, ok := tok.UserID(); ok {
		userRef = fmt.Sprint(v)
	}
	if err := g.RecordOutstanding(ctx, tok, userRef); err != nil {
		return nil, false, err
	}

	record, created, err := g.engine.store.CreateBlacklisted(ctx, jti, g.engine.now())
	if err != nil {
		return nil, false, fmt.Errorf("failed to blacklist token: %w", err)
	}

	if g.engine.cache != nil {
		if err := g.engine.cache.Set(ctx, g.cacheKey(jti), g.engine.config.Cache.BlacklistTTL); err != nil {
			// The durable record is already written; a missing cache entry
			// only costs a store round trip on the next check.
			g.engine.logger.Warn("failed to write blacklist cache entry", zap.String("jti", jti), zap.Error(err))
		}
	}

	return record, created, nil
}

// Check raises ErrTokenBlacklisted when a blacklist record exists for the
// token's jti. Cache hit short-circuits; cache miss or error queries the
// durable store. Store errors propagate: an unreachable store must never
// read as "not revoked".
func (g *blacklistGuard) Check(ctx context.Context, tok *Token) error {
	jti, ok := tok.claims.GetString(ClaimJTI)
	if !ok {
		return ErrTokenNoID
	}

	if g.engine.cache != nil {
		hit, err := g.engine.cache.Exists(ctx, g.cacheKey(jti))
		if err != nil {
			g.engine.logger.Warn("blacklist cache check failed, falling through to store", zap.Error(err))
		} else if hit {
			return ErrTokenBlacklisted
		}
	}

	found, err := g.engine.store.IsBlacklisted(ctx, jti)
	if err != nil {
		return fmt.Errorf("blacklist check failed: %w", err)
	}
	if found {
		return ErrTokenBlacklisted
	}
	return nil
}
