// family.go

package authtoken

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// familyGuard implements token-family tracking: every refresh token
// descending from one original login shares a family id, so a suspected
// theft revokes the whole lineage at once, including access tokens
// derived from it when propagation is configured.
//
// Family claims are stamped exactly once, at the original mint. Rotation
// copies them verbatim (see Engine.Rotate); regenerating them would break
// the lineage and with it the whole point of family revocation.
type familyGuard struct {
	engine *Engine
}

func (g *familyGuard) cacheKey(familyID string) string {
	return g.engine.config.Cache.FamilyKeyPrefix + familyID
}

// StampNew generates a fresh family id, stamps the family claims onto the
// token, and creates the durable family record. Called only for original
// mints, never for rotations.
func (g *familyGuard) StampNew(ctx context.Context, tok *Token, userRef string) error {
	familyID, err := newTokenID()
	if err != nil {
		return err
	}

	cfg := g.engine.config.Family
	tok.claims[cfg.FamilyClaim] = familyID

	var expiresAt *time.Time
	if cfg.Lifetime > 0 {
		exp := tok.currentTime.Add(cfg.Lifetime)
		tok.claims.SetTime(cfg.FamilyExpiryClaim, exp)
		expiresAt = &exp
	}

	_, _, err = g.engine.store.CreateFamily(ctx, TokenFamily{
		FamilyID:  familyID,
		UserID:    userRef,
		CreatedAt: tok.currentTime,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return fmt.Errorf("failed to record token family: %w", err)
	}
	return nil
}

// Check raises ErrFamilyBlacklisted when the token's family has been
// revoked and ErrFamilyExpired when the family expiry claim has passed.
// Tokens carrying no family claim (ad-hoc mints) are exempt. Cache
// discipline matches the single-token blacklist: hits short-circuit,
// misses and errors fall through to the durable store.
func (g *familyGuard) Check(ctx context.Context, tok *Token) error {
	cfg := g.engine.config.Family
	familyID, ok := tok.claims.GetString(cfg.FamilyClaim)
	if !ok || familyID == "" {
		return nil
	}

	revoked := false
	if g.engine.cache != nil {
		hit, err := g.engine.cache.Exists(ctx, g.cacheKey(familyID))
		if err != nil {
			g.engine.logger.Warn("family cache check failed, falling through to store", zap.Error(err))
		} else if hit {
			revoked = true
		}
	}

	if !revoked {
		found, err := g.engine.store.IsFamilyBlacklisted(ctx, familyID)
		if err != nil {
			return fmt.Errorf("family blacklist check failed: %w", err)
		}
		revoked = found
	}
	if revoked {
		return ErrFamilyBlacklisted
	}

	if familyExp, ok := tok.claims.GetTime(cfg.FamilyExpiryClaim); ok {
		if !familyExp.Add(g.engine.config.Leeway).After(tok.currentTime) {
			return ErrFamilyExpired
		}
	}

	return nil
}

// BlacklistFamily revokes the whole family the token belongs to. Tokens
// without a family claim cannot be family-revoked and raise ErrNoFamily.
// The returned bool reports whether this call created the record.
func (g *familyGuard) BlacklistFamily(ctx context.Context, tok *Token) (*BlacklistedTokenFamily, bool, error) {
	cfg := g.engine.config.Family
	familyID, ok := tok.claims.GetString(cfg.FamilyClaim)
	if !ok || familyID == "" {
		return nil, false, ErrNoFamily
	}

	record, created, err := g.engine.store.CreateBlacklistedFamily(ctx, familyID, g.engine.now())
	if err != nil {
		return nil, false, fmt.Errorf("failed to blacklist token family: %w", err)
	}

	if g.engine.cache != nil {
		if err := g.engine.cache.Set(ctx, g.cacheKey(familyID), g.engine.config.Cache.FamilyTTL); err != nil {
			g.engine.logger.Warn("failed to write family cache entry", zap.String("family_id", familyID), zap.Error(err))
		}
	}

	return record, created, nil
}
