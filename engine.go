// engine.go

package authtoken

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Token variant names. Variant behavior is described by a VariantSpec
// resolved from configuration at engine construction, not by subtyping.
const (
	VariantAccess  = "access"
	VariantRefresh = "refresh"
	VariantSliding = "sliding"
	VariantUntyped = "untyped"
)

// VariantSpec describes one token kind: its discriminator, lifetime, and
// which lifecycle features apply to it.
type VariantSpec struct {
	Name          string
	TypeTag       string        // token_type value; empty for untyped
	Lifetime      time.Duration // zero for untyped: minted instances are expired by construction
	Tracked       bool          // recorded as outstanding at mint
	Revocable     bool          // blacklist checks apply during verification
	FamilyLineage bool          // stamps and propagates family claims
	SkipTypeCheck bool          // untyped accepts any token_type
}

// Principal is the minimal view of an authenticated subject the engine
// needs. PrincipalID may return an integer (kept as-is in the user id
// claim) or any other value (stringified).
type Principal interface {
	PrincipalID() any
	IsActive() bool
}

// SecretHolder is implemented by principals whose tokens should be
// invalidated when their secret changes. SecretHash returns the current
// secret hash; FallbackSecretHashes returns historical ones still accepted.
type SecretHolder interface {
	SecretHash() string
	FallbackSecretHashes() []string
}

// Engine is the token lifecycle engine: it mints, parses, verifies,
// derives, rotates, and revokes tokens according to one immutable Config.
// An Engine is safe for concurrent use by multiple goroutines.
type Engine struct {
	config   Config
	codec    *Codec
	store    RevocationStore
	cache    RevocationCache
	variants map[string]VariantSpec

	blacklist *blacklistGuard
	family    *familyGuard

	logger *zap.Logger
	now    func() time.Time
}

// NewEngine validates the configuration, initializes the codec and key
// material, and wires the revocation guards. The store is required when
// the blacklist or family features are enabled; the cache is required when
// cache acceleration is enabled. A nil logger disables logging.
func NewEngine(config Config, store RevocationStore, cache RevocationCache, logger *zap.Logger) (*Engine, error) {
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	codec, err := newCodec(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize codec: %w", err)
	}

	if (config.BlacklistEnabled || config.Family.Enabled) && store == nil {
		return nil, fmt.Errorf("revocation store is required when blacklist or family tracking is enabled")
	}
	if config.Cache.Enabled && cache == nil {
		return nil, fmt.Errorf("revocation cache is required when cache acceleration is enabled")
	}
	if !config.Cache.Enabled {
		cache = nil
	}

	engine := &Engine{
		config:   config,
		codec:    codec,
		store:    store,
		cache:    cache,
		variants: buildVariants(&config),
		logger:   logger,
		now:      time.Now,
	}
	engine.blacklist = &blacklistGuard{engine: engine}
	engine.family = &familyGuard{engine: engine}

	return engine, nil
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() Config { return e.config }

func buildVariants(config *Config) map[string]VariantSpec {
	return map[string]VariantSpec{
		VariantAccess: {
			Name:     VariantAccess,
			TypeTag:  "access",
			Lifetime: config.AccessLifetime,
		},
		VariantRefresh: {
			Name:          VariantRefresh,
			TypeTag:       "refresh",
			Lifetime:      config.RefreshLifetime,
			Tracked:       true,
			Revocable:     true,
			FamilyLineage: true,
		},
		VariantSliding: {
			Name:      VariantSliding,
			TypeTag:   "sliding",
			Lifetime:  config.SlidingLifetime,
			Tracked:   true,
			Revocable: true,
		},
		VariantUntyped: {
			Name:          VariantUntyped,
			SkipTypeCheck: true,
		},
	}
}

func (e *Engine) variant(name string) (VariantSpec, error) {
	spec, ok := e.variants[name]
	if !ok {
		return VariantSpec{}, fmt.Errorf("unknown token variant: %s", name)
	}
	return spec, nil
}

// newFreshToken builds a trusted fresh token: type tag, expiry, issued-at,
// and a random id, all relative to one captured now.
func (e *Engine) newFreshToken(spec VariantSpec) (*Token, error) {
	jti, err := newTokenID()
	if err != nil {
		return nil, err
	}

	now := e.now()
	claims := ClaimSet{
		ClaimJTI: jti,
	}
	if spec.TypeTag != "" {
		claims[ClaimTokenType] = spec.TypeTag
	}
	claims.SetTime(ClaimExpiry, now.Add(spec.Lifetime))
	claims.SetTime(ClaimIssuedAt, now)

	return &Token{engine: e, spec: spec, claims: claims, currentTime: now}, nil
}

// MintForUser mints a fresh token of the named variant for the subject:
// stamps the user id claim, the secret-hash claim when configured, the
// sliding refresh-expiry window, and the family claims for refresh tokens;
// then records refresh/sliding tokens as outstanding.
func (e *Engine) MintForUser(ctx context.Context, variantName string, subject Principal) (*Token, error) {
	spec, err := e.variant(variantName)
	if err != nil {
		return nil, err
	}

	tok, err := e.newFreshToken(spec)
	if err != nil {
		return nil, err
	}

	userID := stringifyUserID(subject.PrincipalID())
	tok.claims[e.config.UserIDClaim] = userID

	if e.config.RevokeOnSecretChange {
		if holder, ok := subject.(SecretHolder); ok {
			tok.claims[ClaimSecretHash] = hashSecret(holder.SecretHash())
		}
	}

	if spec.Name == VariantSliding {
		tok.claims.SetTime(ClaimRefreshExpiry, tok.currentTime.Add(e.config.SlidingRefreshLifetime))
	}

	userRef := fmt.Sprint(userID)

	if spec.FamilyLineage && e.config.Family.Enabled {
		if err := e.family.StampNew(ctx, tok, userRef); err != nil {
			return nil, err
		}
	}

	if spec.Tracked && e.store != nil {
		if err := e.blacklist.RecordOutstanding(ctx, tok, userRef); err != nil {
			return nil, err
		}
	}

	return tok, nil
}

// Parse decodes a wire token string as the named variant. With verify set,
// the signature and algorithm are checked by the codec and the full claim
// and revocation check set runs before the token is returned; any failure
// rejects the token. Without verify, the token is returned unchecked and
// must only be used for inspection.
func (e *Engine) Parse(ctx context.Context, variantName, tokenString string, verify bool) (*Token, error) {
	return e.parse(ctx, variantName, tokenString, verify, verifyOpts{})
}

func (e *Engine) parse(ctx context.Context, variantName, tokenString string, verify bool, opts verifyOpts) (*Token, error) {
	spec, err := e.variant(variantName)
	if err != nil {
		return nil, err
	}
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	now := e.now()
	claims, err := e.codec.Decode(tokenString, verify)
	if err != nil {
		return nil, err
	}

	tok := &Token{engine: e, spec: spec, claims: claims, currentTime: now, raw: tokenString}
	if verify {
		if err := tok.verify(ctx, opts); err != nil {
			return nil, err
		}
	}
	return tok, nil
}

// DeriveAccess derives a new access token from a verified refresh token.
// Every other claim propagates, issued-at included; the no-copy set
// (token_type, exp, jti, and the family claims unless propagation is
// configured) is stamped fresh. The access expiry is computed from the
// refresh token's captured current time, so a pair minted together shares
// one time base.
func (e *Engine) DeriveAccess(refresh *Token) (*Token, error) {
	if refresh.spec.Name != VariantRefresh {
		return nil, fmt.Errorf("access tokens derive from refresh tokens, got %s", refresh.spec.Name)
	}

	spec, err := e.variant(VariantAccess)
	if err != nil {
		return nil, err
	}

	jti, err := newTokenID()
	if err != nil {
		return nil, err
	}

	noCopy := map[string]struct{}{
		ClaimTokenType: {},
		ClaimExpiry:    {},
		ClaimJTI:       {},
	}
	if !e.config.Family.CheckOnAccess {
		noCopy[e.config.Family.FamilyClaim] = struct{}{}
		noCopy[e.config.Family.FamilyExpiryClaim] = struct{}{}
	}

	claims := make(ClaimSet, len(refresh.claims))
	for name, value := range refresh.claims {
		if _, skip := noCopy[name]; skip {
			continue
		}
		claims[name] = value
	}

	claims[ClaimTokenType] = spec.TypeTag
	claims[ClaimJTI] = jti
	claims.SetTime(ClaimExpiry, refresh.currentTime.Add(spec.Lifetime))

	return &Token{engine: e, spec: spec, claims: claims, currentTime: refresh.currentTime}, nil
}

// Rotate builds the successor of a refresh token. All claims carry over,
// including the family id and family expiry, copied verbatim so the
// lineage stays revocable as a unit; only the id, expiry, and issued-at
// are stamped fresh. The successor is recorded as outstanding.
func (e *Engine) Rotate(ctx context.Context, refresh *Token) (*Token, error) {
	if refresh.spec.Name != VariantRefresh {
		return nil, fmt.Errorf("only refresh tokens rotate, got %s", refresh.spec.Name)
	}

	jti, err := newTokenID()
	if err != nil {
		return nil, err
	}

	now := e.now()
	claims := refresh.claims.Clone()
	claims[ClaimJTI] = jti
	claims.SetTime(ClaimExpiry, now.Add(refresh.spec.Lifetime))
	claims.SetTime(ClaimIssuedAt, now)

	tok := &Token{engine: e, spec: refresh.spec, claims: claims, currentTime: now}

	if e.store != nil {
		userRef := ""
		if v, ok := tok.UserID(); ok {
			userRef = fmt.Sprint(v)
		}
		if err := e.blacklist.RecordOutstanding(ctx, tok, userRef); err != nil {
			return nil, err
		}
	}

	return tok, nil
}

// Slide moves a sliding token's exp and iat forward by the sliding
// lifetime, leaving the refresh-expiry claim untouched. The caller must
// have checked the refresh-expiry window first.
func (e *Engine) Slide(sliding *Token) error {
	if sliding.spec.Name != VariantSliding {
		return fmt.Errorf("only sliding tokens slide, got %s", sliding.spec.Name)
	}
	sliding.claims.SetTime(ClaimExpiry, sliding.currentTime.Add(sliding.spec.Lifetime))
	sliding.claims.SetTime(ClaimIssuedAt, sliding.currentTime)
	sliding.raw = ""
	return nil
}
