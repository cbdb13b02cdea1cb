// File: authtoken_blacklist_test.go

package authtoken

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBlacklistToken(t *testing.T) {
	engine := newTestEngine(t, newTestConfig())
	ctx := context.Background()
	user := &testUser{id: int64(11), active: true}

	refresh, err := engine.MintForUser(ctx, VariantRefresh, user)
	require.NoError(t, err)
	raw, err := refresh.SignedString()
	require.NoError(t, err)

	t.Run("First call creates the record", func(t *testing.T) {
		created, err := engine.BlacklistToken(ctx, raw)
		require.NoError(t, err)
		require.True(t, created)
	})

	t.Run("Second call is an idempotent no-op", func(t *testing.T) {
		created, err := engine.BlacklistToken(ctx, raw)
		require.NoError(t, err)
		require.False(t, created)
	})

	t.Run("Blacklisted token no longer verifies", func(t *testing.T) {
		_, err := engine.Parse(ctx, VariantRefresh, raw, true)
		require.ErrorIs(t, err, ErrTokenBlacklisted)
	})

	t.Run("Unverifiable token cannot be blacklisted", func(t *testing.T) {
		_, err := engine.BlacklistToken(ctx, raw+"tampered")
		require.ErrorIs(t, err, ErrDecodeFailed)
	})
}

func TestBlacklistDisabledSkipsCheck(t *testing.T) {
	config := newTestConfig()
	config.BlacklistEnabled = false
	engine := newTestEngine(t, config)
	ctx := context.Background()

	refresh, err := engine.MintForUser(ctx, VariantRefresh, &testUser{id: int64(12), active: true})
	require.NoError(t, err)
	raw, err := refresh.SignedString()
	require.NoError(t, err)

	// The durable record can still be written directly, but verification
	// does not consult it.
	_, _, err = engine.store.CreateBlacklisted(ctx, refresh.JTI(), time.Now())
	require.NoError(t, err)

	_, err = engine.Parse(ctx, VariantRefresh, raw, true)
	require.NoError(t, err)
}

func TestBlacklistCacheAcceleration(t *testing.T) {
	engine, mr := newTestEngineWithCache(t, newTestConfig())
	ctx := context.Background()
	user := &testUser{id: int64(13), active: true}

	refresh, err := engine.MintForUser(ctx, VariantRefresh, user)
	require.NoError(t, err)
	raw, err := refresh.SignedString()
	require.NoError(t, err)

	created, err := engine.BlacklistToken(ctx, raw)
	require.NoError(t, err)
	require.True(t, created)

	t.Run("Blacklisting writes through to the cache", func(t *testing.T) {
		require.True(t, mr.Exists(engine.config.Cache.BlacklistKeyPrefix+refresh.JTI()))
	})

	t.Run("Check rejects via the cache", func(t *testing.T) {
		_, err := engine.Parse(ctx, VariantRefresh, raw, true)
		require.ErrorIs(t, err, ErrTokenBlacklisted)
	})

	t.Run("Deleted cache entry falls through to the store", func(t *testing.T) {
		removed, err := engine.cache.Delete(ctx, engine.config.Cache.BlacklistKeyPrefix+refresh.JTI())
		require.NoError(t, err)
		require.True(t, removed)

		// Losing the marker only forfeits the fast path; the durable
		// record still rejects the token.
		_, err = engine.Parse(ctx, VariantRefresh, raw, true)
		require.ErrorIs(t, err, ErrTokenBlacklisted)
	})

	t.Run("Expired cache entry falls through to the store", func(t *testing.T) {
		mr.FastForward(engine.config.Cache.BlacklistTTL + time.Second)
		require.False(t, mr.Exists(engine.config.Cache.BlacklistKeyPrefix+refresh.JTI()))

		// The durable record outlives the cache entry, so the token stays
		// revoked.
		_, err := engine.Parse(ctx, VariantRefresh, raw, true)
		require.ErrorIs(t, err, ErrTokenBlacklisted)
	})

	t.Run("Flushed cache never un-revokes", func(t *testing.T) {
		mr.FlushAll()
		_, err := engine.Parse(ctx, VariantRefresh, raw, true)
		require.ErrorIs(t, err, ErrTokenBlacklisted)
	})
}

func TestCacheNamespaces(t *testing.T) {
	engine, mr := newTestEngineWithCache(t, newTestConfig())
	ctx := context.Background()
	user := &testUser{id: int64(14), active: true}

	refresh, err := engine.MintForUser(ctx, VariantRefresh, user)
	require.NoError(t, err)
	raw, err := refresh.SignedString()
	require.NoError(t, err)

	_, err = engine.BlacklistToken(ctx, raw)
	require.NoError(t, err)
	_, err = engine.BlacklistTokenFamily(ctx, raw)
	require.NoError(t, err)

	// Single-token and family entries live in separate namespaces with
	// independent lifetimes.
	tokenKey := engine.config.Cache.BlacklistKeyPrefix + refresh.JTI()
	familyKey := engine.config.Cache.FamilyKeyPrefix + refresh.FamilyID()
	require.True(t, mr.Exists(tokenKey))
	require.True(t, mr.Exists(familyKey))
	require.NotEqual(t, tokenKey, familyKey)

	tokenTTL := mr.TTL(tokenKey)
	familyTTL := mr.TTL(familyKey)
	require.Greater(t, tokenTTL, time.Duration(0))
	require.Greater(t, familyTTL, time.Duration(0))
}
