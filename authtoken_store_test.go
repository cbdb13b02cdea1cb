// File: authtoken_store_test.go

package authtoken

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *MemoryRevocationStore {
	t.Helper()
	store := NewMemoryRevocationStore(time.Minute, nil)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMemoryStoreCreateIfAbsent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	t.Run("Outstanding tokens", func(t *testing.T) {
		record := OutstandingToken{
			JTI:       "jti-1",
			Token:     "raw-token",
			UserID:    "7",
			CreatedAt: now,
			ExpiresAt: now.Add(time.Hour),
		}

		first, created, err := store.CreateOutstanding(ctx, record)
		require.NoError(t, err)
		require.True(t, created)
		require.Equal(t, "jti-1", first.JTI)

		// A second create returns the original record untouched.
		dupe := record
		dupe.Token = "different-encoding"
		second, created, err := store.CreateOutstanding(ctx, dupe)
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, "raw-token", second.Token)
	})

	t.Run("Blacklisted tokens", func(t *testing.T) {
		_, created, err := store.CreateBlacklisted(ctx, "jti-1", now)
		require.NoError(t, err)
		require.True(t, created)

		record, created, err := store.CreateBlacklisted(ctx, "jti-1", now.Add(time.Minute))
		require.NoError(t, err)
		require.False(t, created)
		require.Equal(t, now, record.BlacklistedAt)

		found, err := store.IsBlacklisted(ctx, "jti-1")
		require.NoError(t, err)
		require.True(t, found)

		found, err = store.IsBlacklisted(ctx, "jti-unknown")
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("Families", func(t *testing.T) {
		exp := now.Add(24 * time.Hour)
		_, created, err := store.CreateFamily(ctx, TokenFamily{
			FamilyID:  "fam-1",
			UserID:    "7",
			CreatedAt: now,
			ExpiresAt: &exp,
		})
		require.NoError(t, err)
		require.True(t, created)

		_, created, err = store.CreateFamily(ctx, TokenFamily{FamilyID: "fam-1"})
		require.NoError(t, err)
		require.False(t, created)

		_, created, err = store.CreateBlacklistedFamily(ctx, "fam-1", now)
		require.NoError(t, err)
		require.True(t, created)

		found, err := store.IsFamilyBlacklisted(ctx, "fam-1")
		require.NoError(t, err)
		require.True(t, found)
	})
}

func TestMemoryStoreSweeps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	seedToken := func(jti string, expiresAt time.Time, blacklisted bool) {
		_, _, err := store.CreateOutstanding(ctx, OutstandingToken{
			JTI:       jti,
			ExpiresAt: expiresAt,
		})
		require.NoError(t, err)
		if blacklisted {
			_, _, err = store.CreateBlacklisted(ctx, jti, now)
			require.NoError(t, err)
		}
	}

	seedToken("expired-plain", now.Add(-time.Hour), false)
	seedToken("expired-revoked", now.Add(-time.Hour), true)
	seedToken("live", now.Add(time.Hour), true)

	removed, err := store.SweepExpiredTokens(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	t.Run("Cascade removes the blacklist record", func(t *testing.T) {
		found, err := store.IsBlacklisted(ctx, "expired-revoked")
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("Live records survive", func(t *testing.T) {
		found, err := store.IsBlacklisted(ctx, "live")
		require.NoError(t, err)
		require.True(t, found)
	})

	t.Run("Eternal families are exempt", func(t *testing.T) {
		expired := now.Add(-time.Minute)
		_, _, err := store.CreateFamily(ctx, TokenFamily{FamilyID: "fam-old", ExpiresAt: &expired})
		require.NoError(t, err)
		_, _, err = store.CreateFamily(ctx, TokenFamily{FamilyID: "fam-eternal"})
		require.NoError(t, err)
		_, _, err = store.CreateBlacklistedFamily(ctx, "fam-old", now)
		require.NoError(t, err)

		removed, err := store.SweepExpiredFamilies(ctx, now)
		require.NoError(t, err)
		require.Equal(t, int64(1), removed)

		found, err := store.IsFamilyBlacklisted(ctx, "fam-old")
		require.NoError(t, err)
		require.False(t, found)
		require.Equal(t, 1, store.Stats()["token_families"])
	})
}

func TestMemoryStoreDetachUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	_, _, err := store.CreateOutstanding(ctx, OutstandingToken{
		JTI:       "jti-del",
		UserID:    "42",
		ExpiresAt: now.Add(time.Hour),
	})
	require.NoError(t, err)
	_, _, err = store.CreateFamily(ctx, TokenFamily{FamilyID: "fam-del", UserID: "42"})
	require.NoError(t, err)
	_, _, err = store.CreateBlacklisted(ctx, "jti-del", now)
	require.NoError(t, err)

	require.NoError(t, store.DetachUser(ctx, "42"))

	// Records survive detachment; deleting a user must never un-revoke
	// their tokens.
	found, err := store.IsBlacklisted(ctx, "jti-del")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 1, store.Stats()["outstanding_tokens"])
	require.Equal(t, 1, store.Stats()["token_families"])

	record, created, err := store.CreateOutstanding(ctx, OutstandingToken{JTI: "jti-del"})
	require.NoError(t, err)
	require.False(t, created)
	require.Empty(t, record.UserID)
}

func TestMemoryStoreClose(t *testing.T) {
	store := NewMemoryRevocationStore(time.Millisecond, nil)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestEngineDetachUser(t *testing.T) {
	engine := newTestEngine(t, newTestConfig())
	ctx := context.Background()

	refresh, err := engine.MintForUser(ctx, VariantRefresh, &testUser{id: int64(42), active: true})
	require.NoError(t, err)
	raw, err := refresh.SignedString()
	require.NoError(t, err)
	_, err = engine.BlacklistToken(ctx, raw)
	require.NoError(t, err)

	require.NoError(t, engine.store.DetachUser(ctx, "42"))

	// The token itself stays revoked.
	_, err = engine.Parse(ctx, VariantRefresh, raw, true)
	require.ErrorIs(t, err, ErrTokenBlacklisted)
}
