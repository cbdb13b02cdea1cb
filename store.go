// store.go

package authtoken

import (
	"context"
	"time"
)

// OutstandingToken is the durable record of every minted refresh or sliding
// token. It anchors the blacklist: a token can only be blacklisted through
// its outstanding record. Never mutated after creation; removed only by the
// expiry sweep.
type OutstandingToken struct {
	JTI       string
	Token     string // raw wire encoding, kept for audit
	UserID    string // empty when the owner was deleted or never known
	CreatedAt time.Time
	ExpiresAt time.Time
}

// BlacklistedToken marks one outstanding token as revoked.
type BlacklistedToken struct {
	JTI           string
	BlacklistedAt time.Time
}

// TokenFamily groups every refresh token descending from one original
// login. ExpiresAt nil means the family never expires. UserID survives as
// empty after user deletion: revocation history outlives accounts.
type TokenFamily struct {
	FamilyID  string
	UserID    string
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// BlacklistedTokenFamily marks a whole family as revoked, invalidating
// every token carrying its family id.
type BlacklistedTokenFamily struct {
	FamilyID      string
	BlacklistedAt time.Time
}

// RevocationStore is the single source of truth for outstanding tokens,
// blacklisted tokens, and token families. Every create operation must be
// atomic create-if-absent in the underlying store so that concurrent
// blacklisting of the same token never produces duplicate records; the
// returned bool reports whether this call created the record.
type RevocationStore interface {
	// CreateOutstanding records a minted token, create-if-absent by JTI.
	CreateOutstanding(ctx context.Context, record OutstandingToken) (*OutstandingToken, bool, error)

	// CreateBlacklisted marks the outstanding token with this JTI as
	// revoked, create-if-absent.
	CreateBlacklisted(ctx context.Context, jti string, at time.Time) (*BlacklistedToken, bool, error)

	// IsBlacklisted reports whether a blacklist record exists for the JTI.
	IsBlacklisted(ctx context.Context, jti string) (bool, error)

	// CreateFamily records a token family, create-if-absent by family id.
	CreateFamily(ctx context.Context, record TokenFamily) (*TokenFamily, bool, error)

	// CreateBlacklistedFamily marks a whole family as revoked, create-if-absent.
	CreateBlacklistedFamily(ctx context.Context, familyID string, at time.Time) (*BlacklistedTokenFamily, bool, error)

	// IsFamilyBlacklisted reports whether a family blacklist record exists.
	IsFamilyBlacklisted(ctx context.Context, familyID string) (bool, error)

	// SweepExpiredTokens deletes outstanding tokens whose expiry has
	// passed, cascading to their blacklist records. Returns the number of
	// outstanding records removed.
	SweepExpiredTokens(ctx context.Context, now time.Time) (int64, error)

	// SweepExpiredFamilies deletes families whose expiry has passed
	// (families with no expiry are exempt), cascading to their blacklist
	// records. Returns the number of family records removed.
	SweepExpiredFamilies(ctx context.Context, now time.Time) (int64, error)

	// DetachUser clears the user reference of the user's outstanding
	// tokens and families without deleting them.
	DetachUser(ctx context.Context, userID string) error

	// Close releases store resources.
	Close() error
}
