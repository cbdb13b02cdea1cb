// docs.go

// Package authtoken provides a JWT-based token lifecycle engine for Go
// applications: issuance, verification, rotation, blacklisting, and
// token-family revocation.
//
// The package is designed with security best practices in mind and offers
// extensive customization options while maintaining sensible defaults.
//
// # Overview
//
// The package provides:
// - Generation of cryptographically-signed JWT tokens
// - Verification of token signatures and claims
// - Configurable token lifetimes and rotation policies
// - Support for both symmetric (HMAC) and asymmetric (RSA/ECDSA) signing methods
// - Durable blacklist and outstanding-token tracking with pluggable stores
// - Refresh-token families for replay and theft detection
// - Optional Redis cache acceleration of revocation checks
// - An authentication gate for resolving principals from Authorization headers
//
// # Token Variants
//
// ## Access Tokens
// - Short-lived tokens for API authorization (typically minutes)
// - Derived from a refresh token, copying only the claims that survive derivation
// - Not tracked in the revocation store
//
// ## Refresh Tokens
// - Long-lived tokens for obtaining new access tokens (typically days)
// - Recorded as outstanding on issuance so they can be blacklisted later
// - Carry the token-family claim when family tracking is enabled
// - Support rotation with optional blacklist-after-rotation
//
// ## Sliding Tokens
// - A single token serving as both credential and refresh handle
// - Each renewal extends the expiry; the refresh-expiry claim bounds the
//   total window
//
// ## Untyped Tokens
// - Accept any token-type claim; used by the generic verify flow
//
// # Security Features
//
// - Signature-layer failures collapse into a single opaque error so callers
//   cannot be used as a decoding oracle
// - Credential failures collapse into a single generic error so callers
//   cannot enumerate accounts
// - Configurable signing algorithms (HS256/384/512, RS256/384/512, ES256/384/512)
// - Protection against algorithm substitution attacks
// - Secure key handling with strict file permission checks (0600 for private keys)
// - Token-family revocation invalidates every descendant of a stolen
//   refresh token in one operation
// - Optional session invalidation when a user's password changes
//
// # Revocation
//
// Revocation state lives in a durable RevocationStore (GORM-backed or
// in-memory) and is optionally fronted by a RevocationCache (Redis). The
// cache is a lossy accelerator: a hit short-circuits the check, but a miss
// or a cache error always falls through to the store, so a flushed cache
// never un-revokes a token.
//
// # Usage Example
//
//	config := authtoken.DefaultConfig("your-32-byte-secret-key-1234567890ab")
//	config.Issuer = "myapp.com"
//	config.Audience = "api.myapp.com"
//	config.RotateRefreshTokens = true
//	config.BlacklistAfterRotation = true
//
//	store := authtoken.NewMemoryRevocationStore(5*time.Minute, logger)
//	defer store.Close()
//
//	engine, err := authtoken.NewEngine(config, store, nil, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Issue a pair
//	pair, err := engine.ObtainTokenPair(ctx, validator, authtoken.Credentials{
//	    Username: "alice",
//	    Password: "s3cret",
//	})
//
//	// Later, trade the refresh token for a fresh pair
//	pair, err = engine.Refresh(ctx, pair.Refresh)
//
//	// Authenticate a request
//	gate := authtoken.NewGate(engine, userStore)
//	principal, token, err := gate.Authenticate(ctx, r.Header.Get("Authorization"))
//
// # Best Practices
//
// 1. Keep symmetric keys at least 32 bytes and never commit them
// 2. Use asymmetric signing when verifiers should not hold signing material
// 3. Enable rotation with blacklist-after-rotation for refresh tokens
// 4. Enable family tracking so a replayed rotated token burns its lineage
// 5. Run SweepExpired on a schedule to bound revocation-store growth
// 6. Front the store with the Redis cache when verification volume is high
package authtoken
