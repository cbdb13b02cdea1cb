// config.go

package authtoken

import (
	"fmt"
	"time"
)

// SigningMethod represents the key signing method (symmetric or asymmetric).
type SigningMethod string

const (
	Symmetric  SigningMethod = "symmetric"  // Symmetric key signing (HMAC)
	Asymmetric SigningMethod = "asymmetric" // Asymmetric key signing (RSA, ECDSA)
)

// Config holds the complete configuration for the token engine.
//
// # Required Fields
//   - Algorithm: one of HS256/384/512, RS256/384/512, ES256/384/512
//   - SigningMethod: Symmetric or Asymmetric
//
// For Symmetric signing:
//   - SymmetricKey: required (minimum 32 bytes)
//
// For Asymmetric signing:
//   - PrivateKeyPath: path to a PEM-encoded private key (0600 permissions)
//   - PublicKeyPath: path to a PEM-encoded public key or certificate
//
// Configuration is read-only after engine construction. There is no reload
// mechanism: to change settings, build a new Engine with a new Config.
type Config struct {
	Algorithm      string        // JWT signing algorithm (e.g. "HS256", "RS256", "ES256")
	SigningMethod  SigningMethod // Cryptographic method (symmetric or asymmetric)
	SymmetricKey   string        // Secret key for symmetric signing (min 32 bytes)
	PrivateKeyPath string        // Path to private key for asymmetric signing
	PublicKeyPath  string        // Path to public key for asymmetric verification
	Issuer         string        // Optional issuer stamped on encode and checked on decode
	Audience       string        // Optional audience stamped on encode and checked on decode
	Leeway         time.Duration // Clock-skew tolerance applied to expiry checks
	KeyID          string        // Optional kid header stamped on signed tokens
	JWKSEndpoint   string        // Optional JWKS endpoint for remote verification keys by kid

	UserIDField string // Subject field used to look up the principal in a user store
	UserIDClaim string // Claim name carrying the user id (default "user_id")

	AccessLifetime         time.Duration // Access token validity duration
	RefreshLifetime        time.Duration // Refresh token validity duration
	SlidingLifetime        time.Duration // Sliding token validity duration per slide
	SlidingRefreshLifetime time.Duration // Absolute window during which a sliding token may be refreshed

	RotateRefreshTokens    bool // Whether the refresh flow issues a new refresh token
	BlacklistAfterRotation bool // Whether the pre-rotation token is blacklisted
	UpdateLastLogin        bool // Whether credential flows record a login event
	RevokeOnSecretChange   bool // Whether tokens carry and check a secret-hash claim

	BlacklistEnabled bool // Whether verification consults the revocation store

	AuthHeaderName  string   // Header carrying credentials (default "Authorization")
	AuthHeaderTypes []string // Accepted scheme keywords (default ["Bearer"])

	Cache  CacheConfig  // Revocation cache configuration
	Family FamilyConfig // Token family configuration
}

// CacheConfig controls the optional fast-path revocation cache. The cache
// is a lossy accelerator: a miss or error always falls through to the
// durable store.
type CacheConfig struct {
	Enabled            bool
	BlacklistKeyPrefix string        // Namespace for single-token entries (default "refresh_token:")
	FamilyKeyPrefix    string        // Namespace for family entries (default "family:")
	BlacklistTTL       time.Duration // TTL for single-token entries
	FamilyTTL          time.Duration // TTL for family entries
}

// FamilyConfig controls refresh-token family tracking.
type FamilyConfig struct {
	Enabled           bool
	Lifetime          time.Duration // 0 means families never expire
	FamilyClaim       string        // Claim carrying the family id (default "token_family")
	FamilyExpiryClaim string        // Claim carrying the family expiry (default "token_family_exp")
	CheckOnAccess     bool          // Propagate family claims and checks onto derived access tokens
}

// DefaultConfig returns a Config with secure defaults for symmetric signing:
// HS256, short access lifetime, blacklist and family tracking enabled, and
// family checks propagated onto derived access tokens.
func DefaultConfig(symmetricKey string) Config {
	return Config{
		Algorithm:              "HS256",
		SigningMethod:          Symmetric,
		SymmetricKey:           symmetricKey,
		UserIDField:            "id",
		UserIDClaim:            ClaimUserID,
		AccessLifetime:         5 * time.Minute,
		RefreshLifetime:        24 * time.Hour,
		SlidingLifetime:        5 * time.Minute,
		SlidingRefreshLifetime: 24 * time.Hour,
		BlacklistEnabled:       true,
		AuthHeaderName:         "Authorization",
		AuthHeaderTypes:        []string{"Bearer"},
		Cache: CacheConfig{
			BlacklistKeyPrefix: "refresh_token:",
			FamilyKeyPrefix:    "family:",
			BlacklistTTL:       time.Hour,
			FamilyTTL:          time.Hour,
		},
		Family: FamilyConfig{
			Enabled:           true,
			Lifetime:          30 * 24 * time.Hour,
			FamilyClaim:       ClaimFamily,
			FamilyExpiryClaim: ClaimFamilyExpiry,
			CheckOnAccess:     true,
		},
	}
}

// ParseLeeway converts a loosely-typed leeway value into a time.Duration.
// Accepts int/int64 seconds, float64 seconds, or a time.Duration; any other
// type is rejected. Intended for callers loading configuration from JSON or
// YAML sources where the numeric type is not known in advance.
func ParseLeeway(value any) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("unrecognized type %T for leeway, expected int, float64 or time.Duration", value)
	}
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	switch config.SigningMethod {
	case Symmetric:
		if config.SymmetricKey == "" {
			return fmt.Errorf("symmetric key is required for symmetric signing method")
		}
		if len(config.SymmetricKey) < 32 {
			return fmt.Errorf("symmetric key must be at least 32 bytes")
		}
	case Asymmetric:
		if config.PrivateKeyPath == "" || config.PublicKeyPath == "" {
			return fmt.Errorf("private and public key paths are required for asymmetric signing method")
		}
		if err := checkFilePermissions(config.PrivateKeyPath, 0600); err != nil {
			return fmt.Errorf("insecure private key file permissions: %w", err)
		}
	default:
		return fmt.Errorf("unsupported signing method: %s, supports %s and %s", config.SigningMethod, Symmetric, Asymmetric)
	}

	if config.Leeway < 0 {
		return fmt.Errorf("leeway cannot be negative")
	}
	if config.UserIDClaim == "" {
		return fmt.Errorf("user id claim name cannot be empty")
	}
	if config.AccessLifetime <= 0 {
		return fmt.Errorf("access token lifetime must be positive")
	}
	if config.RefreshLifetime <= 0 {
		return fmt.Errorf("refresh token lifetime must be positive")
	}
	if config.BlacklistAfterRotation && !config.BlacklistEnabled {
		return fmt.Errorf("blacklist after rotation requires the blacklist to be enabled")
	}
	if config.Family.Enabled {
		if config.Family.FamilyClaim == "" || config.Family.FamilyExpiryClaim == "" {
			return fmt.Errorf("family claim names cannot be empty when family tracking is enabled")
		}
		if config.Family.Lifetime < 0 {
			return fmt.Errorf("family lifetime cannot be negative")
		}
	}
	if config.Cache.Enabled {
		if config.Cache.BlacklistTTL <= 0 || config.Cache.FamilyTTL <= 0 {
			return fmt.Errorf("cache TTLs must be positive when the cache is enabled")
		}
		if config.Cache.BlacklistKeyPrefix == config.Cache.FamilyKeyPrefix {
			return fmt.Errorf("cache key prefixes must be distinct per namespace")
		}
	}
	if len(config.AuthHeaderTypes) == 0 {
		return fmt.Errorf("at least one auth header type is required")
	}
	return nil
}
