// codec.go

package authtoken

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Codec signs and verifies the wire encoding of a claim set. It owns the
// signing method, the key material, and the optional remote key resolver.
//
// Decode failures deliberately collapse into ErrDecodeFailed without
// distinguishing signature, structure, or algorithm problems, so callers
// cannot be used as an oracle revealing which check rejected a token.
type Codec struct {
	config        *Config
	signingMethod jwt.SigningMethod
	signingKey    any // []byte for HMAC, *rsa.PrivateKey or *ecdsa.PrivateKey otherwise
	verifyingKey  any // []byte for HMAC, *rsa.PublicKey or *ecdsa.PublicKey otherwise
	resolver      *JWKSResolver
}

// newCodec initializes the signing method and key material for the
// configured algorithm. An unrecognized algorithm is a fatal configuration
// error surfaced here, at construction, never later.
func newCodec(config *Config) (*Codec, error) {
	codec := &Codec{config: config}

	switch config.Algorithm {
	case "HS256":
		codec.signingMethod = jwt.SigningMethodHS256
	case "HS384":
		codec.signingMethod = jwt.SigningMethodHS384
	case "HS512":
		codec.signingMethod = jwt.SigningMethodHS512
	case "RS256":
		codec.signingMethod = jwt.SigningMethodRS256
	case "RS384":
		codec.signingMethod = jwt.SigningMethodRS384
	case "RS512":
		codec.signingMethod = jwt.SigningMethodRS512
	case "ES256":
		codec.signingMethod = jwt.SigningMethodES256
	case "ES384":
		codec.signingMethod = jwt.SigningMethodES384
	case "ES512":
		codec.signingMethod = jwt.SigningMethodES512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm: %s", config.Algorithm)
	}

	switch config.SigningMethod {
	case Symmetric:
		codec.signingKey = []byte(config.SymmetricKey)
		codec.verifyingKey = []byte(config.SymmetricKey)
	case Asymmetric:
		privateKey, publicKey, err := loadKeyPair(config, codec.signingMethod.Alg())
		if err != nil {
			return nil, err
		}
		codec.signingKey = privateKey
		codec.verifyingKey = publicKey
	default:
		return nil, fmt.Errorf("unsupported signing method: %s", config.SigningMethod)
	}

	if config.JWKSEndpoint != "" {
		codec.resolver = NewJWKSResolver(config.JWKSEndpoint, nil)
	}

	return codec, nil
}

// Encode stamps the configured audience and issuer when the claim set does
// not already carry them, signs the result, and returns the compact token
// string. The caller's claim set is never mutated.
func (c *Codec) Encode(claims ClaimSet) (string, error) {
	stamped := claims.Clone()
	if c.config.Audience != "" {
		if _, ok := stamped[ClaimAudience]; !ok {
			stamped[ClaimAudience] = c.config.Audience
		}
	}
	if c.config.Issuer != "" {
		if _, ok := stamped[ClaimIssuer]; !ok {
			stamped[ClaimIssuer] = c.config.Issuer
		}
	}

	token := jwt.NewWithClaims(c.signingMethod, stamped.toMapClaims())
	if c.config.KeyID != "" {
		token.Header["kid"] = c.config.KeyID
	}

	signed, err := token.SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode parses a compact token string back into a claim set. With verify
// set, the signature, algorithm, audience, and issuer are checked; expiry
// is the Token layer's concern so that all time comparisons share one
// captured clock. Without verify, the payload is returned with no trust
// whatsoever; callers must only use it for inspection of already-rejected
// tokens, never for trust decisions.
func (c *Codec) Decode(tokenString string, verify bool) (ClaimSet, error) {
	if !verify {
		token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
		if err != nil {
			return nil, ErrDecodeFailed
		}
		mapClaims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return nil, ErrDecodeFailed
		}
		return claimSetFromMapClaims(mapClaims), nil
	}

	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, err := parser.Parse(tokenString, c.keyFunc)
	if err != nil || !token.Valid {
		return nil, ErrDecodeFailed
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrDecodeFailed
	}

	if c.config.Audience != "" && !audienceMatches(mapClaims[ClaimAudience], c.config.Audience) {
		return nil, ErrDecodeFailed
	}
	if c.config.Issuer != "" {
		if iss, _ := mapClaims[ClaimIssuer].(string); iss != c.config.Issuer {
			return nil, ErrDecodeFailed
		}
	}

	return claimSetFromMapClaims(mapClaims), nil
}

// keyFunc rejects algorithm substitution and resolves the verifying key,
// remotely by kid when a JWKS resolver is configured.
func (c *Codec) keyFunc(token *jwt.Token) (any, error) {
	if token.Method.Alg() != c.signingMethod.Alg() {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	if c.resolver != nil {
		if kid, ok := token.Header["kid"].(string); ok && kid != "" {
			return c.resolver.Key(kid)
		}
	}
	return c.verifyingKey, nil
}

// audienceMatches handles the two wire shapes of the aud claim: a single
// string or an array of strings.
func audienceMatches(claim any, expected string) bool {
	switch v := claim.(type) {
	case string:
		return v == expected
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == expected {
				return true
			}
		}
	case []string:
		for _, s := range v {
			if s == expected {
				return true
			}
		}
	}
	return false
}
