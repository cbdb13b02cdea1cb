// File: authtoken_codec_test.go

package authtoken

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	engine := newTestEngine(t, newTestConfig())

	claims := ClaimSet{
		ClaimJTI:       "round-trip-id",
		ClaimTokenType: "access",
		"custom":       "value",
	}
	claims.SetTime(ClaimExpiry, time.Now().Add(time.Hour))

	raw, err := engine.codec.Encode(claims)
	require.NoError(t, err)
	require.Equal(t, 3, len(strings.Split(raw, ".")))

	decoded, err := engine.codec.Decode(raw, true)
	require.NoError(t, err)
	jti, _ := decoded.GetString(ClaimJTI)
	require.Equal(t, "round-trip-id", jti)
	custom, _ := decoded.GetString("custom")
	require.Equal(t, "value", custom)
}

func TestCodecRejectsTampering(t *testing.T) {
	engine := newTestEngine(t, newTestConfig())

	claims := ClaimSet{ClaimJTI: "tamper-id"}
	claims.SetTime(ClaimExpiry, time.Now().Add(time.Hour))
	raw, err := engine.codec.Encode(claims)
	require.NoError(t, err)

	t.Run("Modified payload", func(t *testing.T) {
		parts := strings.Split(raw, ".")
		tampered := parts[0] + ".eyJqdGkiOiJmb3JnZWQifQ." + parts[2]
		_, err := engine.codec.Decode(tampered, true)
		require.ErrorIs(t, err, ErrDecodeFailed)
	})

	t.Run("Truncated signature", func(t *testing.T) {
		_, err := engine.codec.Decode(raw[:len(raw)-6], true)
		require.ErrorIs(t, err, ErrDecodeFailed)
	})

	t.Run("Garbage input", func(t *testing.T) {
		_, err := engine.codec.Decode("not-a-token", true)
		require.ErrorIs(t, err, ErrDecodeFailed)
	})

	t.Run("Wrong key", func(t *testing.T) {
		otherConfig := newTestConfig()
		otherConfig.SymmetricKey = "an-entirely-different-32-byte-key!!"
		other := newTestEngine(t, otherConfig)
		_, err := other.codec.Decode(raw, true)
		require.ErrorIs(t, err, ErrDecodeFailed)
	})
}

func TestCodecAlgorithmSubstitution(t *testing.T) {
	// A token signed with HMAC must not verify against an engine expecting
	// RSA signatures, even if the attacker knows the public key bytes.
	hmacEngine := newTestEngine(t, newTestConfig())

	privatePath, publicPath := writeTempRSAKeys(t)
	rsaConfig := newTestConfig()
	rsaConfig.SigningMethod = Asymmetric
	rsaConfig.Algorithm = "RS256"
	rsaConfig.PrivateKeyPath = privatePath
	rsaConfig.PublicKeyPath = publicPath
	rsaEngine := newTestEngine(t, rsaConfig)

	claims := ClaimSet{ClaimJTI: "cross-alg"}
	claims.SetTime(ClaimExpiry, time.Now().Add(time.Hour))

	hmacToken, err := hmacEngine.codec.Encode(claims)
	require.NoError(t, err)
	_, err = rsaEngine.codec.Decode(hmacToken, true)
	require.ErrorIs(t, err, ErrDecodeFailed)

	rsaToken, err := rsaEngine.codec.Encode(claims)
	require.NoError(t, err)
	_, err = hmacEngine.codec.Decode(rsaToken, true)
	require.ErrorIs(t, err, ErrDecodeFailed)

	// Each engine still accepts its own output.
	_, err = rsaEngine.codec.Decode(rsaToken, true)
	require.NoError(t, err)
}

func TestCodecECDSA(t *testing.T) {
	privatePath, publicPath := writeTempECDSAKeys(t)
	config := newTestConfig()
	config.SigningMethod = Asymmetric
	config.Algorithm = "ES256"
	config.PrivateKeyPath = privatePath
	config.PublicKeyPath = publicPath
	engine := newTestEngine(t, config)

	claims := ClaimSet{ClaimJTI: "ecdsa-id"}
	claims.SetTime(ClaimExpiry, time.Now().Add(time.Hour))

	raw, err := engine.codec.Encode(claims)
	require.NoError(t, err)
	decoded, err := engine.codec.Decode(raw, true)
	require.NoError(t, err)
	jti, _ := decoded.GetString(ClaimJTI)
	require.Equal(t, "ecdsa-id", jti)
}

func TestCodecAudienceAndIssuer(t *testing.T) {
	config := newTestConfig()
	config.Audience = "api.example.com"
	config.Issuer = "issuer.example.com"
	engine := newTestEngine(t, config)

	t.Run("Stamped on encode and accepted on decode", func(t *testing.T) {
		raw, err := engine.codec.Encode(ClaimSet{ClaimJTI: "aud-id"})
		require.NoError(t, err)

		decoded, err := engine.codec.Decode(raw, true)
		require.NoError(t, err)
		aud, _ := decoded.GetString(ClaimAudience)
		require.Equal(t, "api.example.com", aud)
		iss, _ := decoded.GetString(ClaimIssuer)
		require.Equal(t, "issuer.example.com", iss)
	})

	t.Run("Audience list containing the expected value", func(t *testing.T) {
		claims := ClaimSet{
			ClaimJTI:      "aud-list-id",
			ClaimAudience: []string{"other.example.com", "api.example.com"},
		}
		raw, err := engine.codec.Encode(claims)
		require.NoError(t, err)
		_, err = engine.codec.Decode(raw, true)
		require.NoError(t, err)
	})

	t.Run("Wrong audience rejected", func(t *testing.T) {
		claims := ClaimSet{ClaimJTI: "aud-wrong", ClaimAudience: "someone-else"}
		raw, err := engine.codec.Encode(claims)
		require.NoError(t, err)
		_, err = engine.codec.Decode(raw, true)
		require.ErrorIs(t, err, ErrDecodeFailed)
	})

	t.Run("Wrong issuer rejected", func(t *testing.T) {
		claims := ClaimSet{ClaimJTI: "iss-wrong", ClaimIssuer: "impostor"}
		raw, err := engine.codec.Encode(claims)
		require.NoError(t, err)
		_, err = engine.codec.Decode(raw, true)
		require.ErrorIs(t, err, ErrDecodeFailed)
	})

	t.Run("Missing audience claim rejected", func(t *testing.T) {
		plain := newTestEngine(t, newTestConfig())
		raw, err := plain.codec.Encode(ClaimSet{ClaimJTI: "no-aud"})
		require.NoError(t, err)
		_, err = engine.codec.Decode(raw, true)
		require.ErrorIs(t, err, ErrDecodeFailed)
	})
}

func TestCodecKeyIDHeader(t *testing.T) {
	config := newTestConfig()
	config.KeyID = "primary-2026"
	engine := newTestEngine(t, config)

	raw, err := engine.codec.Encode(ClaimSet{ClaimJTI: "kid-id"})
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	require.NoError(t, err)
	require.Equal(t, "primary-2026", parsed.Header["kid"])
}

func TestCodecUnverifiedDecode(t *testing.T) {
	engine := newTestEngine(t, newTestConfig())

	claims := ClaimSet{ClaimJTI: "inspect-id"}
	claims.SetTime(ClaimExpiry, time.Now().Add(time.Hour))
	raw, err := engine.codec.Encode(claims)
	require.NoError(t, err)

	t.Run("Returns payload without trusting the signature", func(t *testing.T) {
		parts := strings.Split(raw, ".")
		brokenSig := parts[0] + "." + parts[1] + ".AAAA"
		decoded, err := engine.codec.Decode(brokenSig, false)
		require.NoError(t, err)
		jti, _ := decoded.GetString(ClaimJTI)
		require.Equal(t, "inspect-id", jti)
	})

	t.Run("Still rejects structural garbage", func(t *testing.T) {
		_, err := engine.codec.Decode("one.part", false)
		require.ErrorIs(t, err, ErrDecodeFailed)
	})
}
