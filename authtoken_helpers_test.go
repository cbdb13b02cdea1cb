// File: authtoken_helpers_test.go

package authtoken

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const testSymmetricKey = "test-secret-key-32-bytes-long!!!!"

func newTestConfig() Config {
	return DefaultConfig(testSymmetricKey)
}

// newTestEngine builds an engine over a fresh in-memory store. The store
// is closed when the test finishes.
func newTestEngine(t *testing.T, config Config) *Engine {
	t.Helper()
	store := NewMemoryRevocationStore(time.Minute, nil)
	t.Cleanup(func() { store.Close() })

	engine, err := NewEngine(config, store, nil, nil)
	require.NoError(t, err)
	return engine
}

// newTestEngineWithCache builds an engine whose revocation cache is backed
// by a miniredis instance, returned so tests can manipulate TTLs.
func newTestEngineWithCache(t *testing.T, config Config) (*Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cache, err := NewRedisRevocationCache(client)
	require.NoError(t, err)

	config.Cache.Enabled = true
	store := NewMemoryRevocationStore(time.Minute, nil)
	t.Cleanup(func() { store.Close() })

	engine, err := NewEngine(config, store, cache, nil)
	require.NoError(t, err)
	return engine, mr
}

// setEngineTime pins the engine clock, so expiry checks in a test are
// deterministic regardless of scheduling.
func setEngineTime(e *Engine, at time.Time) {
	e.now = func() time.Time { return at }
}

type testUser struct {
	id     any
	active bool
}

func (u *testUser) PrincipalID() any { return u.id }
func (u *testUser) IsActive() bool   { return u.active }

// testSecretUser additionally exposes secret material so tokens minted for
// it carry the secret-hash claim.
type testSecretUser struct {
	testUser
	secret    string
	fallbacks []string
}

func (u *testSecretUser) SecretHash() string             { return u.secret }
func (u *testSecretUser) FallbackSecretHashes() []string { return u.fallbacks }

// testValidator accepts one username/password pair and counts recorded
// logins.
type testValidator struct {
	username string
	password string
	user     Principal
	logins   int
}

func (v *testValidator) Validate(_ context.Context, creds Credentials) (Principal, error) {
	if creds.Username != v.username || creds.Password != v.password {
		return nil, fmt.Errorf("credential mismatch")
	}
	return v.user, nil
}

func (v *testValidator) RecordLogin(_ context.Context, _ Principal) error {
	v.logins++
	return nil
}

func newTestValidator() *testValidator {
	return &testValidator{
		username: "alice",
		password: "correct-horse-battery-staple",
		user:     &testUser{id: int64(7), active: true},
	}
}

func testCredentials() Credentials {
	return Credentials{Username: "alice", Password: "correct-horse-battery-staple"}
}

// writeTempRSAKeys writes a throwaway RSA key pair with the permissions the
// config validator demands and returns the paths.
func writeTempRSAKeys(t *testing.T) (privatePath, publicPath string) {
	t.Helper()
	dir := t.TempDir()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privatePath = filepath.Join(dir, "private.pem")
	privatePEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	require.NoError(t, os.WriteFile(privatePath, privatePEM, 0600))

	publicBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPath = filepath.Join(dir, "public.pem")
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicBytes})
	require.NoError(t, os.WriteFile(publicPath, publicPEM, 0644))

	return privatePath, publicPath
}

// writeTempECDSAKeys writes a throwaway ECDSA P-256 key pair.
func writeTempECDSAKeys(t *testing.T) (privatePath, publicPath string) {
	t.Helper()
	dir := t.TempDir()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	privateBytes, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	privatePath = filepath.Join(dir, "private.pem")
	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privateBytes})
	require.NoError(t, os.WriteFile(privatePath, privatePEM, 0600))

	publicBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	publicPath = filepath.Join(dir, "public.pem")
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicBytes})
	require.NoError(t, os.WriteFile(publicPath, publicPEM, 0644))

	return privatePath, publicPath
}
