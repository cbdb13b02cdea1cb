// helpers.go

package authtoken

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// hashSecret hashes material with SHA-256 for storage and comparison.
// Used for the secret-hash revocation claim so raw secrets never appear
// inside tokens.
func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// newTokenID generates a fresh random token id.
func newTokenID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate token ID: %w", err)
	}
	return id.String(), nil
}

// stringifyUserID normalizes a subject id for the user-id claim: plain
// integers are kept as-is so round trips preserve their JSON type,
// everything else is stringified.
func stringifyUserID(id any) any {
	switch v := id.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return v
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// checkFilePermissions checks that the file is no more permissive than required.
func checkFilePermissions(path string, requiredPerm os.FileMode) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	actualPerm := info.Mode().Perm()
	if actualPerm&^requiredPerm != 0 {
		return fmt.Errorf("file %s has permissions %#o, expected %#o", path, actualPerm, requiredPerm)
	}

	return nil
}
