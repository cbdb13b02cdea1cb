// cache.go

package authtoken

import (
	"context"
	"time"
)

// RevocationCache is the optional fast-path existence cache in front of the
// revocation store. Entries are plain presence markers: a key is written
// only when the corresponding durable fact is true, so a hit may
// short-circuit the durable check. A miss or an error proves nothing and
// must always fall through to the store.
type RevocationCache interface {
	// Set writes a presence marker with the supplied TTL.
	Set(ctx context.Context, key string, ttl time.Duration) error

	// Exists reports whether a live marker exists for the key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the marker for the key, reporting whether one was
	// present. Deleting a marker only forfeits the fast path; the durable
	// store still holds the fact.
	Delete(ctx context.Context, key string) (bool, error)
}
