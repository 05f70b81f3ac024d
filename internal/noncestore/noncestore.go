// Package noncestore defines the replay-defense interface spec.md §4.1
// requires every accepted envelope to pass through, and a Key helper that
// builds the `(public_key, nonce)` replay key spec.md §4.1 specifies.
//
// Two backends implement Store: noncestore/memory (an in-process
// mutex/map-guarded cache with periodic eviction) and noncestore/postgres
// (atomic upsert against the shared database). Both must behave
// identically: FirstUse returns true exactly once per key within the TTL.
package noncestore

import (
	"context"
	"fmt"
	"time"
)

// Store is the nonce first-use service. The server must not accept any
// signed request until a Store is constructed and reachable; if the
// backing store is unreachable, FirstUse returns an error — the caller
// must treat that as Unavailable and never silently admit the request.
type Store interface {
	// FirstUse atomically inserts key with the given expiration if and only
	// if it is not already present (or has expired), returning true iff the
	// insert happened (i.e. this is the first use within the window).
	FirstUse(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Close releases any background resources (eviction goroutines, DB
	// handles) the store owns.
	Close() error
}

// Key builds the replay key spec.md §4.1 specifies:
// "replay:" + sender_public_key + ":" + nonce_uuid.
func Key(publicKeyPEM, nonce string) string {
	return fmt.Sprintf("replay:%s:%s", publicKeyPEM, nonce)
}
