// Package cache provides the resolution cache used by the verification and
// discovery orchestrators. Values are opaque byte payloads (JSON in
// practice) stored under derived keys with a TTL. Expired entries are
// evicted lazily on read.
package cache

import (
	"context"
	"time"
)

// Default TTLs for cached payloads.
const (
	// VerificationTTL is how long a verified citation result stays cached.
	VerificationTTL = 7 * 24 * time.Hour

	// TopicTTL is how long a ranked discovery list stays cached.
	TopicTTL = 24 * time.Hour
)

// Cache stores byte payloads under string keys with an expiry.
type Cache interface {
	// Get returns the payload stored under key. Missing or expired keys
	// return domain.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key for the given TTL, replacing any
	// existing entry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the entry under key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error
}
