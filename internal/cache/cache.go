// Package cache provides the TTL key-value store used for classification
// results, dedup markers, and processed-signature markers.
package cache

import (
	"context"
	"time"
)

// Cache is a small TTL key-value contract. Implementations must be safe for
// concurrent use.
type Cache interface {
	// Get returns the value for key and whether it was present and unexpired.
	Get(ctx context.Context, key string) (string, bool, error)

	// SetEx stores value under key with the given time-to-live.
	SetEx(ctx context.Context, key, value string, ttl time.Duration) error

	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)
}
