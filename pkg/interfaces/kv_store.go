package interfaces

import (
	"context"
	"time"
)

// KeyValueStore is the storage capability the engine keeps its mutable state in:
// pooled geography results and per-tenant confidence. Implementations may be
// backed by process memory, Redis, or a database.
type KeyValueStore interface {
	// Get returns the stored bytes and true, or false when the key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key. A zero ttl means the entry never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists every key starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// HealthChecker is implemented by stores backed by an external service.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
