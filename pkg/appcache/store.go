package appcache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrKeyNotFound is returned by Get when the key is absent or expired.
	ErrKeyNotFound = errors.New("appcache: key not found")

	// ErrRedisNotReady is returned when the Redis server cannot be reached
	// within the configured retry budget.
	ErrRedisNotReady = errors.New("appcache: redis is not ready")

	// ErrInvalidConnectionURL is returned when the Redis connection URL
	// cannot be parsed.
	ErrInvalidConnectionURL = errors.New("appcache: invalid redis connection url")
)

// Store is a shared application cache. Implementations must be safe for
// concurrent use.
type Store interface {
	// Set stores a value under key with the given TTL. A zero TTL means no
	// expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// DeletePattern removes every key matching the glob pattern
	// (e.g. "tenantID:*").
	DeletePattern(ctx context.Context, pattern string) error

	// Close releases resources held by the store.
	Close() error
}
