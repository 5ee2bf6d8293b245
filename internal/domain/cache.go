package domain

import (
	"context"
	"time"
)

type cacheMiss struct{}

func (cacheMiss) Error() string { return "cache miss" }

// ErrCacheMiss reports an absent key. Compare with errors.Is.
var ErrCacheMiss error = cacheMiss{}

// Cache is the key/value store used for transcript reuse and generation job
// status. Implementations must be safe for concurrent use.
type Cache interface {
	// Get fails with ErrCacheMiss for absent keys.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key; a zero ttl never expires.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error

	// HGetAll yields an empty map for an absent hash.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, values map[string]string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}
