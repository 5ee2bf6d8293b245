package adapter

import (
	"context"
	"errors"
	"sort"
	"time"

	"quiztube/internal/domain"

	"github.com/redis/go-redis/v9"
)

// RedisCacheAdapter backs domain.Cache with Redis. It holds cached transcripts
// as plain strings and generation job records as hashes.
type RedisCacheAdapter struct {
	rdb redis.UniversalClient
}

func NewRedisCacheAdapter(rdb redis.UniversalClient) domain.Cache {
	return &RedisCacheAdapter{rdb: rdb}
}

func (a *RedisCacheAdapter) Get(ctx context.Context, key string) (string, error) {
	val, err := a.rdb.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", domain.ErrCacheMiss
	case err != nil:
		return "", err
	}
	return val, nil
}

func (a *RedisCacheAdapter) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return a.rdb.Set(ctx, key, value, ttl).Err()
}

func (a *RedisCacheAdapter) Delete(ctx context.Context, key string) error {
	return a.rdb.Del(ctx, key).Err()
}

func (a *RedisCacheAdapter) Ping(ctx context.Context) error {
	return a.rdb.Ping(ctx).Err()
}

func (a *RedisCacheAdapter) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := a.rdb.HGetAll(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return map[string]string{}, nil
	}
	return fields, err
}

// HSet sends field/value pairs sorted by field name so the command is deterministic.
func (a *RedisCacheAdapter) HSet(ctx context.Context, key string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]interface{}, 0, 2*len(names))
	for _, name := range names {
		pairs = append(pairs, name, values[name])
	}
	return a.rdb.HSet(ctx, key, pairs...).Err()
}

func (a *RedisCacheAdapter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return a.rdb.Expire(ctx, key, ttl).Err()
}
