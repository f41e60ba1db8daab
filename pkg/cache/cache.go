package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
)

// Service defines cache operations. ClearByPrefix reports how many
// entries it removed; CleanupExpired reports how many it purged.
type Service interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, keys ...string) error
	ClearByPrefix(ctx context.Context, prefix string) (int, error)
	CleanupExpired(ctx context.Context) (int, error)
	Exists(ctx context.Context, keys ...string) (bool, error)
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) (bool, error)
	MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error
	MGet(ctx context.Context, keys ...string) (map[string]string, error)
	Close() error
}

// GetOrLoad returns the cached value under key, or runs loader once and
// caches its result. Cache failures degrade to a plain load; a broken
// cache slows reads down but never breaks them.
func GetOrLoad[T any](ctx context.Context, c Service, key string, ttl time.Duration, loader func(ctx context.Context) (T, error)) (T, error) {
	var out T
	if err := c.Get(ctx, key, &out); err == nil {
		return out, nil
	}

	out, err := loader(ctx)
	if err != nil {
		return out, err
	}
	_ = c.Set(ctx, key, out, ttl)
	return out, nil
}

// MGetTyped retrieves multiple keys and unmarshals to a typed map.
func MGetTyped[T any](ctx context.Context, c Service, keys ...string) (map[string]T, error) {
	if len(keys) == 0 {
		return make(map[string]T), nil
	}

	rawResults, err := c.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}

	typedResults := make(map[string]T, len(rawResults))
	for key, rawValue := range rawResults {
		var obj T
		if err := json.Unmarshal([]byte(rawValue), &obj); err != nil {
			continue // Skip invalid JSON
		}
		typedResults[key] = obj
	}

	return typedResults, nil
}
