package cache

import (
	"context"
	"sync/atomic"
	"time"
)

// LayeredCache is the two tier cache (L1 memory, L2 Redis). Writes go
// through to L2 first; an L1 write failure is absorbed since L2 is the
// source of truth. An L2 hit backfills L1 bounded by BackfillTTL.
type LayeredCache struct {
	memCache    *MemoryCache
	redisCache  *RedisCache
	backfillTTL time.Duration

	l1Hits int64
	l2Hits int64
	misses int64
}

// NewLayeredCache creates a layered cache over an existing Redis tier.
func NewLayeredCache(redisCache *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
		BackfillTTL:   time.Minute,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &LayeredCache{
		memCache:    NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		redisCache:  redisCache,
		backfillTTL: cfg.BackfillTTL,
	}
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := lc.redisCache.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	l1TTL := expiration
	if l1TTL <= 0 || l1TTL > lc.backfillTTL {
		l1TTL = lc.backfillTTL
	}
	_ = lc.memCache.Set(ctx, key, value, l1TTL)
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.memCache.Get(ctx, key, dest); err == nil {
		atomic.AddInt64(&lc.l1Hits, 1)
		return nil
	}

	var raw []byte
	if err := lc.redisCache.Get(ctx, key, &raw); err != nil {
		if err == ErrCacheMiss {
			atomic.AddInt64(&lc.misses, 1)
		}
		return err
	}
	atomic.AddInt64(&lc.l2Hits, 1)

	// Backfill so the next read stays in process.
	_ = lc.memCache.Set(ctx, key, raw, lc.backfillTTL)
	return decode(raw, dest)
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.memCache.Delete(ctx, keys...)
	return lc.redisCache.Delete(ctx, keys...)
}

func (lc *LayeredCache) ClearByPrefix(ctx context.Context, prefix string) (int, error) {
	_, _ = lc.memCache.ClearByPrefix(ctx, prefix)
	return lc.redisCache.ClearByPrefix(ctx, prefix)
}

func (lc *LayeredCache) CleanupExpired(ctx context.Context) (int, error) {
	return lc.memCache.CleanupExpired(ctx)
}

func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	return lc.redisCache.Exists(ctx, keys...)
}

func (lc *LayeredCache) Increment(ctx context.Context, key string) (int64, error) {
	// Counters live only in L2; an L1 copy would drift per replica.
	_ = lc.memCache.Delete(ctx, key)
	return lc.redisCache.Increment(ctx, key)
}

func (lc *LayeredCache) Expire(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	return lc.redisCache.Expire(ctx, key, expiration)
}

func (lc *LayeredCache) MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error {
	return lc.redisCache.MSet(ctx, values, expiration)
}

func (lc *LayeredCache) MGet(ctx context.Context, keys ...string) (map[string]string, error) {
	return lc.redisCache.MGet(ctx, keys...)
}

// Stats reports hit counters since startup.
type Stats struct {
	L1Hits int64 `json:"l1_hits"`
	L2Hits int64 `json:"l2_hits"`
	Misses int64 `json:"misses"`
}

func (lc *LayeredCache) Stats() Stats {
	return Stats{
		L1Hits: atomic.LoadInt64(&lc.l1Hits),
		L2Hits: atomic.LoadInt64(&lc.l2Hits),
		Misses: atomic.LoadInt64(&lc.misses),
	}
}

// Close closes both tiers.
func (lc *LayeredCache) Close() error {
	_ = lc.memCache.Close()
	return lc.redisCache.Close()
}
