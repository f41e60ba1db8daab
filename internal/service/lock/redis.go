package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// acquireScript implements acquire-or-steal as one atomic server-side step.
// The record holds locked_at (unix seconds), ttl (seconds) and holder; the
// key itself expires at 2*ttl as a janitor for crashed holders.
var acquireScript = redis.NewScript(`
local locked_at = redis.call('HGET', KEYS[1], 'locked_at')
local now = tonumber(ARGV[1])
local ttl = tonumber(ARGV[2])
if locked_at then
  local cur_ttl = tonumber(redis.call('HGET', KEYS[1], 'ttl'))
  if cur_ttl == nil then cur_ttl = ttl end
  if now - tonumber(locked_at) < cur_ttl then
    return 0
  end
end
redis.call('HSET', KEYS[1], 'locked_at', now, 'ttl', ttl, 'holder', ARGV[3])
redis.call('EXPIRE', KEYS[1], ttl * 2)
return 1
`)

// RedisStore is the shared, authoritative lock backend.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "alertfuse:lock"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(name string) string {
	return fmt.Sprintf("%s:%s", s.prefix, name)
}

func (s *RedisStore) AcquireOrSteal(ctx context.Context, name string, now time.Time, ttl time.Duration, holder string) (bool, error) {
	ttlSec := int64(ttl / time.Second)
	if ttlSec <= 0 {
		ttlSec = 1
	}
	n, err := acquireScript.Run(ctx, s.client, []string{s.key(name)},
		now.Unix(), ttlSec, holder).Int()
	if err != nil {
		return false, fmt.Errorf("lock script: %w", err)
	}
	return n == 1, nil
}

func (s *RedisStore) Release(ctx context.Context, name string) error {
	return s.client.Del(ctx, s.key(name)).Err()
}
