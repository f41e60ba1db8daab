package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkScript reads the window counter and only increments below the
// limit, in one round trip. Returns {allowed, count}.
var checkScript = redis.NewScript(`
local count = tonumber(redis.call('GET', KEYS[1]) or '0')
if count >= tonumber(ARGV[1]) then
	return {0, count}
end
count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {1, count}
`)

// RedisStore shares fixed windows across instances.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "alertfuse:ratelimit"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Check(ctx context.Context, identifier string, cfg Config, now time.Time) (Result, error) {
	start := windowStart(now, cfg.Window)
	key := fmt.Sprintf("%s:%s:%d", s.prefix, identifier, start.Unix())

	vals, err := checkScript.Run(ctx, s.client, []string{key},
		cfg.MaxRequests, cfg.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check: %w", err)
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("rate limit check: unexpected reply %v", vals)
	}

	allowed, count := vals[0] == 1, int(vals[1])
	res := Result{
		Allowed:   allowed,
		Limit:     cfg.MaxRequests,
		Remaining: cfg.MaxRequests - count,
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !allowed {
		res.RetryAfter = start.Add(cfg.Window).Sub(now)
	}
	return res, nil
}
