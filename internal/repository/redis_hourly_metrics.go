package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	drepo "AlertFuse/internal/domain/repository"
)

const hourlyRetention = 8 * 24 * time.Hour

// RedisHourlyMetrics keeps per-tenant, per-hour counters in hashes
// keyed "alertfuse:metrics:<tenant>:<yyyymmddhh>". This is the
// operator-facing read model; Prometheus covers the process view.
type RedisHourlyMetrics struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisHourlyMetrics(client *redis.Client, prefix string) *RedisHourlyMetrics {
	if prefix == "" {
		prefix = "alertfuse:metrics"
	}
	return &RedisHourlyMetrics{client: client, prefix: prefix, now: time.Now}
}

func (m *RedisHourlyMetrics) key(tenantID string, t time.Time) string {
	return fmt.Sprintf("%s:%s:%s", m.prefix, tenantID, t.UTC().Format("2006010215"))
}

func (m *RedisHourlyMetrics) Incr(ctx context.Context, tenantID, name string, delta int64) error {
	key := m.key(tenantID, m.now())
	pipe := m.client.Pipeline()
	pipe.HIncrBy(ctx, key, name, delta)
	pipe.Expire(ctx, key, hourlyRetention)
	_, err := pipe.Exec(ctx)
	return err
}

// Summary folds the last n hourly hashes into one counter map and adds
// the computed latency average. Latency is stored as sum and count,
// never pre-averaged.
func (m *RedisHourlyMetrics) Summary(ctx context.Context, tenantID string, hours int) (map[string]int64, error) {
	if hours <= 0 {
		hours = 24
	}

	now := m.now().UTC().Truncate(time.Hour)
	out := make(map[string]int64)
	for i := 0; i < hours; i++ {
		vals, err := m.client.HGetAll(ctx, m.key(tenantID, now.Add(-time.Duration(i)*time.Hour))).Result()
		if err != nil {
			return nil, fmt.Errorf("hourly metrics read: %w", err)
		}
		for name, raw := range vals {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				continue
			}
			out[name] += n
		}
	}

	if cnt := out[drepo.MetricPipelineLatencyCnt]; cnt > 0 {
		out["pipeline_latency_ms_avg"] = out[drepo.MetricPipelineLatencySum] / cnt
	}
	return out, nil
}

var _ drepo.HourlyMetrics = (*RedisHourlyMetrics)(nil)

// RedisWatermarks stores the fusion engine's per-tenant progress mark.
type RedisWatermarks struct {
	client *redis.Client
	prefix string
}

func NewRedisWatermarks(client *redis.Client, prefix string) *RedisWatermarks {
	if prefix == "" {
		prefix = "alertfuse:watermark"
	}
	return &RedisWatermarks{client: client, prefix: prefix}
}

func (w *RedisWatermarks) key(tenantID string) string {
	return w.prefix + ":" + tenantID
}

func (w *RedisWatermarks) Get(ctx context.Context, tenantID string) (time.Time, error) {
	raw, err := w.client.Get(ctx, w.key(tenantID)).Result()
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("watermark read: %w", err)
	}
	nanos, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("watermark parse: %w", err)
	}
	return time.Unix(0, nanos).UTC(), nil
}

func (w *RedisWatermarks) Set(ctx context.Context, tenantID string, t time.Time) error {
	return w.client.Set(ctx, w.key(tenantID), strconv.FormatInt(t.UnixNano(), 10), 0).Err()
}

var _ drepo.Watermarks = (*RedisWatermarks)(nil)
