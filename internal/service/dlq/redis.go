package dlq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"AlertFuse/internal/domain/models"
)

// RedisStore keeps each dead topic as a list, newest first. Removal
// matches on the serialized message so replayed entries disappear even
// when several replicas replay concurrently.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "alertfuse:dlq"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(deadTopic string) string {
	return fmt.Sprintf("%s:%s", s.prefix, deadTopic)
}

func (s *RedisStore) Append(ctx context.Context, deadTopic string, msg *models.DLQMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("dlq marshal: %w", err)
	}
	return s.client.LPush(ctx, s.key(deadTopic), data).Err()
}

func (s *RedisStore) List(ctx context.Context, deadTopic string, limit int) ([]*models.DLQMessage, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	raw, err := s.client.LRange(ctx, s.key(deadTopic), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("dlq list: %w", err)
	}

	out := make([]*models.DLQMessage, 0, len(raw))
	for _, item := range raw {
		var msg models.DLQMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			// A corrupt entry must not block the readable ones.
			continue
		}
		out = append(out, &msg)
	}
	return out, nil
}

func (s *RedisStore) Remove(ctx context.Context, deadTopic string, msg *models.DLQMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("dlq marshal: %w", err)
	}
	return s.client.LRem(ctx, s.key(deadTopic), 1, data).Err()
}

func (s *RedisStore) Len(ctx context.Context, deadTopic string) (int64, error) {
	return s.client.LLen(ctx, s.key(deadTopic)).Result()
}
