package dlq

import (
	"context"
	"sync"

	"AlertFuse/internal/domain/models"
)

// MemoryStore keeps dead letters in process. Used in tests and in
// single instance setups without Redis.
type MemoryStore struct {
	mu     sync.Mutex
	queues map[string][]*models.DLQMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{queues: make(map[string][]*models.DLQMessage)}
}

func (s *MemoryStore) Append(_ context.Context, deadTopic string, msg *models.DLQMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[deadTopic] = append([]*models.DLQMessage{msg}, s.queues[deadTopic]...)
	return nil
}

func (s *MemoryStore) List(_ context.Context, deadTopic string, limit int) ([]*models.DLQMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queues[deadTopic]
	if limit <= 0 || limit > len(q) {
		limit = len(q)
	}
	out := make([]*models.DLQMessage, limit)
	copy(out, q[:limit])
	return out, nil
}

func (s *MemoryStore) Remove(_ context.Context, deadTopic string, msg *models.DLQMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.queues[deadTopic]
	for i, m := range q {
		if m.ID == msg.ID {
			s.queues[deadTopic] = append(q[:i], q[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) Len(_ context.Context, deadTopic string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.queues[deadTopic])), nil
}
