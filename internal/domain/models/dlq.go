package models

import (
	"encoding/json"
	"time"
)

// DLQMessage holds a message whose processing permanently failed after
// exhausting retries. Consumed only by the replay procedure.
type DLQMessage struct {
	ID            string            `json:"id"`
	OriginalTopic string            `json:"original_topic"`
	Data          json.RawMessage   `json:"data"`
	Error         string            `json:"error"`
	Timestamp     time.Time         `json:"timestamp"`
	RetryCount    int               `json:"retry_count"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}
