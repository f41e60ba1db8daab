package models

import "time"

// CollectJob is the descriptor an external scheduler posts to a trigger
// endpoint. Platform selects the source adapter from the registry.
type CollectJob struct {
	TenantID   string    `json:"tenantId" validate:"required"`
	SourceID   string    `json:"sourceId" validate:"required"`
	Platform   string    `json:"platform" validate:"required,oneof=market news social rss"`
	Priority   string    `json:"priority" default:"normal" validate:"oneof=high normal low"`
	RetryCount int       `json:"retryCount" validate:"gte=0"`
	CreatedAt  time.Time `json:"createdAt"`
}
