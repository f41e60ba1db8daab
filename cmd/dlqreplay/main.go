package main

import (
	"context"
	"flag"
	"log"
	"time"

	"AlertFuse/internal/di"
	"AlertFuse/internal/domain/models"
	"AlertFuse/internal/service/dlq"
	"AlertFuse/pkg/config"
)

// dlqreplay republishes parked messages from a dead-letter topic back
// onto its original topic.
func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	topic := flag.String("topic", "", "original topic whose dead letters to replay")
	limit := flag.Int("limit", 10, "maximum messages to replay")
	flag.Parse()

	if *topic == "" {
		log.Fatal("--topic is required")
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	mgr, cleanup, err := di.InitializeDLQManager(cfg)
	if err != nil {
		log.Fatalf("dlq initialization failed: %v", err)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := mgr.Replay(ctx, *topic, dlq.ReplayOptions{
		Limit: *limit,
		OnReplay: func(msg *models.DLQMessage) {
			log.Printf("replayed id=%s retries=%d", msg.ID, msg.RetryCount)
		},
	})
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}

	log.Printf("topic=%s replayed=%d skipped=%d errors=%d", *topic, res.Replayed, res.Skipped, res.Errors)
}
