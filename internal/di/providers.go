package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"AlertFuse/internal/domain/repository"
	"AlertFuse/internal/handler/api"
	internalrepo "AlertFuse/internal/repository"
	"AlertFuse/internal/service/dlq"
	"AlertFuse/internal/service/enrich"
	"AlertFuse/internal/service/idempotency"
	"AlertFuse/internal/service/lock"
	"AlertFuse/internal/service/ratelimit"
	"AlertFuse/internal/service/sanitize"
	"AlertFuse/internal/service/source"
	"AlertFuse/internal/usecase"
	"AlertFuse/pkg/cache"
	pkgch "AlertFuse/pkg/clickhouse"
	"AlertFuse/pkg/config"
	xhttp "AlertFuse/pkg/http"
	pkgkafka "AlertFuse/pkg/kafka"
	applogger "AlertFuse/pkg/logger"
	"AlertFuse/pkg/metrics"
	"AlertFuse/pkg/queue"
	"AlertFuse/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := cfg.Logging.Level
	if level == "" {
		level = "info"
	}
	format := cfg.Logging.Format
	if format == "" {
		format = "json"
	}
	output := cfg.Logging.Output
	if output == "" {
		output = "stdout"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: output})
}

// ProvideRedisClient creates the shared Redis client. Redis is the
// authoritative store for locks, idempotency keys, rate-limit counters,
// DLQ contents, and watermarks.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// ProvideClickHouseClient creates a ClickHouse client and initializes
// the schema.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
		internalrepo.PostSchema,
		internalrepo.FusedSchema,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideHourlyMetrics creates the per-tenant hourly counter store.
func ProvideHourlyMetrics(rdb *redis.Client) repository.HourlyMetrics {
	return internalrepo.NewRedisHourlyMetrics(rdb, "")
}

// ProvideWatermarks creates the fusion watermark store.
func ProvideWatermarks(rdb *redis.Client) repository.Watermarks {
	return internalrepo.NewRedisWatermarks(rdb, "")
}

// ProvidePostStore creates the ClickHouse post store.
func ProvidePostStore(chClient *pkgch.Client) repository.PostStore {
	return internalrepo.NewClickHousePostStore(chClient.DB(), "")
}

// ProvideFusedStore creates the ClickHouse fused event store.
func ProvideFusedStore(chClient *pkgch.Client) repository.FusedStore {
	return internalrepo.NewClickHouseFusedStore(chClient.DB(), "")
}

// ProvidePublisher creates the Kafka publisher for normalized posts.
// The concrete type also serves DLQ republish.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) *internalrepo.KafkaPublisher {
	topic := cfg.Kafka.Topic
	if topic == "" {
		topic = usecase.CollectTopic
	}
	return internalrepo.NewKafkaPublisher(producer, topic, cfg.Kafka.AlertTopic)
}

// ProvideDomainPublisher exposes the publisher under its domain interface.
func ProvideDomainPublisher(p *internalrepo.KafkaPublisher) repository.Publisher {
	return p
}

// ProvideAlertPublisher exposes the alert delivery interface.
func ProvideAlertPublisher(p *internalrepo.KafkaPublisher) repository.AlertPublisher {
	return p
}

// ProvideLockService creates the distributed lock service. The holder
// carries the hostname so a lost lock can be traced to an instance.
func ProvideLockService(rdb *redis.Client, log *applogger.Logger) *lock.Service {
	holder, err := os.Hostname()
	if err != nil || holder == "" {
		holder = "alertfuse"
	}
	return lock.New(lock.NewRedisStore(rdb, ""), holder, log)
}

// ProvideIdempotency creates the idempotency service.
func ProvideIdempotency(rdb *redis.Client) *idempotency.Service {
	return idempotency.New(idempotency.NewRedisStore(rdb, ""), 24*time.Hour)
}

// ProvideJobEnqueuer creates the producer side of the Redis job queue,
// used by DLQ replay to re-enqueue parked collect jobs.
func ProvideJobEnqueuer(log *applogger.Logger, rdb *redis.Client) internalrepo.JobEnqueuer {
	return queue.NewRedisPublisher(log, rdb)
}

// ProvideReplayRouter routes replayed dead letters: parked collect jobs
// re-enter the job queue, post topics go back to Kafka.
func ProvideReplayRouter(pub *internalrepo.KafkaPublisher, jobs internalrepo.JobEnqueuer) *internalrepo.ReplayRouter {
	return internalrepo.NewReplayRouter(pub, jobs, usecase.CollectJobsTopic, usecase.CollectJobType)
}

// ProvideDLQManager creates the DLQ manager.
func ProvideDLQManager(
	rdb *redis.Client,
	router *internalrepo.ReplayRouter,
	log *applogger.Logger,
	m repository.Metrics,
	hourly repository.HourlyMetrics,
) *dlq.Manager {
	return dlq.NewManager(dlq.NewRedisStore(rdb, ""), router, log,
		dlq.WithMetrics(m),
		dlq.WithHourlyMetrics(hourly),
	)
}

// ProvideRateLimiter creates the admission-control limiter backed by Redis.
func ProvideRateLimiter(rdb *redis.Client, cfg *config.Config, log *applogger.Logger) *ratelimit.Limiter {
	rlCfg := ratelimit.Standard
	if cfg.RateLimit.MaxRequests > 0 {
		rlCfg = ratelimit.Config{MaxRequests: cfg.RateLimit.MaxRequests, Window: cfg.RateLimit.Window}
	}
	return ratelimit.New(ratelimit.NewRedisStore(rdb, ""), rlCfg, log)
}

// ProvideCache creates the two-tier cache over the shared Redis client.
func ProvideCache(rdb *redis.Client) cache.Service {
	return cache.NewLayeredCache(cache.NewRedisCacheFromClient(rdb, ""))
}

// ProvideSanitizer creates the content sanitizer.
func ProvideSanitizer(log *applogger.Logger) *sanitize.Service {
	return sanitize.New(log)
}

// ProvideEnricher creates the enrichment service, or nil when disabled.
func ProvideEnricher(cfg *config.Config, san *sanitize.Service, c cache.Service, log *applogger.Logger) *enrich.Service {
	if !cfg.Enrichment.Enabled {
		return nil
	}
	provider := enrich.NewHTTPProvider(cfg.Enrichment.BaseURL, cfg.Enrichment.APIKey,
		enrich.WithModel(cfg.Enrichment.Model))
	return enrich.New(provider, san, log, enrich.WithCache(c))
}

// ProvideMarketSource creates the live-quote bridge for the market
// collector, or nil when no API key is configured.
func ProvideMarketSource(cfg *config.Config, m repository.Metrics, log *applogger.Logger) *source.MarketSource {
	mc := cfg.Sources.Market
	if mc.APIKey == "" || mc.WebSocketURL == "" {
		return nil
	}
	stream := source.NewQuoteStream(mc.APIKey, mc.WebSocketURL, mc.Symbols, mc.ReconnectDelay, mc.PingInterval, log)
	return source.NewMarketSource(stream, m, log)
}

// ProvideRegistry builds the source registry from config. Platforms
// without credentials are simply not registered; a collect job naming
// them fails as an unknown platform.
func ProvideRegistry(cfg *config.Config, market *source.MarketSource) (*source.Registry, error) {
	registry := source.NewRegistry()

	if market != nil {
		if err := registry.Register("market", market); err != nil {
			return nil, err
		}
	}
	if nc := cfg.Sources.News; nc.BaseURL != "" {
		if err := registry.Register("news", source.NewNewsSource("news-api", nc.BaseURL, nc.APIKey, nc.RPS)); err != nil {
			return nil, err
		}
	}
	if sc := cfg.Sources.Social; sc.BaseURL != "" {
		if err := registry.Register("social", source.NewSocialSource("social-api", sc.BaseURL, sc.APIKey, sc.RPS)); err != nil {
			return nil, err
		}
	}
	if feeds := cfg.Sources.RSS.Feeds; len(feeds) > 0 {
		if err := registry.Register("rss", source.NewRSSSource("rss", feeds[0], 1)); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// ProvideCollector creates the collect pipeline use case.
func ProvideCollector(
	registry *source.Registry,
	locks *lock.Service,
	idem *idempotency.Service,
	pub repository.Publisher,
	dlqMgr *dlq.Manager,
	m repository.Metrics,
	hourly repository.HourlyMetrics,
	enricher *enrich.Service,
	log *applogger.Logger,
) *usecase.Collector {
	opts := []usecase.CollectorOption{usecase.WithHourly(hourly)}
	if enricher != nil {
		opts = append(opts, usecase.WithEnricher(enricher))
	}
	return usecase.NewCollector(registry, locks, idem, pub, dlqMgr, m, log, opts...)
}

// ProvideFusion creates the fusion engine.
func ProvideFusion(
	posts repository.PostStore,
	fused repository.FusedStore,
	watermarks repository.Watermarks,
	m repository.Metrics,
	hourly repository.HourlyMetrics,
	alerts repository.AlertPublisher,
	log *applogger.Logger,
	cfg *config.Config,
) *usecase.Fusion {
	fc := usecase.DefaultFusionConfig()
	if cfg.Fusion.CorrelationWindow > 0 {
		fc.CorrelationWindow = cfg.Fusion.CorrelationWindow
	}
	if cfg.Fusion.Lookback > 0 {
		fc.Lookback = cfg.Fusion.Lookback
	}
	if cfg.Fusion.MinSeverity > 0 {
		fc.MinSeverity = cfg.Fusion.MinSeverity
	}
	if cfg.Fusion.OneMinPct > 0 {
		fc.OneMinChangePct = cfg.Fusion.OneMinPct
	}
	if cfg.Fusion.FiveMinPct > 0 {
		fc.FiveMinChangePct = cfg.Fusion.FiveMinPct
	}
	if cfg.Fusion.HourPct > 0 {
		fc.HourChangePct = cfg.Fusion.HourPct
	}
	if cfg.Fusion.VolumeSpikeRatio > 0 {
		fc.VolumeSpikeRatio = cfg.Fusion.VolumeSpikeRatio
	}
	if len(cfg.Fusion.WatchTerms) > 0 {
		fc.WatchTerms = cfg.Fusion.WatchTerms
	}
	return usecase.NewFusion(posts, fused, watermarks, m, hourly, log, fc,
		usecase.WithAlertPublisher(alerts))
}

// ProvideEventsHandler registers the consumer handler for the
// normalized events topic.
func ProvideEventsHandler(cfg *config.Config, posts repository.PostStore, m repository.Metrics, log *applogger.Logger) *usecase.EventsHandler {
	return usecase.NewEventsHandler(cfg.Kafka.Topic, posts, m, log)
}

// ProvideConsumerHandler wraps the events handler with envelope
// redelivery so exhausted messages park in the DLQ manager's store, the
// same surface Replay and Stats read.
func ProvideConsumerHandler(h *usecase.EventsHandler, mgr *dlq.Manager, cfg *config.Config) pkgkafka.MessageHandler {
	return usecase.NewGuardedHandler(h, mgr, cfg.Kafka.Consumer.RetryMax)
}

// ProvideJobQueue creates the Redis job queue consumer.
func ProvideJobQueue(log *applogger.Logger, rdb *redis.Client) *queue.RedisQueue {
	return queue.NewRedisQueue(log, &queue.QueueConfig{
		Workers:    2,
		RetryLimit: 3,
		RetryDelay: 10 * time.Second,
	}, rdb, queue.ModeConsumerOnly)
}

// ProvideQueueJobs builds the queued-job trigger handlers.
func ProvideQueueJobs(collector *usecase.Collector, fusion *usecase.Fusion, log *applogger.Logger) []queue.Job {
	return []queue.Job{
		usecase.NewCollectQueueJob(collector, log),
		usecase.NewFusionQueueJob(fusion, log),
	}
}

// ProvideHTTPHandler assembles the route groups.
func ProvideHTTPHandler(
	collector *usecase.Collector,
	fusion *usecase.Fusion,
	limiter *ratelimit.Limiter,
	m repository.Metrics,
	dlqMgr *dlq.Manager,
	hourly repository.HourlyMetrics,
	fused repository.FusedStore,
	posts repository.PostStore,
	log *applogger.Logger,
) xhttp.Handler {
	return api.NewRouter(
		api.NewTriggersHandler(collector, fusion, limiter, m, log),
		api.NewAdminHandler(dlqMgr, hourly, fused, posts, log),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	httpHandler xhttp.Handler,
	market *source.MarketSource,
	consumer *pkgkafka.Consumer,
	eh pkgkafka.MessageHandler,
	jobQueue *queue.RedisQueue,
	jobs []queue.Job,
	chClient *pkgch.Client,
	rdb *redis.Client,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, log, httpHandler, market, consumer, eh, jobQueue, jobs, chClient, rdb)
}
