package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"AlertFuse/internal/service/source"
	pkgch "AlertFuse/pkg/clickhouse"
	"AlertFuse/pkg/config"
	xhttp "AlertFuse/pkg/http"
	pkgkafka "AlertFuse/pkg/kafka"
	applogger "AlertFuse/pkg/logger"
	"AlertFuse/pkg/queue"
)

// App encapsulates the entire application lifecycle: the HTTP trigger
// surface, the queued-job consumer, the Kafka events consumer, and the
// live market stream bridge.
type App struct {
	cfg    *config.Config
	log    *applogger.Logger
	market *source.MarketSource

	consumer      *pkgkafka.Consumer
	eventsHandler pkgkafka.MessageHandler

	jobQueue *queue.RedisQueue
	jobs     []queue.Job

	httpServer  *xhttp.Server
	httpHandler xhttp.Handler

	chClient *pkgch.Client
	redis    *redis.Client
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	httpHandler xhttp.Handler,
	market *source.MarketSource,
	consumer *pkgkafka.Consumer,
	eventsHandler pkgkafka.MessageHandler,
	jobQueue *queue.RedisQueue,
	jobs []queue.Job,
	chClient *pkgch.Client,
	redisClient *redis.Client,
) *App {
	return &App{
		cfg:           cfg,
		log:           log,
		httpHandler:   httpHandler,
		market:        market,
		consumer:      consumer,
		eventsHandler: eventsHandler,
		jobQueue:      jobQueue,
		jobs:          jobs,
		chClient:      chClient,
		redis:         redisClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Market stream bridge: buffers live ticks for the periodic
	// collector. Collect jobs still work without it; Fetch just
	// returns nothing.
	if a.market != nil {
		if err := a.market.Start(ctx); err != nil {
			a.log.Warn("market stream start failed, collect will see no ticks",
				applogger.Error(err))
		} else {
			a.log.Info("market stream started",
				applogger.Strings("symbols", a.cfg.Sources.Market.Symbols))
		}
	}

	// Kafka consumer: normalized posts into ClickHouse.
	if a.consumer != nil && a.eventsHandler != nil {
		a.consumer.RegisterHandler(a.eventsHandler)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started",
			applogger.String("topic", a.eventsHandler.Topic()))
	}

	// Redis job queue: the queued-job trigger path.
	if a.jobQueue != nil && len(a.jobs) > 0 {
		a.jobQueue.RegisterJobs(a.jobs)
		if err := a.jobQueue.Start(); err != nil {
			a.log.Error("job queue start error", applogger.Error(err))
			return err
		}
	}

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.jobQueue != nil {
		if err := a.jobQueue.Stop(shutdownCtx); err != nil {
			a.log.Warn("job queue stop error", applogger.Error(err))
		}
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
