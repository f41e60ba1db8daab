package source

import (
	"context"
	"errors"
	"sync"

	"AlertFuse/internal/domain/models"
	drepo "AlertFuse/internal/domain/repository"
	"AlertFuse/internal/middleware"
	"AlertFuse/pkg/logger"
)

const marketBufferCap = 4096

var errBufferFull = errors.New("market buffer full")

// MarketSource bridges the live quote stream to the periodic collector.
// Ticks flow through a stream pipeline (validation, per-symbol
// throttle, buffering while the collect buffer is full) into a bounded
// buffer that Fetch drains on each run.
type MarketSource struct {
	stream drepo.MarketStream
	pipe   *middleware.StreamPipeline
	log    *logger.Logger

	mu      sync.Mutex
	buf     []*models.RawEvent
	started bool
}

func NewMarketSource(stream drepo.MarketStream, m drepo.Metrics, log *logger.Logger) *MarketSource {
	s := &MarketSource{stream: stream, log: log}
	s.pipe = middleware.NewStreamPipeline(middleware.ProcFunc(s.accept), m,
		middleware.WithMaxRPS(20),
		middleware.WithBufferSize(1024),
	)
	return s
}

func (s *MarketSource) Name() string          { return "market" }
func (s *MarketSource) Domain() models.Domain { return models.DomainMarket }

// Start connects the stream and begins buffering. Runs until ctx ends,
// reconnecting on stream failure.
func (s *MarketSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	if err := s.stream.Connect(ctx); err != nil {
		return err
	}
	if err := s.stream.Subscribe(ctx); err != nil {
		return err
	}

	s.pipe.Start(ctx)
	go s.readLoop(ctx)
	return nil
}

func (s *MarketSource) readLoop(ctx context.Context) {
	defer s.pipe.Stop()
	for {
		events, errs := s.stream.Read(ctx)
		for ev := range events {
			// Downstream rejections are buffered inside the pipeline
			// and flushed in the background.
			_ = s.pipe.Process(ctx, ev)
		}
		if ctx.Err() != nil {
			return
		}
		if err, ok := <-errs; ok && err != nil && s.log != nil {
			s.log.Warn("market stream dropped, reconnecting", logger.Error(err))
		}
		if err := s.stream.Reconnect(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			if s.log != nil {
				s.log.Error("market stream reconnect failed", logger.Error(err))
			}
			// Reconnect sleeps internally, loop and try again.
		}
	}
}

// accept is the pipeline's downstream: it appends to the collect
// buffer and rejects when the buffer is at capacity, leaving the tick
// in the pipeline's retry buffer instead of silently losing it.
func (s *MarketSource) accept(_ context.Context, ev *models.RawEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) >= marketBufferCap {
		return errBufferFull
	}
	s.buf = append(s.buf, ev)
	return nil
}

// Fetch drains the buffered ticks.
func (s *MarketSource) Fetch(_ context.Context, _ *models.CollectJob) ([]*models.RawEvent, error) {
	s.mu.Lock()
	out := s.buf
	s.buf = nil
	s.mu.Unlock()
	return out, nil
}
