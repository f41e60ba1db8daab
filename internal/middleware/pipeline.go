package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"AlertFuse/internal/domain/models"
	domrepo "AlertFuse/internal/domain/repository"
)

// Proc is the minimal downstream interface the pipeline feeds.
type Proc interface {
	Process(ctx context.Context, ev *models.RawEvent) error
}

// ProcFunc adapts a function to Proc.
type ProcFunc func(ctx context.Context, ev *models.RawEvent) error

func (f ProcFunc) Process(ctx context.Context, ev *models.RawEvent) error { return f(ctx, ev) }

// StreamPipeline sits between the live quote stream and the collect
// buffer. It validates, throttles per symbol, and buffers events when
// downstream is unavailable, flushing them in the background.
type StreamPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.RawEvent
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted time
}

type PipelineOption func(*StreamPipeline)

// WithMaxRPS sets the max events per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *StreamPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size used when downstream
// rejects events.
func WithBufferSize(n int) PipelineOption {
	return func(p *StreamPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func NewStreamPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *StreamPipeline {
	p := &StreamPipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   20,
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.RawEvent, p.bufSize)
	return p
}

// Start launches background flushing of buffered events.
func (p *StreamPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case ev := <-p.bufCh:
				if ev == nil {
					continue
				}
				if err := p.proc.Process(ctx, ev); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- ev:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *StreamPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards an event downstream,
// buffering it when downstream rejects.
func (p *StreamPipeline) Process(ctx context.Context, ev *models.RawEvent) error {
	start := time.Now()
	if err := ev.Validate(); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(throttleKey(ev), start) {
		// throttled; record and drop silently
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, ev); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- ev:
			p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func throttleKey(ev *models.RawEvent) string {
	if ev.Market != nil {
		return ev.Market.Symbol
	}
	return ev.Source
}

func (p *StreamPipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[symbol]
	if last.IsZero() {
		p.lastSeen[symbol] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}
