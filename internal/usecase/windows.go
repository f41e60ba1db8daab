package usecase

import (
	"sync"
	"time"
)

type tick struct {
	ts     time.Time
	price  float64
	volume float64
}

// WindowTracker keeps rolling per-symbol tick windows so the fusion
// engine can compute percentage price changes and volume spikes
// without querying the store per candidate.
type WindowTracker struct {
	mu        sync.Mutex
	ticks     map[string][]tick
	retention time.Duration
}

func NewWindowTracker(retention time.Duration) *WindowTracker {
	if retention <= 0 {
		retention = time.Hour
	}
	return &WindowTracker{
		ticks:     make(map[string][]tick),
		retention: retention,
	}
}

func (w *WindowTracker) Add(symbol string, ts time.Time, price, volume float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	list := append(w.ticks[symbol], tick{ts: ts, price: price, volume: volume})
	cutoff := ts.Add(-w.retention)
	for len(list) > 0 && list[0].ts.Before(cutoff) {
		list = list[1:]
	}
	w.ticks[symbol] = list
}

// ChangePct reports the percentage price move between the oldest tick
// inside the window and the latest tick. Zero when history is too thin.
func (w *WindowTracker) ChangePct(symbol string, window time.Duration, now time.Time) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	list := w.ticks[symbol]
	if len(list) < 2 {
		return 0
	}

	latest := list[len(list)-1]
	cutoff := now.Add(-window)
	var base *tick
	for i := range list {
		if !list[i].ts.Before(cutoff) {
			base = &list[i]
			break
		}
	}
	if base == nil || base.price == 0 || base.ts.Equal(latest.ts) {
		return 0
	}
	return (latest.price - base.price) / base.price * 100
}

// VolumeRatio reports the latest tick volume against the window average.
func (w *WindowTracker) VolumeRatio(symbol string, window time.Duration, now time.Time) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	list := w.ticks[symbol]
	if len(list) < 2 {
		return 0
	}

	cutoff := now.Add(-window)
	var sum float64
	var n int
	for _, t := range list[:len(list)-1] {
		if t.ts.Before(cutoff) {
			continue
		}
		sum += t.volume
		n++
	}
	if n == 0 || sum == 0 {
		return 0
	}
	avg := sum / float64(n)
	return list[len(list)-1].volume / avg
}
