package ratelimiter

import (
	"sync"
	"sync/atomic"
	"time"
)

// Limiter admits or rejects a request for a caller key. When it rejects, it
// also returns how long until the caller's window resets.
type Limiter interface {
	Allow(key string) (bool, time.Duration)
}

type FixedWindowRateLimiter struct {
	counts      sync.Map // string -> *window
	limit       int64
	window      time.Duration
	now         func() time.Time
	cleanupTick *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
}

type window struct {
	count   int64        // atomic
	resetAt atomic.Value // time.Time
	mu      sync.Mutex   // serializes resets
}

func NewFixedWindowRateLimiter(limit int, period time.Duration) *FixedWindowRateLimiter {
	rl := &FixedWindowRateLimiter{
		limit:       int64(limit),
		window:      period,
		now:         time.Now,
		cleanupTick: time.NewTicker(period),
		done:        make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// WithClock replaces the time source. Intended for tests.
func (rl *FixedWindowRateLimiter) WithClock(now func() time.Time) *FixedWindowRateLimiter {
	rl.now = now
	return rl
}

func (rl *FixedWindowRateLimiter) Allow(key string) (bool, time.Duration) {
	if rl.limit <= 0 {
		return true, 0
	}

	now := rl.now()
	nextReset := now.Truncate(rl.window).Add(rl.window)

	val, _ := rl.counts.LoadOrStore(key, &window{})
	w := val.(*window)

	if w.resetAt.Load() == nil {
		w.mu.Lock()
		if w.resetAt.Load() == nil {
			atomic.StoreInt64(&w.count, 0)
			w.resetAt.Store(nextReset)
		}
		w.mu.Unlock()
	}

	if resetAt := w.resetAt.Load().(time.Time); now.Before(resetAt) {
		return rl.take(w, now, resetAt)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// another caller may have reset the window while we waited
	if resetAt := w.resetAt.Load().(time.Time); now.Before(resetAt) {
		return rl.take(w, now, resetAt)
	}

	atomic.StoreInt64(&w.count, 1)
	w.resetAt.Store(nextReset)
	return true, 0
}

func (rl *FixedWindowRateLimiter) take(w *window, now, resetAt time.Time) (bool, time.Duration) {
	if n := atomic.AddInt64(&w.count, 1); n > rl.limit {
		atomic.AddInt64(&w.count, -1)
		return false, resetAt.Sub(now)
	}
	return true, 0
}

func (rl *FixedWindowRateLimiter) startCleanup() {
	for {
		select {
		case <-rl.cleanupTick.C:
			rl.cleanup()
		case <-rl.done:
			return
		}
	}
}

func (rl *FixedWindowRateLimiter) cleanup() {
	now := rl.now()
	rl.counts.Range(func(key, value any) bool {
		w := value.(*window)
		if resetAt := w.resetAt.Load(); resetAt != nil && now.After(resetAt.(time.Time)) {
			rl.counts.Delete(key)
		}
		return true
	})
}

func (rl *FixedWindowRateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.done)
		rl.cleanupTick.Stop()
	})
}
