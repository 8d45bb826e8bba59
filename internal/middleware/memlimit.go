package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/maintenance-auth/internal/config"
)

// MemoryLimiter is a per-process sliding-window limiter used when Redis is
// unavailable.  A key may make Capacity requests per window, where the
// window is the time the bucket would need to refill completely.
type MemoryLimiter struct {
	mu         sync.Mutex
	attempts   map[string][]time.Time
	max        int
	window     time.Duration
	lastSweep  time.Time
	sweepEvery time.Duration
}

func NewMemoryLimiter(cfg config.RateLimitConfig) *MemoryLimiter {
	step := cfg.RefillTokens
	if step < 1 {
		step = 1
	}
	refills := (cfg.Capacity + step - 1) / step
	window := time.Duration(refills) * cfg.RefillInterval
	if window <= 0 {
		window = time.Second
	}
	return &MemoryLimiter{
		attempts:   make(map[string][]time.Time),
		max:        cfg.Capacity,
		window:     window,
		sweepEvery: cfg.TTL,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sweepEvery > 0 && now.Sub(l.lastSweep) >= l.sweepEvery {
		l.sweep(now)
		l.lastSweep = now
	}

	// Filter to attempts within window
	var recent []time.Time
	for _, t := range l.attempts[key] {
		if now.Sub(t) < l.window {
			recent = append(recent, t)
		}
	}
	if len(recent) >= l.max {
		l.attempts[key] = recent
		return Decision{RetryAfter: l.window - now.Sub(recent[0])}, nil
	}
	l.attempts[key] = append(recent, now)
	return Decision{Allowed: true, Remaining: int64(l.max - len(recent) - 1)}, nil
}

// Len reports how many keys are tracked.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}

func (l *MemoryLimiter) sweep(now time.Time) {
	for key, attempts := range l.attempts {
		if len(attempts) == 0 || now.Sub(attempts[len(attempts)-1]) >= l.window {
			delete(l.attempts, key)
		}
	}
}
