package ratelimit

import (
	"sync"
	"time"

	"evalprof/internal/metrics"
)

// Result is the outcome of a single CheckLimit call.
// ResetIn is expressed in whole seconds, rounded up.
type Result struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
	ResetIn   int  `json:"reset_in"`
}

// record tracks one key. attempts only holds timestamps inside the window
// as of the last check; window is the one that check used.
type record struct {
	attempts     []time.Time
	window       time.Duration
	blocked      bool
	blockedUntil time.Time
}

// Limiter is an in-memory sliding-window rate limiter.
//
// Records live only as long as the process; a restart resets every limit.
// State transitions are evaluated on each call, there is no timer.
type Limiter struct {
	mu      sync.Mutex
	records map[string]*record
	metrics *metrics.Registry
	now     func() time.Time
}

// NewLimiter creates an empty Limiter.
func NewLimiter(metricsRegistry *metrics.Registry) *Limiter {
	return &Limiter{
		records: make(map[string]*record),
		metrics: metricsRegistry,
		now:     time.Now,
	}
}

// WithClock replaces time.Now and returns the limiter.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// CheckLimit records an attempt for key unless the key is over its budget.
//
// Rules:
// - attempts older than window are dropped first
// - a blocked key is denied without recording the attempt
// - reaching maxAttempts blocks the key for window
func (l *Limiter) CheckLimit(key string, maxAttempts int, window time.Duration) Result {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.metrics.Inc(metrics.RateLimitChecksTotal)

	rec, ok := l.records[key]
	if !ok {
		rec = &record{}
		l.records[key] = rec
		l.metrics.Add(metrics.RateLimitKeys, 1)
	}

	rec.window = window
	rec.prune(now, window)

	if rec.blocked && rec.blockedUntil.After(now) {
		l.metrics.Inc(metrics.RateLimitDeniedTotal)
		return Result{
			Allowed:   false,
			Remaining: 0,
			ResetIn:   ceilSeconds(rec.blockedUntil.Sub(now)),
		}
	}

	if len(rec.attempts) >= maxAttempts {
		rec.blocked = true
		rec.blockedUntil = now.Add(window)
		l.metrics.Inc(metrics.RateLimitBlocksTotal)
		l.metrics.Inc(metrics.RateLimitDeniedTotal)
		return Result{
			Allowed:   false,
			Remaining: 0,
			ResetIn:   ceilSeconds(window),
		}
	}

	rec.attempts = append(rec.attempts, now)
	rec.blocked = false
	l.metrics.Inc(metrics.RateLimitAllowedTotal)

	return Result{
		Allowed:   true,
		Remaining: maxAttempts - len(rec.attempts),
		ResetIn:   ceilSeconds(window),
	}
}

// Check applies a named policy to key.
func (l *Limiter) Check(key string, p Policy) Result {
	return l.CheckLimit(key, p.MaxAttempts, p.Window)
}

// Reset forgets everything about key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.records[key]; ok {
		delete(l.records, key)
		l.metrics.Add(metrics.RateLimitKeys, -1)
	}
}

// ClearAll forgets every key.
func (l *Limiter) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.metrics.Add(metrics.RateLimitKeys, -int64(len(l.records)))
	l.records = make(map[string]*record)
}

// Prune deletes records that would behave exactly like a fresh key:
// not blocked (or block lapsed) and no attempt inside the window the key
// was last checked with.
func (l *Limiter) Prune() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, rec := range l.records {
		if rec.blocked && rec.blockedUntil.After(now) {
			continue
		}
		if n := len(rec.attempts); n > 0 && now.Sub(rec.attempts[n-1]) < rec.window {
			continue
		}
		delete(l.records, key)
		removed++
	}

	if removed > 0 {
		l.metrics.Add(metrics.RateLimitKeys, -int64(removed))
	}
	return removed
}

// Len reports how many keys are tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// prune keeps only attempts with now - t < window.
func (r *record) prune(now time.Time, window time.Duration) {
	kept := r.attempts[:0]
	for _, t := range r.attempts {
		if now.Sub(t) < window {
			kept = append(kept, t)
		}
	}
	r.attempts = kept
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
