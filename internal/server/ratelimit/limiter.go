// Package ratelimit throttles API requests with per-key token buckets.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleTTL is how long an untouched, refilled bucket is kept.
const idleTTL = 10 * time.Minute

// Result is the outcome of one Allow call.
type Result struct {
	Allowed bool
	// Limit is the number of requests allowed per window.
	Limit int
	// Remaining is the number of whole tokens left in the bucket.
	Remaining int
	// ResetAt is when the bucket is full again.
	ResetAt time.Time
	// RetryAfter is zero when allowed, otherwise at least one second.
	RetryAfter time.Duration
}

// Limiter keeps one token bucket per key.
type Limiter struct {
	limit rate.Limit
	burst int
	per   int

	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
	once    sync.Once
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewLimiter allows requests per window, with up to burst at once. Call
// Close to stop the background sweeper.
func NewLimiter(requests int, window time.Duration, burst int) *Limiter {
	l := &Limiter{
		limit:   rate.Limit(float64(requests) / window.Seconds()),
		burst:   burst,
		per:     requests,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go l.sweep(idleTTL)
	return l
}

// Allow consumes one token from key's bucket if available.
func (l *Limiter) Allow(key string) Result {
	now := time.Now()
	l.mu.Lock()
	b := l.buckets[key]
	if b == nil {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.mu.Unlock()

	res := Result{Limit: l.per}
	r := b.lim.ReserveN(now, 1)
	switch {
	case !r.OK():
		res.RetryAfter = time.Second
	case r.DelayFrom(now) > 0:
		res.RetryAfter = max(r.DelayFrom(now).Round(time.Second), time.Second)
		r.CancelAt(now)
	default:
		res.Allowed = true
	}
	tokens := b.lim.TokensAt(now)
	res.Remaining = max(int(tokens), 0)
	missing := float64(l.burst) - tokens
	res.ResetAt = now.Add(time.Duration(missing / float64(l.limit) * float64(time.Second)))
	return res
}

// Close stops the sweeper. It is safe to call more than once.
func (l *Limiter) Close() {
	l.once.Do(func() { close(l.stop) })
}

func (l *Limiter) sweep(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case now := <-t.C:
			l.evict(now.Add(-idleTTL))
		case <-l.stop:
			return
		}
	}
}

// evict drops buckets that are full and unused since before.
func (l *Limiter) evict(before time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for k, b := range l.buckets {
		if b.lastSeen.Before(before) && b.lim.Tokens() >= float64(l.burst) {
			delete(l.buckets, k)
			n++
		}
	}
	return n
}
