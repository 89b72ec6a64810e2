package esasync

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// Limiter is a per-key sliding-window rate limiter. The App keys it by client
// IP, for admin logins and for webhook deliveries.
type Limiter struct {
	mu       sync.Mutex
	attempts map[string][]time.Time
	max      int
	window   time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a Limiter that allows max attempts per window. Stop
// releases its cleanup goroutine.
func NewLimiter(max int, window time.Duration) *Limiter {
	l := &Limiter{
		attempts: make(map[string][]time.Time),
		max:      max,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	go l.cleanup()
	return l
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
		}
		l.mu.Lock()
		cutoff := l.now().Add(-l.window)
		for key := range l.attempts {
			if kept := l.prune(key, cutoff); len(kept) == 0 {
				delete(l.attempts, key)
			}
		}
		l.mu.Unlock()
	}
}

// Stop ends the cleanup goroutine. The limiter keeps working afterwards.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// prune drops the hits of key older than cutoff. l.mu must be held.
func (l *Limiter) prune(key string, cutoff time.Time) []time.Time {
	hits := l.attempts[key]
	kept := hits[:0]
	for _, t := range hits {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.attempts[key] = kept
	return kept
}

// Allow checks if key has not exceeded the rate limit and records the attempt.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if len(l.prune(key, now.Add(-l.window))) >= l.max {
		return false
	}
	l.attempts[key] = append(l.attempts[key], now)
	return true
}

// Check reports whether key has attempts left, without recording one.
func (l *Limiter) Check(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prune(key, l.now().Add(-l.window))) < l.max
}

// Record registers an attempt for key, e.g. a failed login.
func (l *Limiter) Record(key string) {
	l.mu.Lock()
	l.attempts[key] = append(l.attempts[key], l.now())
	l.mu.Unlock()
}

// Middleware rejects requests over the limit with 429, keyed by c.RealIP().
func (l *Limiter) Middleware(message string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return c.String(http.StatusTooManyRequests, message)
			}
			return next(c)
		}
	}
}
