/*
Package limiter provides keyed token-bucket rate limiting.

A KeyedLimiter holds one rate.Limiter per key (client IP, platform user id, ...)
and runs a janitor goroutine that drops idle buckets so memory stays bounded.
*/
package limiter

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"labelbot/internal/pkg/errs"
	"labelbot/internal/pkg/logx"
	"labelbot/internal/pkg/resp"
)

// DefaultJanitorInterval is how often idle buckets are swept.
const DefaultJanitorInterval = 3 * time.Minute

// KeyedLimiter rate-limits events per key.
type KeyedLimiter struct {
	mu     sync.RWMutex
	limits map[string]*rate.Limiter

	r rate.Limit
	b int

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New returns a KeyedLimiter allowing r events per second with burst b per key,
// and starts the janitor. Call Stop to release it.
func New(r rate.Limit, b int, janitorInterval time.Duration) *KeyedLimiter {
	if janitorInterval <= 0 {
		janitorInterval = DefaultJanitorInterval
	}

	l := &KeyedLimiter{
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	go l.janitor(janitorInterval)

	return l
}

// PerMinute converts an events-per-minute budget to a rate.Limit.
func PerMinute(n float64) rate.Limit {
	return rate.Limit(n / 60)
}

// get returns the limiter for key, creating it under double-checked locking.
func (l *KeyedLimiter) get(key string) *rate.Limiter {
	l.mu.RLock()
	lim, ok := l.limits[key]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		lim, ok = l.limits[key]
		if !ok {
			lim = rate.NewLimiter(l.r, l.b)
			l.limits[key] = lim
		}
		l.mu.Unlock()
	}

	return lim
}

// Allow reports whether one more event for key may happen now.
func (l *KeyedLimiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// Len returns the number of tracked keys.
func (l *KeyedLimiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.limits)
}

// Stop terminates the janitor and waits for it to exit. Safe to call twice.
func (l *KeyedLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}

// janitor removes buckets that are full again, i.e. keys idle long enough
// to have regained their whole burst.
func (l *KeyedLimiter) janitor(interval time.Duration) {
	defer close(l.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case now := <-ticker.C:
			l.sweep(now)
		}
	}
}

func (l *KeyedLimiter) sweep(now time.Time) int {
	l.mu.Lock()
	removed := 0
	for key, lim := range l.limits {
		if lim.TokensAt(now) >= float64(lim.Burst()) {
			delete(l.limits, key)
			removed++
		}
	}
	remaining := len(l.limits)
	l.mu.Unlock()

	if removed > 0 {
		logx.Debug("Rate limiter janitor removed idle keys", "removed", removed, "remaining", remaining)
	}
	return removed
}

// Middleware rate-limits requests by client IP and answers 429 when exceeded.
func (l *KeyedLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if ip == "" {
			ip = "unknown_ip"
		}

		if !l.Allow(ip) {
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		next.ServeHTTP(w, r)
	})
}
