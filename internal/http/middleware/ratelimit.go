package middleware

import (
	"net/http"
	"sync"
	"time"
)

const bucketTTL = 10 * time.Minute

// SendLimiter is a token bucket per caller. The caller is the bearer token
// subject when present, the client address otherwise.
type SendLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64
	burst   int
	now     func() time.Time
	swept   time.Time
}

type bucket struct {
	tokens float64
	last   time.Time
}

// NewSendLimiter allows rate requests per second with the given burst.
func NewSendLimiter(rate float64, burst int) *SendLimiter {
	if burst < 1 {
		burst = 1
	}
	return &SendLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		now:     time.Now,
	}
}

// Allow takes one token from key's bucket.
func (l *SendLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), last: now}
		l.buckets[key] = b
	}
	b.tokens += now.Sub(b.last).Seconds() * l.rate
	if b.tokens > float64(l.burst) {
		b.tokens = float64(l.burst)
	}
	b.last = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// sweep drops idle buckets at most once per TTL; l.mu must be held.
func (l *SendLimiter) sweep(now time.Time) {
	if now.Sub(l.swept) < bucketTTL {
		return
	}
	l.swept = now
	for key, b := range l.buckets {
		if now.Sub(b.last) > bucketTTL {
			delete(l.buckets, key)
		}
	}
}

// Middleware rejects callers over the limit with 429.
func (l *SendLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if xri := r.Header.Get("X-Real-Ip"); xri != "" {
			key = xri
		}
		if claims, ok := APIClaimsFromContext(r.Context()); ok && claims.Subject != "" {
			key = "sub:" + claims.Subject
		}
		if !l.Allow(key) {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
