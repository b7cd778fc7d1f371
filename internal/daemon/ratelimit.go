package daemon

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// rateLimiter is a per-client token bucket
type rateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	rate      int           // tokens per interval
	interval  time.Duration // refill interval
	burst     int           // bucket size
	staleAge  time.Duration
	lastPrune time.Time
	now       func() time.Time
}

type bucket struct {
	tokens    int
	lastCheck time.Time
}

func newRateLimiter(rate int, interval time.Duration, burst int) *rateLimiter {
	return &rateLimiter{
		buckets:  make(map[string]*bucket),
		rate:     rate,
		interval: interval,
		burst:    burst,
		staleAge: 5 * time.Minute,
		now:      time.Now,
	}
}

// Allow takes a token from key's bucket, reporting whether one was left
func (rl *rateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)

	b, ok := rl.buckets[key]
	if !ok {
		rl.buckets[key] = &bucket{tokens: rl.burst - 1, lastCheck: now}
		return true
	}

	if refill := int(now.Sub(b.lastCheck)/rl.interval) * rl.rate; refill > 0 {
		b.tokens = min(b.tokens+refill, rl.burst)
		b.lastCheck = now
	}

	if b.tokens > 0 {
		b.tokens--
		return true
	}
	return false
}

// Remaining returns the tokens left for key
func (rl *rateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if b, ok := rl.buckets[key]; ok {
		return b.tokens
	}
	return rl.burst
}

// prune drops idle buckets at most once per staleAge. Caller holds mu.
func (rl *rateLimiter) prune(now time.Time) {
	if now.Sub(rl.lastPrune) < rl.staleAge {
		return
	}
	rl.lastPrune = now
	cutoff := now.Add(-rl.staleAge)
	for key, b := range rl.buckets {
		if b.lastCheck.Before(cutoff) {
			delete(rl.buckets, key)
		}
	}
}

// limit wraps handlers that execute code. Bursts of up to perMinute requests
// are allowed, refilled at perMinute per minute. A nil limiter passes through.
func (rl *rateLimiter) limit(next http.HandlerFunc) http.HandlerFunc {
	if rl == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)
		if !rl.Allow(key) {
			slog.Warn("rate limit exceeded",
				"correlation_id", GetCorrelationID(r.Context()),
				"client", key,
				"path", r.URL.Path,
			)
			w.Header().Set("Retry-After", "60")
			w.Header().Set("X-RateLimit-Remaining", "0")
			jsonError(w, http.StatusTooManyRequests, "too many code execution requests, please wait before trying again", nil)
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining(key)))
		next(w, r)
	}
}

// clientIP picks the client address, preferring proxy headers
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
