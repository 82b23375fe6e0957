package middleware

import (
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig configures the per-client token bucket.
type RateLimiterConfig struct {
	// RequestsPerMinute is the sustained rate each client bucket refills to.
	RequestsPerMinute int
	// CleanupInterval is how often idle buckets are purged. Defaults to 5 minutes.
	CleanupInterval time.Duration
}

type bucketEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a token-bucket limiter keyed by client network address, one
// bucket per address behind a sync.Map so concurrent requests from distinct
// clients never contend on a shared lock.
type RateLimiter struct {
	config  RateLimiterConfig
	rate    rate.Limit
	burst   int
	buckets sync.Map // map[string]*bucketEntry
	nowFunc func() time.Time
	stopCh  chan struct{}
}

// NewRateLimiter creates a RateLimiter and starts a background cleanup goroutine.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.CleanupInterval == 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = 10
	}

	rl := &RateLimiter{
		config:  config,
		rate:    rate.Limit(float64(config.RequestsPerMinute) / 60),
		burst:   config.RequestsPerMinute,
		nowFunc: time.Now,
		stopCh:  make(chan struct{}),
	}

	go rl.cleanup()
	return rl
}

// Stop halts the background cleanup goroutine.
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			cutoff := rl.nowFunc().Add(-rl.config.CleanupInterval)
			rl.buckets.Range(func(key, value interface{}) bool {
				entry := value.(*bucketEntry)
				if entry.lastSeen.Before(cutoff) {
					rl.buckets.Delete(key)
				}
				return true
			})
		}
	}
}

// Allow reports whether key (a client address) may proceed now. On refusal
// it also returns a retry-after hint in seconds.
func (rl *RateLimiter) Allow(key string) (bool, int) {
	val, _ := rl.buckets.LoadOrStore(key, &bucketEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)})
	entry := val.(*bucketEntry)
	entry.lastSeen = rl.nowFunc()

	if entry.limiter.Allow() {
		return true, 0
	}

	retryAfter := int(1 / float64(rl.rate))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter
}

// RateLimit returns Chi middleware enforcing the per-client-address token
// bucket. On exceed it writes the SSE error event directly, since the
// caller never otherwise receives a response body on this endpoint.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientAddress(r)

			allowed, retryAfter := rl.Allow(key)
			if !allowed {
				w.Header().Set("Content-Type", "text/event-stream")
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprintf(w, "event: error\ndata: {\"type\":\"error\",\"error\":\"rate_limit_exceeded\",\"detail\":\"per-client rate limit exceeded\"}\n\n")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientAddress extracts the client's network address, stripping the port
// so a single client behind an ephemeral source port always maps to one bucket.
func clientAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
