package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestRateLimiter(requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		config:  RateLimiterConfig{RequestsPerMinute: requestsPerMinute, CleanupInterval: time.Hour},
		rate:    rate.Limit(float64(requestsPerMinute) / 60),
		burst:   requestsPerMinute,
		nowFunc: time.Now,
		stopCh:  make(chan struct{}),
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

func TestRateLimit_UnderLimit(t *testing.T) {
	rl := newTestRateLimiter(5)
	defer rl.Stop()
	handler := RateLimit(rl)(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/consult", nil)
		req.RemoteAddr = "10.0.0.1:1111"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}
}

func TestRateLimit_OverLimit(t *testing.T) {
	rl := newTestRateLimiter(3)
	defer rl.Stop()
	handler := RateLimit(rl)(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/consult", nil)
		req.RemoteAddr = "10.0.0.1:1111"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/consult", nil)
	req.RemoteAddr = "10.0.0.1:1111"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("4th request: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if !strings.Contains(rec.Body.String(), "rate_limit_exceeded") {
		t.Errorf("expected rate_limit_exceeded in body, got %q", rec.Body.String())
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimit_PerAddressIsolation(t *testing.T) {
	rl := newTestRateLimiter(2)
	defer rl.Stop()
	handler := RateLimit(rl)(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/consult", nil)
		req.RemoteAddr = "10.0.0.1:1111"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("client A request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/consult", nil)
	req.RemoteAddr = "10.0.0.1:1111"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("client A 3rd request: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	req = httptest.NewRequest(http.MethodPost, "/consult", nil)
	req.RemoteAddr = "10.0.0.2:2222"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("client B request: status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestClientAddress_StripsPort(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.100:54321"
	if got := clientAddress(req); got != "192.168.1.100" {
		t.Errorf("got %q, want %q", got, "192.168.1.100")
	}
}

func TestClientAddress_FallsBackOnMalformedAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "not-a-valid-addr"
	if got := clientAddress(req); got != "not-a-valid-addr" {
		t.Errorf("got %q, want %q", got, "not-a-valid-addr")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	mu := sync.Mutex{}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	rl := newTestRateLimiter(2)
	rl.config.CleanupInterval = 100 * time.Millisecond
	rl.nowFunc = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	rl.Allow("stale-client")
	if _, ok := rl.buckets.Load("stale-client"); !ok {
		t.Fatal("expected stale-client bucket to exist")
	}

	mu.Lock()
	now = now.Add(10 * time.Minute)
	mu.Unlock()

	go rl.cleanup()
	time.Sleep(300 * time.Millisecond)
	rl.Stop()

	if _, ok := rl.buckets.Load("stale-client"); ok {
		t.Error("expected stale-client bucket to be cleaned up")
	}
}

func TestRateLimiter_Allow_BurstThenRefill(t *testing.T) {
	rl := newTestRateLimiter(3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		allowed, _ := rl.Allow("key1")
		if !allowed {
			t.Errorf("request %d should be allowed within burst", i+1)
		}
	}

	allowed, retryAfter := rl.Allow("key1")
	if allowed {
		t.Error("4th immediate request should be denied")
	}
	if retryAfter < 1 {
		t.Errorf("retryAfter = %d, want >= 1", retryAfter)
	}
}
