// Package cache provides the shared final-answer cache: a Redis-backed
// fingerprint→FinalPayload store with TTL, used only for quick-mode requests.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sovadina/consult-gateway/internal/workflow"
)

// DefaultTTL is used when no cache_ttl_seconds override is configured.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "consult:final:"

// Cache stores completed FinalPayloads keyed by fingerprint. Shared across
// gateway replicas; the backend (Redis) supplies its own consistency —
// read-your-writes across replicas is not guaranteed or required.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New wraps an existing Redis client. ttl governs Store; zero ttl falls back
// to DefaultTTL.
func New(rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}
}

// Probe looks up a fingerprint. Any backend failure (unreachable, timeout) is
// treated as a silent miss — cache unavailability must never surface to the
// caller as an error.
func (c *Cache) Probe(ctx context.Context, fingerprint string) (workflow.FinalPayload, bool) {
	raw, err := c.rdb.Get(ctx, keyPrefix+fingerprint).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("cache probe failed, treating as miss", "error", err)
		}
		return workflow.FinalPayload{}, false
	}

	var payload workflow.FinalPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		slog.Warn("cache entry unmarshal failed, treating as miss", "error", err)
		return workflow.FinalPayload{}, false
	}
	return payload, true
}

// Store saves a FinalPayload under fingerprint, fire-and-forget: it runs on
// its own background context so a slow or failed store never delays or
// fails the response already streamed to the caller.
func (c *Cache) Store(fingerprint string, payload workflow.FinalPayload) {
	raw, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("cache store: marshal failed", "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.rdb.Set(ctx, keyPrefix+fingerprint, raw, c.ttl).Err(); err != nil {
			slog.Warn("cache store failed", "error", err)
		}
	}()
}

// HealthCheck reports whether the cache backend is reachable, for GET /health.
func (c *Cache) HealthCheck(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the underlying Redis connection pool.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
