// Package config loads gateway configuration from environment variables:
// typed defaults, a hard failure for missing required keys, an
// environment-gated required secret — the same shape the teacher used.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
// It is immutable after Load() returns.
type Config struct {
	Port        int
	Environment string

	DatabaseURL      string // guideline corpus (pgvector)
	DatabaseMaxConns int

	RedisAddr string // quick-mode final-answer cache

	DrugRegistryURL   string
	LiteratureAPIURL  string
	LiteratureAPIKey  string

	ChatProviderAPIKey string
	ChatProviderModel  string
	Temperature        float64

	DefaultMode             string
	CacheTTLSeconds         int
	RateLimitPerMinute      int
	WorkflowDeadlineSeconds int
	RetrievalDeadlineSeconds int
	CORSOrigins             []string

	InternalAuthSecret string
}

// Load reads configuration from environment variables.
// Required variables (DATABASE_URL, CHAT_PROVIDER_API_KEY) cause an error if missing.
// Optional variables use sensible defaults.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config.Load: DATABASE_URL is required")
	}

	chatAPIKey := os.Getenv("CHAT_PROVIDER_API_KEY")
	if chatAPIKey == "" {
		return nil, fmt.Errorf("config.Load: CHAT_PROVIDER_API_KEY is required")
	}

	cfg := &Config{
		Port:        envInt("PORT", 8080),
		Environment: envStr("ENVIRONMENT", "development"),

		DatabaseURL:      dbURL,
		DatabaseMaxConns: envInt("DATABASE_MAX_CONNS", 25),

		RedisAddr: envStr("REDIS_ADDR", "localhost:6379"),

		DrugRegistryURL:  envStr("DRUG_REGISTRY_URL", ""),
		LiteratureAPIURL: envStr("LITERATURE_API_URL", ""),
		LiteratureAPIKey: envStr("LITERATURE_API_KEY", ""),

		ChatProviderAPIKey: chatAPIKey,
		ChatProviderModel:  envStr("CHAT_PROVIDER_MODEL", "model_name"),
		Temperature:        envFloat("TEMPERATURE", 0.0),

		DefaultMode:              envStr("MODE", "quick"),
		CacheTTLSeconds:          envInt("CACHE_TTL_SECONDS", 86400),
		RateLimitPerMinute:       envInt("RATE_LIMIT_PER_MINUTE", 10),
		WorkflowDeadlineSeconds:  envInt("WORKFLOW_DEADLINE_SECONDS", 30),
		RetrievalDeadlineSeconds: envInt("RETRIEVAL_DEADLINE_SECONDS", 30),
		CORSOrigins:              envList("CORS_ORIGINS", []string{"*"}),

		InternalAuthSecret: envStr("INTERNAL_AUTH_SECRET", ""),
	}

	if cfg.Environment != "development" && cfg.InternalAuthSecret == "" {
		return nil, fmt.Errorf("config.Load: INTERNAL_AUTH_SECRET is required in %s environment", cfg.Environment)
	}

	return cfg, nil
}

// WorkflowDeadline is WorkflowDeadlineSeconds as a time.Duration.
func (c *Config) WorkflowDeadline() time.Duration {
	return time.Duration(c.WorkflowDeadlineSeconds) * time.Second
}

// RetrievalDeadline is RetrievalDeadlineSeconds as a time.Duration.
func (c *Config) RetrievalDeadline() time.Duration {
	return time.Duration(c.RetrievalDeadlineSeconds) * time.Second
}

// CacheTTL is CacheTTLSeconds as a time.Duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// envList parses a comma-separated list, trimming whitespace around each entry.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
