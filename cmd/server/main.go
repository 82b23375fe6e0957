package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/sovadina/consult-gateway/internal/agent"
	"github.com/sovadina/consult-gateway/internal/cache"
	"github.com/sovadina/consult-gateway/internal/chatclient"
	"github.com/sovadina/consult-gateway/internal/classifier"
	"github.com/sovadina/consult-gateway/internal/config"
	"github.com/sovadina/consult-gateway/internal/handler"
	"github.com/sovadina/consult-gateway/internal/middleware"
	"github.com/sovadina/consult-gateway/internal/orchestrator"
	"github.com/sovadina/consult-gateway/internal/retrieval"
	"github.com/sovadina/consult-gateway/internal/retrieval/drug"
	"github.com/sovadina/consult-gateway/internal/retrieval/guideline"
	"github.com/sovadina/consult-gateway/internal/retrieval/literature"
	"github.com/sovadina/consult-gateway/internal/router"
	"github.com/sovadina/consult-gateway/internal/synth"
	"github.com/sovadina/consult-gateway/internal/workflow"
)

const Version = "0.1.0"

// preferredTerms is the terminology pass's fixed substitution table. Kept
// small and deterministic, per the synthesizer's closed-form contract.
var preferredTerms = map[string]string{
	"side effect": "adverse effect",
	"side effects": "adverse effects",
}

func buildServer(cfg *config.Config) (*http.Server, *cache.Cache, *pgPoolCloser, error) {
	chat := chatclient.NewRESTClient(cfg.ChatProviderAPIKey, "", cfg.ChatProviderModel)

	retrievalTimeout := cfg.RetrievalDeadline()

	var drugClient retrieval.RetrievalClient
	if cfg.DrugRegistryURL != "" {
		drugClient = drug.New(cfg.DrugRegistryURL, retrievalTimeout)
	}

	var literatureClient retrieval.RetrievalClient
	if cfg.LiteratureAPIURL != "" {
		literatureClient = literature.New(cfg.LiteratureAPIURL, cfg.LiteratureAPIKey, retrievalTimeout)
	}

	var guidelineClient retrieval.RetrievalClient
	var closer pgPoolCloser
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pool, err := guideline.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("main: guideline pool: %w", err)
		}
		guidelineClient = guideline.New(pool, chat, retrievalTimeout)
		closer.pool = pool
	}

	clients := map[workflow.AgentID]retrieval.RetrievalClient{
		workflow.AgentDrug:       drugClient,
		workflow.AgentLiterature: literatureClient,
		workflow.AgentGuideline:  guidelineClient,
	}

	agents := []agent.Agent{
		agent.NewDrugAgent(drugClient),
		agent.NewLiteratureAgent(literatureClient, chat),
		agent.NewGuidelineAgent(guidelineClient),
		agent.NewGeneralAgent(chat),
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	finalCache := cache.New(rdb, cfg.CacheTTL())

	reg := prometheus.NewRegistry()
	metrics := middleware.NewMetrics(reg)

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerMinute: cfg.RateLimitPerMinute,
	})

	deps := &router.Dependencies{
		RetrievalClients: clients,
		ConsultDeps: handler.ConsultDeps{
			Classifier:        classifier.New(chat, clients),
			Dispatcher:        orchestrator.New(agents...),
			Synthesizer:       synth.New(chat, preferredTerms),
			Cache:             finalCache,
			Chat:              chat,
			Metrics:           metrics,
			DefaultMode:       cfg.DefaultMode,
			WorkflowDeadline:  cfg.WorkflowDeadline(),
			RetrievalDeadline: cfg.RetrievalDeadline(),
		},
		CORSOrigins: cfg.CORSOrigins,
		Metrics:     metrics,
		MetricsReg:  reg,
		RateLimiter: rateLimiter,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router.New(deps),
		ReadTimeout:  15 * time.Second,
		// No WriteTimeout: /consult is a long-lived SSE stream bounded by its
		// own workflow deadline, not the server's connection timeout.
		IdleTimeout: 60 * time.Second,
	}

	return srv, finalCache, &closer, nil
}

// pgPoolCloser defers guideline pool construction's import of pgxpool to
// the guideline package; main only needs to Close it on shutdown.
type pgPoolCloser struct {
	pool interface{ Close() }
}

func (c *pgPoolCloser) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	srv, finalCache, dbPool, err := buildServer(cfg)
	if err != nil {
		return err
	}
	defer finalCache.Close()
	defer dbPool.Close()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("consult-gateway starting", "version", Version, "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received signal, shutting down gracefully", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
