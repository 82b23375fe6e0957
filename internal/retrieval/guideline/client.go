// Package guideline implements retrieval.RetrievalClient against the
// clinical guideline corpus: a Postgres table of embedded passages searched
// by cosine distance via pgvector.
package guideline

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/sovadina/consult-gateway/internal/retrieval"
)

// NewPool creates a connection pool configured for pgvector, registering the
// vector type on every new connection.
func NewPool(ctx context.Context, databaseURL string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("guideline: parse config: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = 1 * time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute
	cfg.AfterConnect = pgxvector.RegisterTypes

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("guideline: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("guideline: ping: %w", err)
	}

	return pool, nil
}

// Embedder turns a query term into a vector in the corpus's embedding space.
// A real deployment backs this with the same provider used for chat, asked
// for an embedding instead of a completion; tests substitute a stub.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DefaultTopK and DefaultThreshold bound one similarity search: the corpus
// is curated guideline text, not open-web documents, so a tighter default
// threshold than a general RAG corpus is appropriate.
const (
	DefaultTopK       = 5
	DefaultThreshold  = 0.5
)

// Client is a guideline corpus RetrievalClient bound to one connection pool.
type Client struct {
	pool     *pgxpool.Pool
	embedder Embedder
	timeout  time.Duration
}

// New creates a guideline Client. timeout bounds each search (embed + query);
// zero falls back to retrieval.DefaultCallTimeout. Callers should pass the
// configured RETRIEVAL_DEADLINE_SECONDS value here rather than leaving it at
// zero.
func New(pool *pgxpool.Pool, embedder Embedder, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = retrieval.DefaultCallTimeout
	}
	return &Client{pool: pool, embedder: embedder, timeout: timeout}
}

// CallTool implements retrieval.RetrievalClient. The only supported tool name
// is "search"; params carries "term".
func (c *Client) CallTool(ctx context.Context, name string, params map[string]any) (retrieval.ToolResult, error) {
	return retrieval.SafeCall(ctx, name, c.timeout, func(ctx context.Context) (retrieval.ToolResult, error) {
		term, _ := params["term"].(string)
		return c.search(ctx, term)
	})
}

func (c *Client) search(ctx context.Context, term string) (retrieval.ToolResult, error) {
	if term == "" {
		return retrieval.ToolResult{Outcome: retrieval.OutcomeEmpty}, nil
	}

	vec, err := c.embedder.Embed(ctx, term)
	if err != nil {
		return retrieval.ToolResult{Outcome: retrieval.OutcomeTransient}, fmt.Errorf("guideline: embed: %w", err)
	}
	embedding := pgvector.NewVector(vec)

	rows, err := c.pool.Query(ctx, `
		SELECT
			gp.content, gp.section, gp.source_title, gp.source_url, gp.updated_at,
			1 - (gp.embedding <=> $1::vector) AS similarity
		FROM guideline_passages gp
		WHERE (1 - (gp.embedding <=> $1::vector)) > $2
		ORDER BY gp.embedding <=> $1::vector
		LIMIT $3`,
		embedding, DefaultThreshold, DefaultTopK,
	)
	if err != nil {
		return retrieval.ToolResult{Outcome: retrieval.OutcomeTransient}, fmt.Errorf("guideline: query: %w", err)
	}
	defer rows.Close()

	var records []map[string]string
	for rows.Next() {
		var content, section, sourceTitle, sourceURL string
		var updatedAt time.Time
		var similarity float64
		if err := rows.Scan(&content, &section, &sourceTitle, &sourceURL, &updatedAt, &similarity); err != nil {
			return retrieval.ToolResult{Outcome: retrieval.OutcomeTransient}, fmt.Errorf("guideline: scan: %w", err)
		}
		records = append(records, map[string]string{
			"content":      content,
			"section":      section,
			"source_title": sourceTitle,
			"source_url":   sourceURL,
			"updated_at":   updatedAt.Format(time.RFC3339),
			"similarity":   fmt.Sprintf("%.4f", similarity),
		})
	}
	if err := rows.Err(); err != nil {
		return retrieval.ToolResult{Outcome: retrieval.OutcomeTransient}, fmt.Errorf("guideline: rows: %w", err)
	}

	if len(records) == 0 {
		return retrieval.ToolResult{Outcome: retrieval.OutcomeEmpty}, nil
	}

	return retrieval.ToolResult{
		Outcome: retrieval.OutcomeOK,
		Data:    retrieval.TruncateRecords(records),
	}, nil
}

// HealthCheck implements retrieval.RetrievalClient by pinging the pool.
func (c *Client) HealthCheck(ctx context.Context) retrieval.Health {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := c.pool.Ping(ctx); err != nil {
		return retrieval.HealthUnavailable
	}
	stat := c.pool.Stat()
	if stat.AcquiredConns() >= stat.MaxConns() {
		return retrieval.HealthDegraded
	}
	return retrieval.HealthAvailable
}

// Close implements retrieval.RetrievalClient.
func (c *Client) Close() error {
	c.pool.Close()
	return nil
}
