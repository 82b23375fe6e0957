package guideline

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vec, nil
}

func TestClient_CallTool_EmptyTerm(t *testing.T) {
	c := New(nil, &stubEmbedder{}, 0)
	result, err := c.CallTool(context.Background(), "search", map[string]any{"term": ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != "empty" {
		t.Errorf("outcome: got %v", result.Outcome)
	}
}

func TestClient_CallTool_EmbedFailure(t *testing.T) {
	c := New(nil, &stubEmbedder{err: errors.New("embedding service down")}, 0)
	_, err := c.CallTool(context.Background(), "search", map[string]any{"term": "hypertension"})
	if err == nil {
		t.Fatal("expected error")
	}
}

// TestNewPool_RealDB and TestClient_SimilaritySearch_RealDB only run when
// DATABASE_URL is set, mirroring the repository-layer integration tests this
// package replaces.
func TestNewPool_RealDB(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, dbURL, 5)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Close()
}

func TestClient_SimilaritySearch_RealDB(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, dbURL, 5)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Close()

	vec := make([]float32, 1536)
	vec[0] = 1.0
	c := New(pool, &stubEmbedder{vec: vec}, 0)

	result, err := c.CallTool(ctx, "search", map[string]any{"term": "hypertension management"})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	t.Logf("got %d records, outcome %v", len(result.Data), result.Outcome)
}
