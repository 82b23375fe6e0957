package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sovadina/consult-gateway/internal/retrieval"
	"github.com/sovadina/consult-gateway/internal/workflow"
)

type stubRetrievalClient struct {
	health retrieval.Health
}

func (s *stubRetrievalClient) CallTool(ctx context.Context, name string, params map[string]any) (retrieval.ToolResult, error) {
	return retrieval.ToolResult{}, nil
}
func (s *stubRetrievalClient) HealthCheck(ctx context.Context) retrieval.Health { return s.health }
func (s *stubRetrievalClient) Close() error                                    { return nil }

type stubCache struct {
	err error
}

func (s *stubCache) HealthCheck(ctx context.Context) error { return s.err }

func TestHealth_AllAvailable(t *testing.T) {
	clients := map[workflow.AgentID]retrieval.RetrievalClient{
		workflow.AgentDrug:      &stubRetrievalClient{health: retrieval.HealthAvailable},
		workflow.AgentLiterature: &stubRetrievalClient{health: retrieval.HealthAvailable},
	}
	handler := Health(clients, &stubCache{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", resp["status"])
	}
	if resp["cache"] != "available" {
		t.Errorf("cache = %v, want available", resp["cache"])
	}
}

func TestHealth_DegradedOnUnavailableUpstream(t *testing.T) {
	clients := map[workflow.AgentID]retrieval.RetrievalClient{
		workflow.AgentDrug:      &stubRetrievalClient{health: retrieval.HealthAvailable},
		workflow.AgentGuideline: &stubRetrievalClient{health: retrieval.HealthUnavailable},
	}
	handler := Health(clients, &stubCache{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", resp["status"])
	}
}

func TestHealth_DegradedNotTriggeredByHealthOnlyCacheFailure(t *testing.T) {
	clients := map[workflow.AgentID]retrieval.RetrievalClient{
		workflow.AgentDrug: &stubRetrievalClient{health: retrieval.HealthAvailable},
	}
	handler := Health(clients, &stubCache{err: fmt.Errorf("connection refused")})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (cache failure alone is not degraded)", rec.Code)
	}

	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["cache"] != "error: connection refused" {
		t.Errorf("cache = %v, want error detail", resp["cache"])
	}
}

func TestHealth_DegradedDoesNotPanicOnNilClient(t *testing.T) {
	clients := map[workflow.AgentID]retrieval.RetrievalClient{
		workflow.AgentDrug: nil,
	}
	handler := Health(clients, &stubCache{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHealth_NilCache(t *testing.T) {
	clients := map[workflow.AgentID]retrieval.RetrievalClient{
		workflow.AgentDrug: &stubRetrievalClient{health: retrieval.HealthAvailable},
	}
	handler := Health(clients, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp map[string]any
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["cache"] != "unavailable" {
		t.Errorf("cache = %v, want unavailable", resp["cache"])
	}
}
