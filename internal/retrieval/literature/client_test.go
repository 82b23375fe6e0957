package literature

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sovadina/consult-gateway/internal/retrieval"
)

func TestClient_CallTool_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "metformin lactic acidosis" {
			t.Errorf("unexpected query: %s", r.URL.Query().Get("q"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"title":"A study","abstract":"...","journal":"J","year":2021,"doi":"10.1/x"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "key", 0)
	result, err := c.CallTool(context.Background(), "search", map[string]any{"term": "metformin lactic acidosis"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != retrieval.OutcomeOK {
		t.Errorf("outcome: got %v", result.Outcome)
	}
	if result.Data[0]["title"] != "A study" {
		t.Errorf("data: got %v", result.Data)
	}
}

func TestClient_CallTool_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "", 0)
	result, err := c.CallTool(context.Background(), "search", map[string]any{"term": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != retrieval.OutcomeEmpty {
		t.Errorf("outcome: got %v", result.Outcome)
	}
}

func TestClient_HealthCheck_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "", 0)
	if got := c.HealthCheck(context.Background()); got != retrieval.HealthUnavailable {
		t.Errorf("got %v", got)
	}
}

func TestClient_HealthCheck_Degraded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, "", 0)
	if got := c.HealthCheck(context.Background()); got != retrieval.HealthDegraded {
		t.Errorf("got %v", got)
	}
}
