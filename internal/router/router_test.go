package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sovadina/consult-gateway/internal/handler"
	"github.com/sovadina/consult-gateway/internal/middleware"
	"github.com/sovadina/consult-gateway/internal/retrieval"
	"github.com/sovadina/consult-gateway/internal/synth"
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

type stubClassifier struct{ plan workflow.DispatchPlan }

func (s *stubClassifier) Classify(ctx context.Context, utterance string) workflow.DispatchPlan {
	return s.plan
}

type stubDispatcher struct {
	outputs map[workflow.AgentID]workflow.AgentResult
}

func (s *stubDispatcher) Run(ctx context.Context, plan workflow.DispatchPlan, deadline time.Duration, emitter workflow.Emitter) (map[workflow.AgentID]workflow.AgentResult, error) {
	return s.outputs, nil
}

type stubSynthesizer struct{ result synth.Result }

func (s *stubSynthesizer) Synthesize(ctx context.Context, messages []workflow.Message, plan workflow.DispatchPlan, outputs map[workflow.AgentID]workflow.AgentResult, emitter workflow.Emitter) (synth.Result, error) {
	return s.result, nil
}

func newTestRouter() http.Handler {
	deps := &Dependencies{
		RetrievalClients: map[workflow.AgentID]retrieval.RetrievalClient{
			workflow.AgentDrug: &stubRetrievalClient{health: retrieval.HealthAvailable},
		},
		ConsultDeps: handler.ConsultDeps{
			Classifier:  &stubClassifier{plan: workflow.GeneralFallback("hi")},
			Dispatcher:  &stubDispatcher{outputs: map[workflow.AgentID]workflow.AgentResult{workflow.AgentGeneral: {Status: workflow.StatusOK}}},
			Synthesizer: &stubSynthesizer{result: synth.Result{FinalAnswer: "hello"}},
			DefaultMode: "quick",
		},
		CORSOrigins: []string{"*"},
	}
	return New(deps)
}

func TestHealth_IsPublic(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
}

func TestConsult_IsPublic(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/consult", strings.NewReader(`{"query":"what is ibuprofen","mode":"quick"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "event: final") {
		t.Errorf("expected a final event, got %q", rec.Body.String())
	}
}

func TestConsult_RateLimited(t *testing.T) {
	deps := &Dependencies{
		RetrievalClients: map[workflow.AgentID]retrieval.RetrievalClient{},
		ConsultDeps: handler.ConsultDeps{
			Classifier:  &stubClassifier{plan: workflow.GeneralFallback("hi")},
			Dispatcher:  &stubDispatcher{outputs: map[workflow.AgentID]workflow.AgentResult{workflow.AgentGeneral: {Status: workflow.StatusOK}}},
			Synthesizer: &stubSynthesizer{result: synth.Result{FinalAnswer: "hello"}},
			DefaultMode: "quick",
		},
		CORSOrigins: []string{"*"},
		RateLimiter: middleware.NewRateLimiter(middleware.RateLimiterConfig{RequestsPerMinute: 1}),
	}
	r := New(deps)

	body := `{"query":"what is ibuprofen","mode":"quick"}`
	req1 := httptest.NewRequest(http.MethodPost, "/consult", strings.NewReader(body))
	req1.RemoteAddr = "10.0.0.1:1234"
	rec1 := httptest.NewRecorder()
	r.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/consult", strings.NewReader(body))
	req2.RemoteAddr = "10.0.0.1:1234"
	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec2.Code)
	}
}

func TestUnknownRoute_Returns404(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	var body map[string]any
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["success"] != false {
		t.Error("expected success=false for 404")
	}
}

func TestSecurityHeaders_AppliedGlobally(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("expected X-Content-Type-Options: nosniff on every response")
	}
}
