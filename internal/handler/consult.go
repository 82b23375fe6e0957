package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sovadina/consult-gateway/internal/apierror"
	"github.com/sovadina/consult-gateway/internal/cache"
	"github.com/sovadina/consult-gateway/internal/chatclient"
	"github.com/sovadina/consult-gateway/internal/middleware"
	"github.com/sovadina/consult-gateway/internal/orchestrator"
	"github.com/sovadina/consult-gateway/internal/synth"
	"github.com/sovadina/consult-gateway/internal/workflow"
)

const (
	maxQueryLen              = 1000
	defaultWorkflowDeadline  = 30 * time.Second
	defaultRetrievalDeadline = 30 * time.Second
)

// injectionPatterns is the small fixed set of patterns rejected at validation
// time. They are unanchored, so a match anywhere in the query rejects it.
// Matching is case-insensitive.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)UNION\s+SELECT`),
	regexp.MustCompile(`(?i)DROP\s+TABLE`),
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)onclick\s*=`),
}

// ConsultCache is the narrow interface Consult needs from the final-answer cache.
type ConsultCache interface {
	Probe(ctx context.Context, fingerprint string) (workflow.FinalPayload, bool)
	Store(fingerprint string, payload workflow.FinalPayload)
}

// ConsultClassifier is the narrow interface Consult needs from the classifier.
type ConsultClassifier interface {
	Classify(ctx context.Context, utterance string) workflow.DispatchPlan
}

// ConsultDispatcher is the narrow interface Consult needs from the orchestrator.
type ConsultDispatcher interface {
	Run(ctx context.Context, plan workflow.DispatchPlan, deadline time.Duration, emitter workflow.Emitter) (map[workflow.AgentID]workflow.AgentResult, error)
}

// ConsultSynthesizer is the narrow interface Consult needs from the synthesizer.
type ConsultSynthesizer interface {
	Synthesize(ctx context.Context, messages []workflow.Message, plan workflow.DispatchPlan, outputs map[workflow.AgentID]workflow.AgentResult, emitter workflow.Emitter) (synth.Result, error)
}

// ConsultDeps bundles everything the Consult handler needs. Zero-value
// WorkflowDeadline/RetrievalDeadline fall back to 30s, matching config defaults.
type ConsultDeps struct {
	Classifier        ConsultClassifier
	Dispatcher        ConsultDispatcher
	Synthesizer       ConsultSynthesizer
	Cache             ConsultCache          // nil disables quick-mode caching entirely
	Chat              chatclient.ChatClient // nil falls back to a fixed English apology
	Metrics           *middleware.Metrics   // nil disables the aggregate-failure counter
	DefaultMode       string
	WorkflowDeadline  time.Duration
	RetrievalDeadline time.Duration
}

type consultRequest struct {
	Query  string `json:"query"`
	Mode   string `json:"mode"`
	UserID string `json:"userId,omitempty"`
}

type agentEventPayload struct {
	Type  string `json:"type"`
	Agent string `json:"agent"`
}

type simpleEventPayload struct {
	Type string `json:"type"`
}

type errorEventPayload struct {
	Type   string `json:"type"`
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// finalEventPayload is the wire shape of the `final` event: workflow.FinalPayload
// plus the "type" discriminator, which is a stream-framing concern and not part
// of what the cache stores.
type finalEventPayload struct {
	Type          string                  `json:"type"`
	Answer        string                  `json:"answer"`
	RetrievedDocs []workflow.RetrievedDoc `json:"retrieved_docs"`
	Confidence    *float64                `json:"confidence"`
	LatencyMs     int64                   `json:"latency_ms"`
}

func toFinalEventPayload(p workflow.FinalPayload) finalEventPayload {
	return finalEventPayload{
		Type:          "final",
		Answer:        p.Answer,
		RetrievedDocs: p.RetrievedDocs,
		Confidence:    p.Confidence,
		LatencyMs:     p.LatencyMs,
	}
}

// Consult implements POST /consult: an SSE stream of lifecycle events
// terminating in either final+done or error(+done). Consult is the sole
// writer to the external stream — the dispatcher and synthesizer only ever
// write to the internal event channel this handler drains.
func Consult(deps ConsultDeps) http.HandlerFunc {
	workflowDeadline := deps.WorkflowDeadline
	if workflowDeadline <= 0 {
		workflowDeadline = defaultWorkflowDeadline
	}
	retrievalDeadline := deps.RetrievalDeadline
	if retrievalDeadline <= 0 {
		retrievalDeadline = defaultRetrievalDeadline
	}
	defaultMode := deps.DefaultMode
	if defaultMode == "" {
		defaultMode = "quick"
	}

	return func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		requestID := uuid.NewString()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Request-ID", requestID)

		flusher, ok := w.(http.Flusher)
		if !ok {
			slog.Warn("consult: response writer does not support flushing; stream will be buffered")
		}

		var req consultRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeImmediateError(w, flusher, apierror.KindValidation, "malformed request body")
			return
		}

		query, verr := validateQuery(req.Query)
		if verr != nil {
			writeImmediateError(w, flusher, verr.Kind, verr.Detail)
			return
		}

		mode := req.Mode
		if mode == "" {
			mode = defaultMode
		}
		if mode != "quick" && mode != "deep" {
			writeImmediateError(w, flusher, apierror.KindValidation, "mode must be one of: quick, deep")
			return
		}
		quick := mode == "quick"

		var fingerprint string
		if quick && deps.Cache != nil {
			fingerprint = cache.Fingerprint(query, mode)
			if payload, hit := deps.Cache.Probe(r.Context(), fingerprint); hit {
				writeEvent(w, flusher, workflow.EventCacheHit, simpleEventPayload{Type: string(workflow.EventCacheHit)})
				writeEvent(w, flusher, workflow.EventFinal, toFinalEventPayload(payload))
				writeEvent(w, flusher, workflow.EventDone, struct{}{})
				return
			}
		}

		ctx, cancel := context.WithTimeout(r.Context(), workflowDeadline)
		defer cancel()

		messages := []workflow.Message{{Role: workflow.RoleUser, Content: query}}
		plan := deps.Classifier.Classify(ctx, query)

		events := make(chan workflow.Event, 16)
		emitter := workflow.NewChanEmitter(events)

		type pipelineResult struct {
			aggregateFailed bool
			result          synth.Result
			err             error
		}
		pipelineDone := make(chan pipelineResult, 1)

		go func() {
			outputs, dispErr := deps.Dispatcher.Run(ctx, plan, retrievalDeadline, emitter)
			if dispErr != nil {
				close(events)
				if errors.Is(dispErr, orchestrator.ErrAggregateFailure) {
					pipelineDone <- pipelineResult{aggregateFailed: true}
				} else {
					pipelineDone <- pipelineResult{err: dispErr}
				}
				return
			}

			result, synErr := deps.Synthesizer.Synthesize(ctx, messages, plan, outputs, emitter)
			close(events)
			pipelineDone <- pipelineResult{result: result, err: synErr}
		}()

		drainDone := make(chan struct{})
		go func() {
			defer close(drainDone)
			for {
				select {
				case ev, chOk := <-events:
					if !chOk {
						return
					}
					writeEvent(w, flusher, ev.Kind, agentEventPayload{Type: string(ev.Kind), Agent: ev.Agent})
				case <-ctx.Done():
					return
				}
			}
		}()

		select {
		case <-ctx.Done():
			// error is terminal: stop draining immediately, no further agent
			// events are written. A canceled (not deadline-exceeded) context
			// means the client disconnected; no event is worth writing to a
			// connection nobody is reading.
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				writeTerminalError(w, flusher, apierror.KindTimeout, "workflow deadline exceeded")
			}
			return

		case pr := <-pipelineDone:
			<-drainDone

			if pr.aggregateFailed {
				if deps.Metrics != nil {
					deps.Metrics.IncrementAggregateFailure()
				}
				payload := gracefulDegradationPayload(ctx, deps.Chat, query, time.Since(startedAt).Milliseconds())
				writeEvent(w, flusher, workflow.EventFinal, toFinalEventPayload(payload))
				writeEvent(w, flusher, workflow.EventDone, struct{}{})
				if quick && deps.Cache != nil {
					deps.Cache.Store(fingerprint, payload)
				}
				return
			}

			if pr.err != nil {
				writeTerminalError(w, flusher, apierror.Map(pr.err), pr.err.Error())
				return
			}

			latencyMs := time.Since(startedAt).Milliseconds()
			payload := workflow.ToFinalPayload(pr.result.FinalAnswer, pr.result.MergedDocuments, latencyMs)
			writeEvent(w, flusher, workflow.EventFinal, toFinalEventPayload(payload))
			writeEvent(w, flusher, workflow.EventDone, struct{}{})

			if quick && deps.Cache != nil {
				deps.Cache.Store(fingerprint, payload)
			}
		}
	}
}

// fallbackApology is used, whatever the query's language, when chat is nil or
// the localized apology call fails or returns an empty string.
const fallbackApology = "I couldn't reach any of the clinical sources needed to answer this right now. Please try again shortly."

// gracefulDegradationPayload is the user-visible answer for upstream_total:
// every agent failed, but the workflow itself still completes successfully
// with a polite explanation and zero documents. No error event is emitted.
// The apology is rendered in the same language as the original query, mirroring
// LiteratureAgent's chat-driven translation: a failure to localize is not
// fatal, it just falls back to the fixed English sentence.
func gracefulDegradationPayload(ctx context.Context, chat chatclient.ChatClient, query string, latencyMs int64) workflow.FinalPayload {
	answer := fallbackApology
	if chat != nil {
		apology, err := chat.Generate(ctx, fmt.Sprintf(
			"A clinical question was asked in the same language as this text:\n\n%s\n\n"+
				"Every data source needed to answer it is currently unreachable. Write one short, "+
				"polite sentence, in that same language, apologizing and asking the user to try "+
				"again shortly. Do not answer the question itself. Return only the sentence.",
			query,
		))
		if err == nil && apology != "" {
			answer = apology
		}
	}

	return workflow.FinalPayload{
		Answer:        answer,
		RetrievedDocs: []workflow.RetrievedDoc{},
		Confidence:    nil,
		LatencyMs:     latencyMs,
	}
}

// validateQuery trims and sanitizes raw, then enforces length and the
// injection-pattern denylist. Returns the cleaned query on success.
func validateQuery(raw string) (string, *apierror.Error) {
	cleaned := sanitizeQuery(raw)
	if cleaned == "" {
		return "", apierror.New(apierror.KindValidation, "query must not be empty", nil)
	}
	if utf8.RuneCountInString(cleaned) > maxQueryLen {
		return "", apierror.New(apierror.KindValidation, fmt.Sprintf("query exceeds %d characters", maxQueryLen), nil)
	}
	for _, pattern := range injectionPatterns {
		if pattern.MatchString(cleaned) {
			return "", apierror.New(apierror.KindValidation, "query contains a disallowed pattern", nil)
		}
	}
	return cleaned, nil
}

// sanitizeQuery strips control characters and collapses runs of whitespace,
// then trims the result. Case is preserved — only the cache fingerprint
// normalizes case, since validation must reject on the user's actual input.
func sanitizeQuery(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastWasSpace := false
	for _, r := range s {
		switch {
		case r == '\t' || r == '\n' || r == '\r' || r == ' ':
			if !lastWasSpace {
				b.WriteRune(' ')
			}
			lastWasSpace = true
		case r < 0x20 || r == 0x7f:
			// control character, dropped
		default:
			b.WriteRune(r)
			lastWasSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, kind workflow.EventKind, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("consult: event payload marshal failed", "kind", kind, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", kind, data)
	if flusher != nil {
		flusher.Flush()
	}
}

// writeImmediateError is used for rejections before any workflow begins
// (validation failures): the stream terminates with just the error event, no
// stream continuation and no done.
func writeImmediateError(w http.ResponseWriter, flusher http.Flusher, kind apierror.Kind, detail string) {
	writeEvent(w, flusher, workflow.EventError, errorEventPayload{Type: "error", Error: string(kind), Detail: detail})
}

// writeTerminalError is used for a workflow that started and then failed
// mid-flight (timeout, internal fault): error followed by done, no final.
func writeTerminalError(w http.ResponseWriter, flusher http.Flusher, kind apierror.Kind, detail string) {
	writeEvent(w, flusher, workflow.EventError, errorEventPayload{Type: "error", Error: string(kind), Detail: detail})
	writeEvent(w, flusher, workflow.EventDone, struct{}{})
}
