// Package agent defines the Agent port and its four concrete variants, each
// bound to one retrieval.RetrievalClient and retried independently under the
// caller's remaining deadline.
package agent

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/sovadina/consult-gateway/internal/retrieval"
	"github.com/sovadina/consult-gateway/internal/workflow"
)

// Agent runs one sub-query against one upstream and returns a normalized
// workflow.AgentResult. Implementations never return a non-nil error for an
// upstream failure; failure is reported through AgentResult.Status/ErrorKind.
type Agent interface {
	ID() workflow.AgentID
	Run(ctx context.Context, subQuery workflow.SubQuery) workflow.AgentResult
}

// Retry schedule: base 200ms, doubling, capped at 2s, at most 2 retries (3
// attempts total). This consumes the caller's remaining deadline rather than
// a fresh budget of its own — ctx is never re-derived with a longer timeout here.
const (
	retryBase    = 200 * time.Millisecond
	retryCap     = 2 * time.Second
	maxRetries   = 2
)

func backoffDelay(attempt int) time.Duration {
	d := time.Duration(float64(retryBase) * math.Pow(2, float64(attempt)))
	if d > retryCap {
		return retryCap
	}
	return d
}

// withAgentRetry calls fn up to maxRetries+1 times, retrying only on a
// transient retrieval.Outcome, sleeping according to backoffDelay between
// attempts, and giving up early if ctx is exhausted first.
func withAgentRetry(ctx context.Context, fn func(ctx context.Context) (retrieval.ToolResult, error)) (retrieval.ToolResult, error) {
	result, err := fn(ctx)
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err == nil || result.Outcome != retrieval.OutcomeTransient {
			return result, err
		}

		select {
		case <-ctx.Done():
			return result, err
		case <-time.After(backoffDelay(attempt)):
		}

		result, err = fn(ctx)
	}
	return result, err
}

// toDocuments converts raw records into workflow.Document values with
// per-agent provisional indices starting at 1; the synthesizer assigns the
// global indices later.
func toDocuments(source workflow.Source, records []map[string]string) []workflow.Document {
	docs := make([]workflow.Document, 0, len(records))
	for i, rec := range records {
		content := rec["content"]
		meta := make(map[string]string, len(rec))
		for k, v := range rec {
			if k == "content" {
				continue
			}
			meta[k] = v
		}
		docs = append(docs, workflow.Document{
			Content:          content,
			Source:           source,
			SourceMeta:       meta,
			ProvisionalIndex: i + 1,
		})
	}
	return docs
}

// classifyFailure maps a retrieval error into an AgentResult, distinguishing
// a timed-out call from a transient-but-not-timeout one.
func classifyFailure(ctx context.Context, result retrieval.ToolResult, err error) workflow.AgentResult {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return workflow.AgentResult{Status: workflow.StatusFailed, ErrorKind: workflow.ErrorKindTimeout}
	}
	if result.Outcome == retrieval.OutcomeTransient {
		return workflow.AgentResult{Status: workflow.StatusFailed, ErrorKind: workflow.ErrorKindUnavailable}
	}
	return workflow.AgentResult{Status: workflow.StatusFailed, ErrorKind: workflow.ErrorKindUpstream}
}
