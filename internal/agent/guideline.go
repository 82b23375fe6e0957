package agent

import (
	"context"

	"github.com/sovadina/consult-gateway/internal/retrieval"
	"github.com/sovadina/consult-gateway/internal/workflow"
)

// GuidelineAgent answers guideline-corpus sub-queries via a RetrievalClient
// bound to the SQL+vector guideline store.
type GuidelineAgent struct {
	client retrieval.RetrievalClient
}

// NewGuidelineAgent creates a GuidelineAgent.
func NewGuidelineAgent(client retrieval.RetrievalClient) *GuidelineAgent {
	return &GuidelineAgent{client: client}
}

func (a *GuidelineAgent) ID() workflow.AgentID { return workflow.AgentGuideline }

func (a *GuidelineAgent) Run(ctx context.Context, subQuery workflow.SubQuery) workflow.AgentResult {
	if a.client == nil {
		return workflow.AgentResult{Status: workflow.StatusFailed, ErrorKind: workflow.ErrorKindUnavailable}
	}

	q, ok := subQuery.(workflow.GuidelineQuery)
	if !ok {
		return workflow.AgentResult{Status: workflow.StatusFailed, ErrorKind: workflow.ErrorKindUpstream}
	}

	result, err := withAgentRetry(ctx, func(ctx context.Context) (retrieval.ToolResult, error) {
		return a.client.CallTool(ctx, "search", map[string]any{"term": q.Term})
	})
	if err != nil {
		return classifyFailure(ctx, result, err)
	}
	if result.Outcome == retrieval.OutcomeEmpty {
		return workflow.AgentResult{Status: workflow.StatusEmpty}
	}

	return workflow.AgentResult{
		Status:    workflow.StatusOK,
		Documents: toDocuments(workflow.SourceGuideline, result.Data),
	}
}
