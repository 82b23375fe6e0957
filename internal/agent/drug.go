package agent

import (
	"context"

	"github.com/sovadina/consult-gateway/internal/retrieval"
	"github.com/sovadina/consult-gateway/internal/workflow"
)

// DrugAgent answers drug-registry sub-queries (interactions, contraindications,
// reimbursement, dosing details) via a RetrievalClient bound to the registry.
type DrugAgent struct {
	client retrieval.RetrievalClient
}

// NewDrugAgent creates a DrugAgent. client may be nil, in which case Run
// always reports an unavailable upstream.
func NewDrugAgent(client retrieval.RetrievalClient) *DrugAgent {
	return &DrugAgent{client: client}
}

func (a *DrugAgent) ID() workflow.AgentID { return workflow.AgentDrug }

func (a *DrugAgent) Run(ctx context.Context, subQuery workflow.SubQuery) workflow.AgentResult {
	if a.client == nil {
		return workflow.AgentResult{Status: workflow.StatusFailed, ErrorKind: workflow.ErrorKindUnavailable}
	}

	q, ok := subQuery.(workflow.DrugQuery)
	if !ok {
		return workflow.AgentResult{Status: workflow.StatusFailed, ErrorKind: workflow.ErrorKindUpstream}
	}

	result, err := withAgentRetry(ctx, func(ctx context.Context) (retrieval.ToolResult, error) {
		return a.client.CallTool(ctx, "lookup", map[string]any{
			"term":   q.Term,
			"intent": q.Intent,
		})
	})
	if err != nil {
		return classifyFailure(ctx, result, err)
	}
	if result.Outcome == retrieval.OutcomeEmpty {
		return workflow.AgentResult{Status: workflow.StatusEmpty}
	}

	return workflow.AgentResult{
		Status:    workflow.StatusOK,
		Documents: toDocuments(workflow.SourceDrug, result.Data),
	}
}
