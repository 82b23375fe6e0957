package agent

import (
	"context"

	"github.com/sovadina/consult-gateway/internal/chatclient"
	"github.com/sovadina/consult-gateway/internal/workflow"
)

// GeneralAgent answers the raw user utterance directly via the ChatClient,
// with no upstream retrieval and no citations. It is the mandatory fallback
// agent: every DispatchPlan resolves to at least one agent, and this is it
// when classification cannot produce anything more specific.
type GeneralAgent struct {
	chat chatclient.ChatClient
}

// NewGeneralAgent creates a GeneralAgent.
func NewGeneralAgent(chat chatclient.ChatClient) *GeneralAgent {
	return &GeneralAgent{chat: chat}
}

func (a *GeneralAgent) ID() workflow.AgentID { return workflow.AgentGeneral }

func (a *GeneralAgent) Run(ctx context.Context, subQuery workflow.SubQuery) workflow.AgentResult {
	if a.chat == nil {
		return workflow.AgentResult{Status: workflow.StatusFailed, ErrorKind: workflow.ErrorKindUnavailable}
	}

	utterance, ok := subQuery.(string)
	if !ok {
		return workflow.AgentResult{Status: workflow.StatusFailed, ErrorKind: workflow.ErrorKindUpstream}
	}

	answer, err := a.chat.Generate(ctx, utterance)
	if err != nil {
		if ctx.Err() != nil {
			return workflow.AgentResult{Status: workflow.StatusFailed, ErrorKind: workflow.ErrorKindTimeout}
		}
		return workflow.AgentResult{Status: workflow.StatusFailed, ErrorKind: workflow.ErrorKindUpstream}
	}
	if answer == "" {
		return workflow.AgentResult{Status: workflow.StatusEmpty}
	}

	return workflow.AgentResult{
		Status: workflow.StatusOK,
		Documents: []workflow.Document{
			{
				Content:          answer,
				Source:           workflow.SourceGeneral,
				ProvisionalIndex: 1,
			},
		},
	}
}
