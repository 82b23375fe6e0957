package agent

import (
	"context"
	"fmt"

	"github.com/sovadina/consult-gateway/internal/chatclient"
	"github.com/sovadina/consult-gateway/internal/retrieval"
	"github.com/sovadina/consult-gateway/internal/workflow"
)

// sourceLanguage is the language the literature upstream expects queries in.
// If ResearchQuery.UserLang differs, the agent translates the query before
// search and each returned document's content back into UserLang afterward.
const sourceLanguage = "en"

// LiteratureAgent answers biomedical-literature sub-queries via a
// RetrievalClient bound to the literature search service. Query and content
// translation are folded in here as ordinary ChatClient calls rather than
// separate pipeline stages, per the source material's own language handling.
type LiteratureAgent struct {
	client retrieval.RetrievalClient
	chat   chatclient.ChatClient
}

// NewLiteratureAgent creates a LiteratureAgent. chat may be nil if no
// translation is ever needed in a given deployment; a nil chat with a
// non-English UserLang degrades to untranslated documents rather than failing.
func NewLiteratureAgent(client retrieval.RetrievalClient, chat chatclient.ChatClient) *LiteratureAgent {
	return &LiteratureAgent{client: client, chat: chat}
}

func (a *LiteratureAgent) ID() workflow.AgentID { return workflow.AgentLiterature }

func (a *LiteratureAgent) Run(ctx context.Context, subQuery workflow.SubQuery) workflow.AgentResult {
	if a.client == nil {
		return workflow.AgentResult{Status: workflow.StatusFailed, ErrorKind: workflow.ErrorKindUnavailable}
	}

	q, ok := subQuery.(workflow.ResearchQuery)
	if !ok {
		return workflow.AgentResult{Status: workflow.StatusFailed, ErrorKind: workflow.ErrorKindUpstream}
	}

	needsTranslation := q.UserLang != "" && q.UserLang != sourceLanguage && a.chat != nil

	term := q.Term
	if needsTranslation {
		translated, err := a.chat.Generate(ctx, fmt.Sprintf(
			"Translate the following clinical search query from %s to %s. Return only the translated text:\n\n%s",
			q.UserLang, sourceLanguage, q.Term,
		))
		if err == nil && translated != "" {
			term = translated
		}
		// A translation failure is not fatal: fall back to the original term
		// and let the upstream search whatever it can with it.
	}

	params := map[string]any{"term": term}
	for k, v := range q.Filters {
		params[k] = v
	}

	result, err := withAgentRetry(ctx, func(ctx context.Context) (retrieval.ToolResult, error) {
		return a.client.CallTool(ctx, "search", params)
	})
	if err != nil {
		return classifyFailure(ctx, result, err)
	}
	if result.Outcome == retrieval.OutcomeEmpty {
		return workflow.AgentResult{Status: workflow.StatusEmpty}
	}

	docs := toDocuments(workflow.SourceLiterature, result.Data)
	if needsTranslation {
		for i := range docs {
			translated, err := a.chat.Generate(ctx, fmt.Sprintf(
				"Translate the following biomedical literature excerpt from %s to %s. Return only the translated text:\n\n%s",
				sourceLanguage, q.UserLang, docs[i].Content,
			))
			if err == nil && translated != "" {
				docs[i].Content = translated
			}
		}
	}

	return workflow.AgentResult{Status: workflow.StatusOK, Documents: docs}
}
