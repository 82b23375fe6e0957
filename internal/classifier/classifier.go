// Package classifier routes a user utterance to a DispatchPlan via a
// two-tier algorithm: a model-backed path with rejection rules, falling back
// to the canonical KeywordRoute pure function.
package classifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sovadina/consult-gateway/internal/chatclient"
	"github.com/sovadina/consult-gateway/internal/retrieval"
	"github.com/sovadina/consult-gateway/internal/workflow"
)

// knownAgents is the closed set of agent identifiers the model path may name.
var knownAgents = map[string]workflow.AgentID{
	"drug":       workflow.AgentDrug,
	"literature": workflow.AgentLiterature,
	"guideline":  workflow.AgentGuideline,
	"general":    workflow.AgentGeneral,
}

// Classifier is the two-tier router: model path first, canonical keyword
// fallback second. It never returns an empty plan.
type Classifier struct {
	chat    chatclient.ChatClient
	clients map[workflow.AgentID]retrieval.RetrievalClient
}

// New creates a Classifier. chat may be nil, in which case the model path is
// always skipped and every utterance routes via KeywordRoute. clients is used
// only to reject a model-named agent whose upstream reports unavailable.
func New(chat chatclient.ChatClient, clients map[workflow.AgentID]retrieval.RetrievalClient) *Classifier {
	return &Classifier{chat: chat, clients: clients}
}

// Classify implements the two-tier routing algorithm.
func (c *Classifier) Classify(ctx context.Context, utterance string) workflow.DispatchPlan {
	if c.chat != nil {
		if plan, ok := c.tryModelPath(ctx, utterance); ok {
			return plan
		}
	}
	slog.Debug("classifier falling back to keyword route", "utterance_len", len(utterance))
	return KeywordRoute(utterance)
}

func (c *Classifier) tryModelPath(ctx context.Context, utterance string) (workflow.DispatchPlan, bool) {
	prompt := buildClassificationPrompt(utterance)

	result, err := c.chat.ClassifyPrompt(ctx, prompt)
	if err != nil {
		slog.Debug("classifier model path rejected: call failed", "error", err)
		return workflow.DispatchPlan{}, false
	}
	if result == nil || len(result.Agents) == 0 {
		slog.Debug("classifier model path rejected: empty classification")
		return workflow.DispatchPlan{}, false
	}

	entries := make([]workflow.PlanEntry, 0, len(result.Agents))
	for _, agentName := range result.Agents {
		agentID, known := knownAgents[agentName]
		if !known {
			slog.Debug("classifier model path rejected: unknown agent", "agent", agentName)
			return workflow.DispatchPlan{}, false
		}

		if client, bound := c.clients[agentID]; bound && client != nil {
			if client.HealthCheck(ctx) == retrieval.HealthUnavailable {
				slog.Debug("classifier model path rejected: agent unavailable", "agent", agentName)
				return workflow.DispatchPlan{}, false
			}
		}

		subQuery, err := decodeSubQuery(agentID, result.AgentQueries[agentName], utterance)
		if err != nil {
			slog.Debug("classifier model path rejected: sub-query decode failed", "agent", agentName, "error", err)
			return workflow.DispatchPlan{}, false
		}

		entries = append(entries, workflow.PlanEntry{Agent: agentID, SubQuery: subQuery})
	}

	return workflow.DispatchPlan{Entries: entries}, true
}

func decodeSubQuery(agentID workflow.AgentID, raw map[string]any, utterance string) (workflow.SubQuery, error) {
	str := func(key string) string {
		if v, ok := raw[key].(string); ok {
			return v
		}
		return ""
	}

	switch agentID {
	case workflow.AgentDrug:
		term := str("term")
		if term == "" {
			term = utterance
		}
		return workflow.DrugQuery{Term: term, Intent: str("intent")}, nil
	case workflow.AgentLiterature:
		term := str("term")
		if term == "" {
			term = utterance
		}
		filters := map[string]string{}
		if raw != nil {
			if f, ok := raw["filters"].(map[string]any); ok {
				for k, v := range f {
					if s, ok := v.(string); ok {
						filters[k] = s
					}
				}
			}
		}
		return workflow.ResearchQuery{Term: term, Filters: filters, UserLang: str("userLang")}, nil
	case workflow.AgentGuideline:
		term := str("term")
		if term == "" {
			term = utterance
		}
		return workflow.GuidelineQuery{Term: term}, nil
	case workflow.AgentGeneral:
		return utterance, nil
	default:
		return nil, fmt.Errorf("classifier: unhandled agent %q", agentID)
	}
}

func buildClassificationPrompt(utterance string) string {
	return fmt.Sprintf(`You are routing a clinical question to one or more specialist agents.
Available agents: "drug" (drug interactions, contraindications, reimbursement),
"literature" (biomedical research/studies), "guideline" (clinical practice guidelines),
"general" (anything else).

Respond with a JSON object: {"intent": string, "agents": [string, ...], "agentQueries": {agentName: {...fields}}}.
Each agent's query object may include "term", "intent" (drug only), "filters" and "userLang" (literature only).

Question: %s`, utterance)
}
