// Package synth implements the Synthesizer: merges per-agent Documents into
// one globally renumbered set, assembles the ChatClient prompt, validates and
// repairs inline [K] citations, and applies an optional terminology pass.
package synth

import (
	"context"
	"fmt"

	"github.com/sovadina/consult-gateway/internal/chatclient"
	"github.com/sovadina/consult-gateway/internal/workflow"
)

// Synthesizer turns a DispatchPlan's agent outputs into a final answer.
type Synthesizer struct {
	chat       chatclient.ChatClient
	vocabulary map[string]string // terminology pass substitution table; nil skips the pass
}

// New creates a Synthesizer. vocabulary may be nil to skip the terminology pass.
func New(chat chatclient.ChatClient, vocabulary map[string]string) *Synthesizer {
	return &Synthesizer{chat: chat, vocabulary: vocabulary}
}

// Result is the Synthesizer's output.
type Result struct {
	FinalAnswer     string
	MergedDocuments []workflow.Document
}

// Synthesize implements the merge/renumber/prompt/validate pipeline.
// plan gives the agent invocation order the merge walks; outputs is the
// Dispatcher's per-agent result map.
func (s *Synthesizer) Synthesize(ctx context.Context, messages []workflow.Message, plan workflow.DispatchPlan, outputs map[workflow.AgentID]workflow.AgentResult, emitter workflow.Emitter) (Result, error) {
	if emitter != nil {
		emitter.Emit(ctx, workflow.Event{Kind: workflow.EventAgentStart, Agent: "synthesizer"})
	}
	defer func() {
		if emitter != nil {
			emitter.Emit(ctx, workflow.Event{Kind: workflow.EventAgentComplete, Agent: "synthesizer"})
		}
	}()

	merged, origins, contributing := mergeDocuments(plan, outputs)

	// Single-agent short-circuit: exactly one agent contributed and it is the
	// general agent. No citations, no ChatClient round-trip for synthesis —
	// the general agent's own answer already *is* the final answer.
	if len(contributing) == 1 && contributing[0] == workflow.AgentGeneral {
		answer := ""
		if out, ok := outputs[workflow.AgentGeneral]; ok && len(out.Documents) > 0 {
			answer = out.Documents[0].Content
		}
		return Result{FinalAnswer: s.applyTerminology(answer), MergedDocuments: nil}, nil
	}

	question := lastUserMessage(messages)
	prompt := buildPrompt(question, merged, origins)

	answer, err := s.chat.Generate(ctx, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("synth: generate: %w", err)
	}

	answer = repairCitations(answer, len(merged))
	answer = s.applyTerminology(answer)

	return Result{FinalAnswer: answer, MergedDocuments: merged}, nil
}

func lastUserMessage(messages []workflow.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == workflow.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
