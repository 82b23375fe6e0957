// Package chatclient defines the ChatClient port the classifier and
// synthesizer consume, plus a concrete REST-backed implementation.
// The LLM provider itself is an external collaborator (spec §1): the core
// only needs a structured-classification call and a free-form generation
// call, both deadline-bound.
package chatclient

import "context"

// Classification is the structured object the model path of the classifier
// parses into a DispatchPlan. AgentQueries holds one raw sub-query payload per
// engaged agent, keyed by agent id; the classifier decodes each into its typed
// shape before building a workflow.PlanEntry.
type Classification struct {
	Intent       string
	Agents       []string
	AgentQueries map[string]map[string]any
}

// ChatClient abstracts the LLM provider used for classification and
// synthesis. Both operations carry the caller's workflow deadline via ctx.
type ChatClient interface {
	// ClassifyPrompt asks the model to produce a structured Classification.
	// Temperature is fixed at 0 internally to keep classification deterministic.
	ClassifyPrompt(ctx context.Context, prompt string) (*Classification, error)
	// Generate asks the model to produce free-form prose for the given prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}
