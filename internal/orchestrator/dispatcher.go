// Package orchestrator implements the Dispatcher: parallel fan-out of a
// DispatchPlan across agents under one shared deadline, fan-in into a result
// map keyed by agent id.
package orchestrator

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sovadina/consult-gateway/internal/agent"
	"github.com/sovadina/consult-gateway/internal/workflow"
)

// Dispatcher runs a DispatchPlan against a fixed set of agents.
type Dispatcher struct {
	agents map[workflow.AgentID]agent.Agent
}

// New creates a Dispatcher bound to the given agents, keyed by the id each
// reports via Agent.ID().
func New(agents ...agent.Agent) *Dispatcher {
	byID := make(map[workflow.AgentID]agent.Agent, len(agents))
	for _, a := range agents {
		byID[a.ID()] = a
	}
	return &Dispatcher{agents: byID}
}

// ErrAggregateFailure is a sentinel the caller can check with errors.Is to
// detect that every agent in the plan failed.
type aggregateFailureError struct{}

func (aggregateFailureError) Error() string { return "orchestrator: aggregate-failure" }

// ErrAggregateFailure is returned by Run when every agent in the plan failed.
var ErrAggregateFailure error = aggregateFailureError{}

// Run executes plan, applying deadline to the whole fan-out. Every entry is
// launched concurrently; agent.Run never returns a Go error (failures are
// encoded in AgentResult), so the errgroup here exists purely to join the
// goroutines under ctx, not to short-circuit on error. Emitter, if non-nil,
// receives agent_start/agent_complete events in invocation order per agent.
func (d *Dispatcher) Run(ctx context.Context, plan workflow.DispatchPlan, deadline time.Duration, emitter workflow.Emitter) (map[workflow.AgentID]workflow.AgentResult, error) {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	results := make([]workflow.AgentResult, len(plan.Entries))

	g, gCtx := errgroup.WithContext(ctx)
	for i, entry := range plan.Entries {
		i, entry := i, entry
		g.Go(func() error {
			a, bound := d.agents[entry.Agent]
			if emitter != nil {
				emitter.Emit(gCtx, workflow.Event{Kind: workflow.EventAgentStart, Agent: string(entry.Agent)})
			}

			var result workflow.AgentResult
			if !bound || a == nil {
				result = workflow.AgentResult{Status: workflow.StatusFailed, ErrorKind: workflow.ErrorKindUnavailable}
			} else {
				result = a.Run(gCtx, entry.SubQuery)
			}
			results[i] = result

			if emitter != nil {
				emitter.Emit(gCtx, workflow.Event{Kind: workflow.EventAgentComplete, Agent: string(entry.Agent)})
			}
			return nil
		})
	}
	// g.Wait() never actually returns an error since every goroutine above
	// returns nil; the join is what we need, not error propagation.
	_ = g.Wait()

	out := make(map[workflow.AgentID]workflow.AgentResult, len(plan.Entries))
	allFailed := true
	for i, entry := range plan.Entries {
		out[entry.Agent] = results[i]
		if results[i].Status != workflow.StatusFailed {
			allFailed = false
		}
	}

	if allFailed {
		return out, ErrAggregateFailure
	}
	return out, nil
}
