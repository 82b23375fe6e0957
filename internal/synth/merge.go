package synth

import "github.com/sovadina/consult-gateway/internal/workflow"

// origin records where one merged Document came from, for prompt assembly:
// the model is shown both the new global index and the original (agent,
// provisional) tuple so it can cross-reference if needed.
type origin struct {
	Agent       workflow.AgentID
	Provisional int
}

// mergeDocuments walks agent outputs in plan order, documents within each
// agent in provisional-index order, and assigns each a new global index
// starting at 1. Per-agent provisionalIndex is discarded after merge
// (invariant 5): the returned Documents carry the global index in
// ProvisionalIndex, and origins carries the discarded per-agent value purely
// for prompt annotation. contributing lists the agent ids that produced at
// least one Document, in plan order — used to detect the general-agent
// short-circuit.
func mergeDocuments(plan workflow.DispatchPlan, outputs map[workflow.AgentID]workflow.AgentResult) (merged []workflow.Document, origins []origin, contributing []workflow.AgentID) {
	seen := make(map[workflow.AgentID]bool, len(plan.Entries))

	for _, entry := range plan.Entries {
		if seen[entry.Agent] {
			continue // a plan may list the same agent twice only in pathological input; merge its output once
		}
		seen[entry.Agent] = true

		out, ok := outputs[entry.Agent]
		if !ok || out.Status != workflow.StatusOK || len(out.Documents) == 0 {
			continue
		}

		contributing = append(contributing, entry.Agent)
		for _, doc := range out.Documents {
			origins = append(origins, origin{Agent: entry.Agent, Provisional: doc.ProvisionalIndex})
			doc.ProvisionalIndex = len(merged) + 1
			merged = append(merged, doc)
		}
	}

	return merged, origins, contributing
}
