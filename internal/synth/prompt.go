package synth

import (
	"fmt"
	"strings"

	"github.com/sovadina/consult-gateway/internal/workflow"
)

// buildPrompt assembles the ChatClient prompt per document: the user
// question, the merged documents annotated with their new global index and
// their original (agent, provisional) origin, and the citation instructions.
// The model sees the origin tuple only for cross-reference; expected output
// uses global indices exclusively.
func buildPrompt(question string, merged []workflow.Document, origins []origin) string {
	var sb strings.Builder

	sb.WriteString("=== CLINICAL QUESTION ===\n")
	sb.WriteString(question)
	sb.WriteString("\n\n")

	sb.WriteString("=== RETRIEVED DOCUMENTS ===\n")
	for i, doc := range merged {
		o := origins[i]
		sb.WriteString(fmt.Sprintf("[%d] (source: %s, origin: %s#%d)\n%s\n\n",
			doc.ProvisionalIndex, doc.Source, o.Agent, o.Provisional, doc.Content))
	}

	sb.WriteString("=== INSTRUCTIONS ===\n")
	sb.WriteString("Answer the clinical question concisely, in the same language as the question. ")
	sb.WriteString("Every factual claim drawn from a retrieved document must carry an inline citation ")
	sb.WriteString(fmt.Sprintf("of the form [K], where K is one of the global indices 1..%d shown above. ", len(merged)))
	sb.WriteString("Do not invent citation numbers outside that range. Do not restate the document list.")

	return sb.String()
}
