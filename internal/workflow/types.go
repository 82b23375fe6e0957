// Package workflow holds the data model shared by every stage of one consult
// request: messages, retrieved documents, the dispatch plan, and the per-request
// state that the orchestrator and synthesizer mutate in order.
package workflow

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in the conversation. Immutable once constructed.
type Message struct {
	Role    Role
	Content string
}

// Source identifies which upstream produced a Document. Closed set.
type Source string

const (
	SourceDrug       Source = "drug"
	SourceLiterature Source = "literature"
	SourceGuideline  Source = "guideline"
	SourceGeneral    Source = "general"
)

// Document is a retrieved record attached to the final answer as a citation
// candidate. SourceMeta is an open string map never interpreted by the core.
type Document struct {
	Content          string
	Source           Source
	SourceMeta       map[string]string
	ProvisionalIndex int // 1-based, unique within the producing agent's output only
}

// AgentID names one of the four closed-set agent variants.
type AgentID string

const (
	AgentDrug       AgentID = "drug"
	AgentLiterature AgentID = "literature"
	AgentGuideline  AgentID = "guideline"
	AgentGeneral    AgentID = "general"
)

// DrugQuery is the sub-query shape consumed by the drug registry agent.
type DrugQuery struct {
	Term   string
	Intent string // e.g. "contraindications", "reimbursement", "details"
}

// ResearchQuery is the sub-query shape consumed by the literature agent.
type ResearchQuery struct {
	Term     string
	Filters  map[string]string
	UserLang string // BCP-47-ish tag; drives LiteratureAgent translation
}

// GuidelineQuery is the sub-query shape consumed by the guideline agent.
type GuidelineQuery struct {
	Term string
}

// SubQuery is the empty interface unifying the three typed sub-query variants
// plus the raw-utterance fallback carried by the general agent. Agents type-assert
// to their own expected shape; the classifier is the only producer.
type SubQuery interface{}

// PlanEntry pairs one agent with the sub-query it should receive.
type PlanEntry struct {
	Agent    AgentID
	SubQuery SubQuery
}

// DispatchPlan is the ordered, non-empty list of agents to invoke for one request.
// Order is significant: the synthesizer merges documents in this order, not
// completion order, so citation numbering is deterministic across retries.
type DispatchPlan struct {
	Entries []PlanEntry
}

// GeneralFallback builds the single-entry plan used whenever classification
// cannot produce anything more specific. A DispatchPlan is never empty (invariant 4).
func GeneralFallback(utterance string) DispatchPlan {
	return DispatchPlan{
		Entries: []PlanEntry{
			{Agent: AgentGeneral, SubQuery: utterance},
		},
	}
}

// AgentStatus is the closed-set outcome of running one agent.
type AgentStatus string

const (
	StatusOK     AgentStatus = "ok"
	StatusEmpty  AgentStatus = "empty"
	StatusFailed AgentStatus = "failed"
)

// ErrorKind is the closed-set reason an agent failed.
type ErrorKind string

const (
	ErrorKindNone        ErrorKind = ""
	ErrorKindUpstream    ErrorKind = "upstream"
	ErrorKindUnavailable ErrorKind = "unavailable"
	ErrorKindTimeout     ErrorKind = "timeout"
)

// AgentResult is the output of running one Agent against its sub-query.
type AgentResult struct {
	Documents []Document
	Status    AgentStatus
	ErrorKind ErrorKind
}

// State is the shape of one request's workflow state: the dispatcher's
// results (AgentOutputs) and the synthesizer's (MergedDocuments, FinalAnswer).
// NewState builds one; the Consult handler does not, and carries these values
// in local variables instead. It is never persisted.
type State struct {
	RequestID       string
	Messages        []Message
	Plan            DispatchPlan
	AgentOutputs    map[AgentID]AgentResult
	MergedDocuments []Document
	FinalAnswer     string
	StartedAt       time.Time
}

// NewState creates a fresh per-request Workflow State with a generated request id.
func NewState(messages []Message) *State {
	return &State{
		RequestID:    uuid.NewString(),
		Messages:     messages,
		AgentOutputs: make(map[AgentID]AgentResult),
		StartedAt:    time.Now(),
	}
}
