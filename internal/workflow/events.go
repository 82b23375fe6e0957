package workflow

import "context"

// EventKind is the closed set of lifecycle event kinds emitted during one
// request's run. Only the Gateway writes these to the external event stream;
// every other component emits onto an internal channel the Gateway serializes.
type EventKind string

const (
	EventAgentStart    EventKind = "agent_start"
	EventAgentComplete EventKind = "agent_complete"
	EventCacheHit      EventKind = "cache_hit"
	EventFinal         EventKind = "final"
	EventDone          EventKind = "done"
	EventError         EventKind = "error"
)

// Event is one lifecycle event flowing from a component into the Gateway's
// internal event channel. Agent is set only for agent_start/agent_complete.
type Event struct {
	Kind  EventKind
	Agent string
}

// RetrievedDoc is the wire shape of one Document inside a FinalPayload: the
// source tag is folded into Metadata alongside the rest of SourceMeta.
type RetrievedDoc struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// FinalPayload is the body of the `final` SSE event, and the unit the Cache
// stores and replays on a fingerprint hit. Two requests that hit the same
// cache entry must stream byte-identical payloads, so this type's JSON
// encoding is exactly what both the live and cached path emit.
type FinalPayload struct {
	Answer        string         `json:"answer"`
	RetrievedDocs []RetrievedDoc `json:"retrieved_docs"`
	Confidence    *float64       `json:"confidence"`
	LatencyMs     int64          `json:"latency_ms"`
}

// ToFinalPayload assembles the FinalPayload for one completed request.
func ToFinalPayload(answer string, docs []Document, latencyMs int64) FinalPayload {
	retrieved := make([]RetrievedDoc, len(docs))
	for i, d := range docs {
		meta := make(map[string]string, len(d.SourceMeta)+1)
		for k, v := range d.SourceMeta {
			meta[k] = v
		}
		meta["source"] = string(d.Source)
		retrieved[i] = RetrievedDoc{Content: d.Content, Metadata: meta}
	}
	return FinalPayload{
		Answer:        answer,
		RetrievedDocs: retrieved,
		Confidence:    nil, // Open Question: no component in this pipeline produces a calibrated confidence score
		LatencyMs:     latencyMs,
	}
}

// Emitter is the narrow interface components use to report progress without
// writing to the external stream themselves. The Gateway is the sole consumer.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// ChanEmitter adapts a buffered channel to the Emitter interface. Producers
// block on push (back-pressure) rather than drop events; if ctx is cancelled
// first (abandoned client, workflow deadline) the send is abandoned instead of
// leaking the producing goroutine forever against a channel nobody drains.
type ChanEmitter struct {
	ch chan<- Event
}

// NewChanEmitter wraps a channel. Suggested buffer size is 16 events.
func NewChanEmitter(ch chan<- Event) ChanEmitter {
	return ChanEmitter{ch: ch}
}

func (e ChanEmitter) Emit(ctx context.Context, ev Event) {
	select {
	case e.ch <- ev:
	case <-ctx.Done():
	}
}
