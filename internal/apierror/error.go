// Package apierror defines the closed taxonomy of client-facing error tags
// and maps internal faults onto them. The Gateway never surfaces a raw
// transport or driver error to the caller — every non-success path is
// mapped through Map to one tag before it reaches the event stream.
package apierror

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the closed-set error taxonomy tag surfaced in the `error` SSE event.
type Kind string

const (
	// KindValidation marks input rejected before any work begins.
	KindValidation Kind = "validation_error"
	// KindRateLimited marks a per-client bucket that was empty.
	KindRateLimited Kind = "rate_limit_exceeded"
	// KindTimeout marks a workflow or call that exceeded its deadline with no
	// partial answer produced.
	KindTimeout Kind = "timeout"
	// KindUpstreamPartial marks one or more agents failing while the workflow
	// continued with the remainder. Never surfaced as a terminating error
	// event — it is reflected only in the final payload's missing citations.
	KindUpstreamPartial Kind = "upstream_partial"
	// KindUpstreamTotal marks every agent in the plan failing. The workflow
	// still completes with a graceful-degradation final answer, so this tag
	// is used for internal classification/metrics, never for the error event.
	KindUpstreamTotal Kind = "upstream_total"
	// KindInternal marks an unclassified fault inside the core.
	KindInternal Kind = "internal_error"
)

// Error pairs a taxonomy Kind with a human-readable detail string, cause
// preserved for logging via errors.Unwrap.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind.
func New(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

// Map classifies an arbitrary error into a taxonomy Kind, for faults that
// were not already constructed as an *Error. Deadline/cancellation maps to
// timeout; everything else not otherwise recognized maps to internal_error.
func Map(err error) Kind {
	if err == nil {
		return ""
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}

	return KindInternal
}
