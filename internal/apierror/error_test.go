package apierror

import (
	"context"
	"errors"
	"testing"
)

func TestMap_NilIsEmpty(t *testing.T) {
	if got := Map(nil); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestMap_WrappedAPIError(t *testing.T) {
	base := New(KindValidation, "query too long", nil)
	wrapped := errors.New("outer: " + base.Error())
	if got := Map(base); got != KindValidation {
		t.Errorf("got %q, want %q", got, KindValidation)
	}
	// A plain wrapped string (not via %w) should NOT be recognized via errors.As.
	if got := Map(wrapped); got != KindInternal {
		t.Errorf("got %q, want %q for an opaque error", got, KindInternal)
	}
}

func TestMap_DeadlineExceeded(t *testing.T) {
	if got := Map(context.DeadlineExceeded); got != KindTimeout {
		t.Errorf("got %q, want %q", got, KindTimeout)
	}
}

func TestMap_Canceled(t *testing.T) {
	if got := Map(context.Canceled); got != KindTimeout {
		t.Errorf("got %q, want %q", got, KindTimeout)
	}
}

func TestMap_UnknownFallsBackToInternal(t *testing.T) {
	if got := Map(errors.New("mystery fault")); got != KindInternal {
		t.Errorf("got %q, want %q", got, KindInternal)
	}
}

func TestError_UnwrapPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := New(KindInternal, "dispatch failed", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestError_ErrorStringIncludesKindAndDetail(t *testing.T) {
	err := New(KindTimeout, "classification exceeded deadline", nil)
	msg := err.Error()
	if !contains(msg, "timeout") || !contains(msg, "classification exceeded deadline") {
		t.Errorf("got %q", msg)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
