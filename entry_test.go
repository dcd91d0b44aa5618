package edgelog

import (
	"errors"
	"testing"
	"time"
)

// TestApplyKVs verifies payload assembly, including the odd-argument and
// error-value conventions.
func TestApplyKVs(t *testing.T) {
	t.Run("pairs applied", func(t *testing.T) {
		e := &Entry{Payload: map[string]any{}}

		e.applyKVs("a", 1, "b", "two")

		if e.Payload["a"] != 1 || e.Payload["b"] != "two" {
			t.Errorf("unexpected payload: %#v", e.Payload)
		}
	})

	t.Run("odd trailing key flagged", func(t *testing.T) {
		e := &Entry{Payload: map[string]any{}}

		e.applyKVs("a", 1, "dangling")

		if e.Payload["dangling"] != "KEY_WITHOUT_VALUE" {
			t.Errorf("expected dangling key marker, got %#v", e.Payload)
		}

		if _, ok := e.Payload["logging_error"]; !ok {
			t.Error("expected logging_error to be set")
		}

		if e.Payload["a"] != 1 {
			t.Error("expected preceding pairs to still apply")
		}
	})

	t.Run("error values flattened", func(t *testing.T) {
		e := &Entry{Payload: map[string]any{}}

		e.applyKVs("error", errors.New("boom"))

		if e.Payload["error"] != "boom" {
			t.Errorf("expected error text, got %#v", e.Payload["error"])
		}
	})

	t.Run("non-string keys skipped", func(t *testing.T) {
		e := &Entry{Payload: map[string]any{}}

		e.applyKVs(42, "value", "ok", true)

		if _, ok := e.Payload["ok"]; !ok {
			t.Error("expected later pairs to survive a skipped key")
		}

		if len(e.Payload) != 1 {
			t.Errorf("unexpected payload: %#v", e.Payload)
		}
	})
}

// TestResponseTimeMS verifies the in-flight sentinel and the whole-millisecond
// rounding.
func TestResponseTimeMS(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	if got := responseTimeMS(start, time.Time{}); got != -1 {
		t.Errorf("in-flight response time = %d, want -1", got)
	}

	end := start.Add(1500 * time.Millisecond)

	if got := responseTimeMS(start, end); got != 1500 {
		t.Errorf("response time = %d, want 1500", got)
	}

	end = start.Add(999 * time.Microsecond)

	if got := responseTimeMS(start, end); got != 0 {
		t.Errorf("sub-millisecond response time = %d, want 0", got)
	}
}

func TestFormatEventTime(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 30, 5, 123456000, time.UTC)

	if got := formatEventTime(ts); got != "2026-03-14 09:30:05.123456" {
		t.Errorf("formatted time = %q", got)
	}
}
