package edgelog

import (
	"io"
	"testing"
)

// TestEdgeEndFilter verifies that only the END edge of smart records passes,
// while plain records are never suppressed.
func TestEdgeEndFilter(t *testing.T) {
	f := EdgeEndFilter{}

	tests := []struct {
		name  string
		entry *Entry
		want  bool
	}{
		{"plain entry", &Entry{Message: "hello"}, true},
		{"smart start", &Entry{Smart: true, Edge: EdgeStart}, false},
		{"smart end", &Entry{Smart: true, Edge: EdgeEnd}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Allow(tt.entry); got != tt.want {
				t.Errorf("Allow() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestLoggerFilterChain verifies that a logger drops entries its filters
// reject before formatting.
func TestLoggerFilterChain(t *testing.T) {
	cf := &captureFormatter{}

	l := New(WithFormatter(cf), WithFilter(EdgeEndFilter{}), WithOutput(io.Discard))

	l.logEvent(&Entry{Smart: true, Edge: EdgeStart, Severity: string(LogLevelInfo)})
	l.logEvent(&Entry{Smart: true, Edge: EdgeEnd, Severity: string(LogLevelInfo)})
	l.Infow("plain line")

	if len(cf.entries) != 2 {
		t.Fatalf("expected 2 entries to pass the filter, got %d", len(cf.entries))
	}

	if cf.entries[0].Edge != EdgeEnd {
		t.Errorf("expected the END event first, got %v", cf.entries[0].Edge)
	}

	if cf.entries[1].Message != "plain line" {
		t.Errorf("expected the plain line second, got %q", cf.entries[1].Message)
	}
}
