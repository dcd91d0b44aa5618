package edgelog

import "time"

// Direction distinguishes server-side requests from client-side calls.
type Direction string

const (
	DirectionIncoming Direction = "INCOMING"
	DirectionOutgoing Direction = "OUTGOING"
)

// Edge marks whether an event describes the start or the completion of a
// logged exchange.
type Edge string

const (
	EdgeStart Edge = "START"
	EdgeEnd   Edge = "END"
)

// eventTimeLayout is the fixed precision used for start/end timestamps.
const eventTimeLayout = "2006-01-02 15:04:05.000000"

// Entry is the data container for a single log record. Plain log calls fill
// only Message, Severity, Time and Payload; request/response events
// ("smart" records) additionally carry the exchange fields so filters and
// formatters can treat them specially.
type Entry struct {
	Message  string
	Severity string
	Time     time.Time

	Labels  map[string]string
	Payload map[string]any

	// Smart marks a structured request/response record, as opposed to a
	// plain log line.
	Smart     bool
	Direction Direction
	Edge      Edge

	// Start is when the exchange began. End is zero while in flight.
	Start time.Time
	End   time.Time

	Request  map[string]any
	Response map[string]any

	// Notes carries free-form data attached by the handler.
	Notes any

	// Err is the failure info for exchanges that ended in an error. It is
	// populated by the caller's own error boundary, never by interception.
	Err error
}

// applyKVs applies key-value pairs to the entry payload, tolerating an odd
// trailing key the way a logging call site would expect.
func (e *Entry) applyKVs(kvs ...any) {
	n := len(kvs)
	if n%2 != 0 {
		if key, ok := kvs[n-1].(string); ok {
			e.Payload[key] = "KEY_WITHOUT_VALUE"
		}

		e.Payload["logging_error"] = "odd number of arguments received"

		n--
	}

	for i := 0; i < n; i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			// Skip non-string keys here; With panics on them instead.
			continue
		}

		if key == "error" {
			if err, ok := kvs[i+1].(error); ok {
				e.Payload[key] = err.Error()

				continue
			}
		}

		e.Payload[key] = kvs[i+1]
	}
}

// responseTimeMS is the exchange duration in whole milliseconds, or -1 while
// the exchange is still in flight.
func responseTimeMS(start, end time.Time) int64 {
	if end.IsZero() {
		return -1
	}

	return end.Sub(start).Milliseconds()
}

func formatEventTime(t time.Time) string {
	return t.Format(eventTimeLayout)
}
