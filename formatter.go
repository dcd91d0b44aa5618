package edgelog

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

// Formatter is an interface for converting an Entry into a byte slice.
type Formatter interface {
	Format(e *Entry) ([]byte, error)
}

// jsonFormatter formats log entries as JSON, one object per line.
type jsonFormatter struct {
	cfg   *Config
	extra map[string]any
}

// JSONFormatterOption configures a jsonFormatter.
type JSONFormatterOption func(*jsonFormatter)

// WithExtra merges fixed key-value pairs into every formatted entry,
// before the entry's own fields. Useful for sink routing metadata.
func WithExtra(extra map[string]any) JSONFormatterOption {
	return func(f *jsonFormatter) {
		for k, v := range extra {
			f.extra[k] = v
		}
	}
}

// NewJSONFormatter creates a new JSONFormatter. A nil cfg uses DefaultConfig.
func NewJSONFormatter(cfg *Config, opts ...JSONFormatterOption) *jsonFormatter {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	f := &jsonFormatter{
		cfg:   cfg,
		extra: make(map[string]any),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// NewSumoFormatter creates a JSON formatter that stamps every entry with the
// Sumo Logic source category and source name used for collector routing.
func NewSumoFormatter(cfg *Config, sourceCategory, sourceName string) *jsonFormatter {
	return NewJSONFormatter(cfg, WithExtra(map[string]any{
		"sourceCategory": sourceCategory,
		"sourceName":     sourceName,
	}))
}

// Format converts an Entry to JSON format.
//
// When the serialized entry exceeds cfg.MaxJSONDataToLog bytes, the entry is
// flagged with max_data_exceeded and the response data, if any, is cut down
// to fit. A limit of 50 bytes or less still sets the flag but skips the cut,
// since the truncation marker alone would not fit.
func (f *jsonFormatter) Format(e *Entry) ([]byte, error) {
	m := make(map[string]any, len(f.extra)+len(e.Payload)+8)

	for k, v := range f.extra {
		m[k] = v
	}

	for k, v := range e.Payload {
		m[k] = normalizeValue(v)
	}

	m["message"] = e.Message
	m["severity"] = e.Severity
	m["timestamp"] = e.Time

	if len(e.Labels) > 0 {
		m["labels"] = e.Labels
	}

	if e.Err != nil {
		m["error"] = e.Err.Error()
	}

	if e.Smart {
		m["direction"] = string(e.Direction)
		m["edge"] = string(e.Edge)
		m["start_time"] = formatEventTime(e.Start)
		m["response_time_ms"] = responseTimeMS(e.Start, e.End)

		if e.End.IsZero() {
			m["end_time"] = nil
		} else {
			m["end_time"] = formatEventTime(e.End)
		}

		if e.Request != nil {
			m["request"] = e.Request
		}

		if e.Response != nil {
			m["response"] = e.Response
		}

		if e.Notes != nil {
			m["notes"] = e.Notes
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	limit := f.cfg.MaxJSONDataToLog
	if limit <= 0 || len(out) <= limit {
		return out, nil
	}

	m["max_data_exceeded"] = true

	truncLen := limit - 50
	if truncLen > 0 {
		if resp, ok := m["response"].(map[string]any); ok {
			if data, ok := resp["data"]; ok {
				s := fmt.Sprint(data)

				if len(s) > truncLen {
					trimmed := make(map[string]any, len(resp))

					for k, v := range resp {
						trimmed[k] = v
					}

					trimmed["data"] = s[:truncLen] + " **TRUNCATED**"
					m["response"] = trimmed
				}
			}
		}
	}

	return json.Marshal(m)
}

// normalizeValue converts values that do not have a useful native JSON
// representation into tagged forms, recursing through maps and slices.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return map[string]any{
			"value": formatEventTime(val),
			"type":  "datetime",
		}
	case time.Duration:
		return map[string]any{
			"value": val.String(),
			"type":  "duration",
		}
	case error:
		return map[string]any{
			"value": val.Error(),
			"type":  "error",
		}
	case map[string]any:
		out := make(map[string]any, len(val))

		for k, item := range val {
			out[k] = normalizeValue(item)
		}

		return out
	case []any:
		out := make([]any, len(val))

		for i, item := range val {
			out[i] = normalizeValue(item)
		}

		return out
	default:
		return v
	}
}
