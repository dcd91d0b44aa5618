package edgelog

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// SanitizeData returns a deep copy of data with every rule set named by the
// union of names, the names active on ctx, and the globally registered names
// applied. The input is never mutated. Names with no registered rule set are
// skipped. Rule sets are applied in sorted-name order; they must not depend
// on each other's output.
func (m *Masker) SanitizeData(ctx context.Context, data map[string]any, names ...string) map[string]any {
	if data == nil {
		return nil
	}

	masked := deepCopyMap(data)
	resolved := m.resolveNames(ctx, names)

	m.mu.RLock()
	procs := make([]Processor, 0, len(resolved))

	for _, name := range resolved {
		if p, ok := m.processors[name]; ok {
			procs = append(procs, p)
		}
	}
	m.mu.RUnlock()

	for _, p := range procs {
		p.Process(masked, m.cfg)
	}

	return masked
}

// SanitizeQuerystring parses qs as an encoded query string, masks it as a
// mapping of key to value list, and re-encodes it, preserving multi-value
// keys. When qs does not parse, it is returned unchanged, or replaced
// entirely with MaskString when cfg.PreferTextFallbackMasking is set.
func (m *Masker) SanitizeQuerystring(ctx context.Context, qs string, names ...string) string {
	values, err := parseQueryStrict(qs)
	if err != nil {
		if m.cfg.PreferTextFallbackMasking {
			return MaskString
		}

		return qs
	}

	data := make(map[string]any, len(values))

	for k, vs := range values {
		list := make([]any, len(vs))

		for i, v := range vs {
			list[i] = v
		}

		data[k] = list
	}

	masked := m.SanitizeData(ctx, data, names...)
	encoded := url.Values{}

	for k, v := range masked {
		switch t := v.(type) {
		case []any:
			for _, item := range t {
				encoded.Add(k, fmt.Sprint(item))
			}
		default:
			// A collapsing rule may have replaced the value list outright.
			encoded.Add(k, fmt.Sprint(t))
		}
	}

	return encoded.Encode()
}

// SanitizeURL masks the query portion of rawURL, leaving the rest untouched.
func (m *Masker) SanitizeURL(ctx context.Context, rawURL string, names ...string) string {
	base, query, ok := strings.Cut(rawURL, "?")
	if !ok || query == "" {
		return rawURL
	}

	return base + "?" + m.SanitizeQuerystring(ctx, query, names...)
}

// SanitizeAny sanitizes data of unknown shape: mappings go through
// SanitizeData, strings through SanitizeQuerystring, and anything else is
// returned unchanged rather than rejected.
func (m *Masker) SanitizeAny(ctx context.Context, data any, names ...string) any {
	switch t := data.(type) {
	case map[string]any:
		return m.SanitizeData(ctx, t, names...)
	case string:
		return m.SanitizeQuerystring(ctx, t, names...)
	default:
		return data
	}
}

// parseQueryStrict is url.ParseQuery with the lenient cases rejected: empty
// input and pairs without '=' are parse failures, so that ordinary prose is
// not mistaken for a one-key query string.
func parseQueryStrict(qs string) (url.Values, error) {
	if qs == "" {
		return nil, errors.New("empty query string")
	}

	for _, seg := range strings.FieldsFunc(qs, func(r rune) bool { return r == '&' || r == ';' }) {
		if !strings.Contains(seg, "=") {
			return nil, fmt.Errorf("segment %q has no '='", seg)
		}
	}

	return url.ParseQuery(qs)
}
