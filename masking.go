package edgelog

import "strings"

// MaskString is the placeholder substituted for every redacted value.
const MaskString = "*** masked ***"

// Processor masks sensitive values in decoded request or response data.
// Process must mutate data in place and must treat cfg as read-only.
type Processor interface {
	Process(data map[string]any, cfg *Config)
}

// pathTrie is the compiled form of a set of path patterns. A nil child means
// "mask this key and everything below it"; a non-nil child continues matching.
type pathTrie map[string]pathTrie

// SensitivePaths matches slash-delimited key paths against nested data and
// replaces matching values with MaskString.
//
// '*' matches any key at exactly one level. Leading and trailing slashes have
// no effect. A terminal '*' is equivalent to omitting it.
//
//	NewSensitivePaths("obj/key1", "/obj/key2", "obj/key2/ignored", "obj/*/nested1/")
//
// compiles to:
//
//	obj ─┬─ key1 (terminal)
//	     ├─ key2 (terminal; the longer "obj/key2/ignored" is collapsed away)
//	     └─ *    ── nested1 (terminal)
type SensitivePaths struct {
	root pathTrie
}

// NewSensitivePaths compiles the given path patterns into a rule set.
func NewSensitivePaths(patterns ...string) *SensitivePaths {
	sp := &SensitivePaths{root: pathTrie{}}

	for _, p := range patterns {
		sp.insert(p)
	}

	return sp
}

func (sp *SensitivePaths) insert(pattern string) {
	cur := sp.root
	keys := strings.Split(strings.Trim(pattern, "/"), "/")

	for len(keys) > 0 {
		k := keys[0]
		keys = keys[1:]

		if len(keys) == 1 && keys[0] == "*" {
			// A terminal "*" masks the whole subtree, same as stopping here.
			cur[k] = nil

			break
		}

		if len(keys) == 0 {
			// Overwrites any deeper structure built by an earlier, longer
			// pattern sharing this prefix.
			cur[k] = nil

			continue
		}

		next, ok := cur[k]
		if !ok {
			next = pathTrie{}
			cur[k] = next
		}

		if next == nil {
			// An earlier pattern already masks everything below this key.
			break
		}

		cur = next
	}
}

// Process masks matching values in data in place. It is a no-op unless
// cfg.EnableSensitivePathsProcessor is set, so masking can be switched off
// globally without touching call sites.
func (sp *SensitivePaths) Process(data map[string]any, cfg *Config) {
	if cfg == nil || !cfg.EnableSensitivePathsProcessor {
		return
	}

	sanitizeMap(sp.root, data, cfg.ShowNestedKeysInSensitivePaths)
}

func sanitizeMap(paths pathTrie, data map[string]any, showNested bool) {
	if nested, ok := paths["*"]; ok {
		if nested == nil {
			if showNested {
				// Keep the top-level keys visible, mask every value.
				for k := range data {
					data[k] = MaskString
				}
			} else {
				clear(data)
				data[MaskString] = MaskString
			}
		} else {
			// Check every value against the paths below the '*'.
			for _, v := range data {
				sanitizeValue(nested, v, showNested)
			}
		}
	}

	for k, v := range data {
		nested, ok := paths[k]
		if !ok {
			// Unlisted keys are left untouched.
			continue
		}

		if nested == nil {
			data[k] = chainMask(v, showNested)
		} else {
			sanitizeValue(nested, v, showNested)
		}
	}
}

// sanitizeValue descends into maps and sequences. A sequence does not consume
// a path segment: the current rules apply to every element, so
//
//	NewSensitivePaths("obj1/key1")
//
// masks key1 inside each element of {"obj1": [{"key1": ...}, {"key1": ...}]}.
func sanitizeValue(paths pathTrie, data any, showNested bool) {
	switch t := data.(type) {
	case map[string]any:
		sanitizeMap(paths, t, showNested)
	case []any:
		for _, item := range t {
			sanitizeValue(paths, item, showNested)
		}
	}
}

// chainMask returns a fully masked replacement for a value under a terminal
// rule: maps keep either a single placeholder entry or their keys (when
// showNested is set), sequences mask every element, anything else becomes the
// placeholder string.
func chainMask(data any, showNested bool) any {
	switch t := data.(type) {
	case nil:
		return nil
	case map[string]any:
		if showNested {
			m := make(map[string]any, len(t))

			for k := range t {
				m[k] = MaskString
			}

			return m
		}

		return map[string]any{MaskString: MaskString}
	case []any:
		out := make([]any, len(t))

		for i := range t {
			out[i] = chainMask(t[i], showNested)
		}

		return out
	default:
		return MaskString
	}
}
