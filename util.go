package edgelog

// deepCopyMap copies a decoded JSON tree so sanitization never mutates the
// caller's data. Scalar leaves are shared; only containers are duplicated.
func deepCopyMap(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	out := make(map[string]any, len(data))

	for k, v := range data {
		out[k] = deepCopyValue(v)
	}

	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))

		for i := range t {
			out[i] = deepCopyValue(t[i])
		}

		return out
	default:
		return v
	}
}
