package condition

import (
	"fmt"
	"strings"
)

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(t, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func equalValues(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return asString(a) == asString(b)
}

func containsValue(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, asString(needle))
	case []any:
		for _, e := range h {
			if equalValues(e, needle) {
				return true
			}
		}
		return false
	case map[string]any:
		_, ok := h[asString(needle)]
		return ok
	default:
		return false
	}
}

func hasPrefix(v, prefix any) bool {
	return strings.HasPrefix(asString(v), asString(prefix))
}

func hasSuffix(v, suffix any) bool {
	return strings.HasSuffix(asString(v), asString(suffix))
}
