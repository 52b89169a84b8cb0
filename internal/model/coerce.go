package model

import (
	"fmt"
	"strings"
	"time"
)

// maxCoerceDepth bounds recursion into nested maps and slices so that a
// pathological payload cannot blow the stack. Anything deeper is
// stringified wholesale.
const maxCoerceDepth = 10

// Sanitize returns a copy of m fit for storage: keys beginning with
// PrivateKeyPrefix are dropped, nested maps and slices are walked, and
// values outside the JSON-native scalar set are coerced to strings.
// A nil input yields an empty, non-nil map so that every stored record
// carries `{}` rather than `null`.
func Sanitize(m map[string]any) map[string]any {
	return sanitizeMap(m, 0)
}

func sanitizeMap(m map[string]any, depth int) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if strings.HasPrefix(k, PrivateKeyPrefix) {
			continue
		}
		out[k] = coerceValue(v, depth+1)
	}
	return out
}

func coerceValue(v any, depth int) any {
	if depth > maxCoerceDepth {
		return fmt.Sprintf("%v", v)
	}
	switch val := v.(type) {
	case nil, bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return val
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case map[string]any:
		return sanitizeMap(val, depth)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = coerceValue(item, depth+1)
		}
		return out
	case fmt.Stringer:
		return val.String()
	case error:
		return val.Error()
	default:
		return fmt.Sprintf("%v", val)
	}
}
