// Package attrs reads values back out of slog-style key/value lists.
package attrs

import "fmt"

// ExtractString returns the value paired with key in a [k1, v1, k2, v2, ...]
// list. Strings are returned as is and fmt.Stringer values are rendered.
// Missing keys and other value types yield "".
func ExtractString(kv []any, key string) string {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); !ok || k != key {
			continue
		}
		switch v := kv[i+1].(type) {
		case string:
			return v
		case fmt.Stringer:
			return v.String()
		}
		return ""
	}
	return ""
}
