package visibility

import (
	"fmt"
	"strconv"
	"strings"
)

// Truthy boolean-coerces a submitted or default value the way checkbox inputs
// arrive over the wire: "1", "on", "yes" and "true" are checked; empty
// strings, "0", "off", "no" and "false" are not.
func Truthy(value any) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return truthyString(v)
	case []byte:
		return truthyString(string(v))
	case int:
		return v != 0
	case int64:
		return v != 0
	case int32:
		return v != 0
	case uint:
		return v != 0
	case uint64:
		return v != 0
	case float64:
		return v != 0
	case float32:
		return v != 0
	case []any:
		return len(v) > 0
	case []string:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

func truthyString(raw string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	switch trimmed {
	case "", "0", "false", "off", "no":
		return false
	default:
		return true
	}
}

// Normalize renders a value as the string used for equality checks. Booleans
// become "1"/"0", integral floats drop their fraction, and single-item lists
// collapse to their element so a one-option checkbox group compares like a
// scalar.
func Normalize(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case []string:
		if len(v) == 1 {
			return v[0]
		}
		return strings.Join(v, ",")
	case []any:
		if len(v) == 1 {
			return Normalize(v[0])
		}
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, Normalize(item))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(value)
	}
}

// List flattens a value into its normalised members. Scalars yield a single
// member; nil yields none.
func List(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, Normalize(item))
		}
		return out
	default:
		return []string{Normalize(value)}
	}
}

// Set interprets an `in`/`not_in` operand. Lists are used as-is and strings
// are split on commas.
func Set(operand any) []string {
	switch v := operand.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			out = append(out, strings.TrimSpace(part))
		}
		return out
	default:
		return List(operand)
	}
}
