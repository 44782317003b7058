package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CoerceString converts an arbitrary decoded JSON value to a string.
// Falsy values (nil, false, 0, "") become the empty string. Lists become one
// line per non-empty element; other values keep their JSON text unescaped.
func CoerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
		return "true"
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		if t == 0 {
			return ""
		}
		return strconv.Itoa(t)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return t.String()
	case []string:
		return joinLines(t)
	case []any:
		items := make([]string, 0, len(t))
		for _, item := range t {
			items = append(items, CoerceString(item))
		}
		return joinLines(items)
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return fmt.Sprint(t)
		}
		return strings.TrimSuffix(buf.String(), "\n")
	}
}

func joinLines(items []string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			lines = append(lines, item)
		}
	}
	return strings.Join(lines, "\n")
}

// CoerceStrings converts a decoded JSON value to a non-nil list of strings.
// A bare string becomes a one-element list.
func CoerceStrings(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, CoerceString(item))
		}
		return out
	case []string:
		return append([]string{}, t...)
	default:
		s := CoerceString(t)
		if s == "" {
			return []string{}
		}
		return []string{s}
	}
}
