// Package redaction replaces detected personal information in CV text according to per-category policies.
package redaction

import "strings"

// EscapePattern escapes the regular-expression metacharacters
// . * + ? ^ $ { } ( ) | [ ] \ so the item matches literally.
// All other characters are kept verbatim.
func EscapePattern(item string) string {
	if item == "" {
		return ""
	}

	var result strings.Builder
	result.Grow(len(item) * 2)

	for _, r := range item {
		switch r {
		case '.', '*', '+', '?', '^', '$', '{', '}', '(', ')', '|', '[', ']', '\\':
			result.WriteByte('\\')
		}
		result.WriteRune(r)
	}

	return result.String()
}

// EscapeValue is EscapePattern for values of unknown type; anything other
// than a string escapes to the empty pattern.
func EscapeValue(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return EscapePattern(s)
}
