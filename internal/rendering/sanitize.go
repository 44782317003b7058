package rendering

import "strings"

// SanitizeText prepares text for the core PDF fonts, which only cover
// WinAnsi. Control characters (C0 including tab, DEL, C1) are dropped and
// anything outside printable ASCII and Latin-1 becomes '?'. Line breaks are
// left in place for the caller to split on; spacing is otherwise untouched.
func SanitizeText(text string) string {
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))

	for _, r := range text {
		switch {
		case r == '\n' || r == '\r':
			b.WriteRune(r)
		case r < 0x20 || (r >= 0x7F && r <= 0x9F):
			// dropped
		case r <= 0x7E || (r >= 0xA0 && r <= 0xFF):
			b.WriteRune(r)
		default:
			b.WriteByte('?')
		}
	}

	return b.String()
}

// SanitizeLine sanitizes a single-line field: line breaks collapse to one space.
func SanitizeLine(text string) string {
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	return SanitizeText(text)
}

// splitLines splits on \n and \r\n.
func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}
