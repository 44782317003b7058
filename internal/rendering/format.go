package rendering

import (
	"fmt"
	"strings"
)

// Format is an output document format
type Format string

// Supported formats
const (
	FormatPDF   Format = "pdf"
	FormatText  Format = "text"
	FormatLaTeX Format = "latex"
)

// ParseFormat accepts a format name or a file extension, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), ".")) {
	case "pdf":
		return FormatPDF, nil
	case "text", "txt":
		return FormatText, nil
	case "latex", "tex":
		return FormatLaTeX, nil
	default:
		return "", fmt.Errorf("unknown format %q (want pdf, text or latex)", s)
	}
}

// Extension returns the file extension for the format, without the dot.
func (f Format) Extension() string {
	switch f {
	case FormatText:
		return "txt"
	case FormatLaTeX:
		return "tex"
	default:
		return "pdf"
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatText:
		return "text/plain; charset=utf-8"
	case FormatLaTeX:
		return "application/x-tex; charset=utf-8"
	default:
		return "application/pdf"
	}
}
