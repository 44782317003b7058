// Package ocr extracts text from uploaded CV documents, either through the
// Mistral OCR API or from the PDF's own text layer.
package ocr

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jonathan/cv-anonymizer/internal/pipeline"
)

// Provider names
const (
	ProviderMistral = "mistral"
	ProviderLocal   = "local"
)

const service = "ocr"

// Config selects and configures the extractor
type Config struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	// Timeout bounds a single HTTP call; the pipeline applies its own bound on top.
	Timeout time.Duration
}

// New returns the extractor named by cfg.Provider.
func New(cfg Config, logger zerolog.Logger) (pipeline.TextExtractor, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderMistral:
		return NewMistral(cfg, logger), nil
	case ProviderLocal:
		return NewLocal(logger), nil
	default:
		return nil, fmt.Errorf("unknown OCR provider %q (want %s or %s)", cfg.Provider, ProviderMistral, ProviderLocal)
	}
}

var (
	imageRef  = regexp.MustCompile(`!\[.*?\]\(.*?\)`)
	blankRuns = regexp.MustCompile(`\n\s*\n`)
)

// CleanPage removes markdown image references from OCR output and squeezes
// runs of blank lines into a single empty line.
func CleanPage(markdown string) string {
	text := imageRef.ReplaceAllString(markdown, "")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// JoinPages cleans every page and joins the non-empty ones with a blank line.
func JoinPages(pages []string) string {
	parts := make([]string, 0, len(pages))
	for _, page := range pages {
		if cleaned := CleanPage(page); cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	return strings.Join(parts, "\n\n")
}
