package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"

	"github.com/jonathan/cv-anonymizer/internal/pipeline"
)

// Local reads the text layer embedded in a PDF. It cannot read scanned
// pages; those come back empty.
type Local struct {
	logger zerolog.Logger
}

// NewLocal creates a text-layer extractor
func NewLocal(logger zerolog.Logger) *Local {
	return &Local{logger: logger.With().Str("component", "ocr").Str("provider", ProviderLocal).Logger()}
}

// Extract returns the plain text of every page.
func (l *Local) Extract(ctx context.Context, doc pipeline.Document) (out pipeline.Extraction, err error) {
	if err := ctx.Err(); err != nil {
		return pipeline.Extraction{}, err
	}

	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if rec := recover(); rec != nil {
			out = pipeline.Extraction{}
			err = unreadable(fmt.Errorf("pdf reader panic: %v", rec))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return pipeline.Extraction{}, unreadable(err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return pipeline.Extraction{}, unreadable(err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return pipeline.Extraction{}, unreadable(err)
	}

	text := CleanPage(buf.String())
	l.logger.Debug().Int("pages", reader.NumPage()).Int("chars", len(text)).Msg("text layer extracted")
	return pipeline.Extraction{Text: text, Pages: reader.NumPage()}, nil
}

func unreadable(err error) error {
	return &pipeline.CollaboratorError{
		Service: service,
		Code:    pipeline.FailureGeneric,
		Message: "OCR processing failed: the PDF could not be read",
		Cause:   err,
	}
}
