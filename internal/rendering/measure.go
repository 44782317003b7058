package rendering

import (
	"sync"

	"github.com/go-pdf/fpdf"
)

// FontFamily is the core font used for every line of the document
const FontFamily = "Helvetica"

// Font selects a face of FontFamily
type Font string

// Font constants
const (
	FontRegular Font = ""
	FontBold    Font = "B"
)

// Measurer reports the rendered width of text in points.
type Measurer interface {
	TextWidth(text string, font Font, size float64) float64
}

// PDFMeasurer measures text with the metrics of the PDF core fonts.
type PDFMeasurer struct {
	mu        sync.Mutex
	pdf       *fpdf.Fpdf
	translate func(string) string
}

// NewPDFMeasurer creates a measurer backed by fpdf's embedded Helvetica metrics.
func NewPDFMeasurer() *PDFMeasurer {
	pdf := fpdf.New("P", "pt", "A4", "")
	return &PDFMeasurer{
		pdf:       pdf,
		translate: pdf.UnicodeTranslatorFromDescriptor(""),
	}
}

// TextWidth returns the width of text set in the given font and size.
func (m *PDFMeasurer) TextWidth(text string, font Font, size float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pdf.SetFont(FontFamily, string(font), size)
	return m.pdf.GetStringWidth(m.translate(text))
}
