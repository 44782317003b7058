package rendering

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/jonathan/cv-anonymizer/internal/types"
)

// Renderer turns a StructuredCV into paginated output. It holds no
// per-document state and may be shared between goroutines.
type Renderer struct {
	measurer      Measurer
	now           func() time.Time
	latexTemplate string
}

// NewRenderer creates a renderer. A nil measurer uses the PDF core font metrics.
func NewRenderer(m Measurer) *Renderer {
	if m == nil {
		m = NewPDFMeasurer()
	}
	return &Renderer{measurer: m, now: time.Now}
}

// WithClock returns a copy of the renderer that stamps documents with now().
func (r *Renderer) WithClock(now func() time.Time) *Renderer {
	out := *r
	out.now = now
	return &out
}

// WithLaTeXTemplate returns a copy of the renderer that uses the template
// file at path for LaTeX output instead of the built-in one.
func (r *Renderer) WithLaTeXTemplate(path string) *Renderer {
	out := *r
	out.latexTemplate = path
	return &out
}

// Layout computes the pages for cv, with the generation footer on the last page.
func (r *Renderer) Layout(cv types.StructuredCV) (pages []Page, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = &RenderError{Message: "layout failed", Cause: fmt.Errorf("%v", rec)}
		}
	}()

	pages = layoutRecord(r.measurer, cv)
	at := r.now()
	pages[len(pages)-1].Footer = &Line{
		Text:  fmt.Sprintf("Generated on %s at %s", at.Format(dateLayout), at.Format(clockLayout)),
		X:     Margin,
		Y:     footerY,
		Font:  FontRegular,
		Size:  footerSize,
		Color: colorMuted,
	}
	return pages, nil
}

// WritePDF lays out cv and writes it to w as a PDF document.
func (r *Renderer) WritePDF(w io.Writer, cv types.StructuredCV) error {
	pages, err := r.Layout(cv)
	if err != nil {
		return err
	}
	return writePDF(w, pages, r.now())
}

// RenderPDF returns cv as PDF bytes.
func (r *Renderer) RenderPDF(cv types.StructuredCV) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.WritePDF(&buf, cv); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Render serializes cv in the requested format.
func (r *Renderer) Render(format Format, cv types.StructuredCV) ([]byte, error) {
	switch format {
	case FormatPDF:
		return r.RenderPDF(cv)
	case FormatText:
		return []byte(RenderText(cv)), nil
	case FormatLaTeX:
		out, err := RenderLaTeX(cv, r.latexTemplate)
		if err != nil {
			return nil, err
		}
		return []byte(out), nil
	default:
		return nil, &RenderError{Message: fmt.Sprintf("unsupported format %q", format)}
	}
}
