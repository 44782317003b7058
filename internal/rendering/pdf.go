package rendering

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-pdf/fpdf"
)

const documentTitle = "Anonymized CV"

// writePDF serializes laid-out pages. Positions are converted from the
// bottom-up coordinates of the layout to fpdf's top-down coordinates.
func writePDF(w io.Writer, pages []Page, createdAt time.Time) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &RenderError{Message: "PDF serialization failed", Cause: fmt.Errorf("%v", rec)}
		}
	}()

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: PageWidth, Ht: PageHeight},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetTitle(documentTitle, true)
	pdf.SetCreator("cv-anonymizer", true)
	pdf.SetCreationDate(createdAt)
	translate := pdf.UnicodeTranslatorFromDescriptor("")

	for _, page := range pages {
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: page.Width, Ht: page.Height})
		for _, line := range page.Lines {
			drawLine(pdf, translate, page.Height, line)
		}
		if page.Footer != nil {
			drawLine(pdf, translate, page.Height, *page.Footer)
		}
	}

	if err := pdf.Output(w); err != nil {
		return &RenderError{Message: "failed to write PDF", Cause: err}
	}
	return nil
}

func drawLine(pdf *fpdf.Fpdf, translate func(string) string, pageHeight float64, line Line) {
	pdf.SetFont(FontFamily, string(line.Font), line.Size)
	pdf.SetTextColor(channel(line.Color.R), channel(line.Color.G), channel(line.Color.B))
	pdf.Text(line.X, pageHeight-line.Y, translate(line.Text))
}

func channel(v float64) int {
	return int(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
