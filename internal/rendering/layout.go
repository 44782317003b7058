package rendering

import (
	"strings"

	"github.com/jonathan/cv-anonymizer/internal/types"
)

// Page geometry in points. A4 portrait.
const (
	PageWidth  = 595.28
	PageHeight = 841.89
	Margin     = 50.0
	LineHeight = 14.0

	// UsableWidth is the horizontal space available to a line of text
	UsableWidth = PageWidth - 2*Margin
)

const (
	titleSize   = 18.0
	headerSize  = 13.0
	bodySize    = 11.0
	detailSize  = 10.0
	footerSize  = 8.0
	footerY     = 30.0
	titleText   = "Anonymized CV"
	watermark   = "Generated by CV Anonymizer"
	dateLayout  = "2006-01-02"
	clockLayout = "15:04:05"
)

// Color is an RGB triple with components in [0, 1]
type Color struct {
	R, G, B float64
}

var (
	colorBody    = Color{0, 0, 0}
	colorHeading = Color{0.2, 0.2, 0.2}
	colorDetail  = Color{0.4, 0.4, 0.4}
	colorMuted   = Color{0.5, 0.5, 0.5}
)

// Line is one run of text placed on a page. Y is the baseline measured
// upward from the bottom edge of the page.
type Line struct {
	Text  string  `json:"text"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Font  Font    `json:"font"`
	Size  float64 `json:"size"`
	Color Color   `json:"color"`
}

// Page is a fixed-size canvas. Footer is set on the final page only and
// sits inside the bottom margin.
type Page struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Lines  []Line  `json:"lines"`
	Footer *Line   `json:"footer,omitempty"`
}

// layout is the cursor state of one document being laid out.
type layout struct {
	measure Measurer
	pages   []Page
	y       float64
}

func newLayout(m Measurer) *layout {
	l := &layout{measure: m}
	l.newPage()
	return l
}

func (l *layout) newPage() {
	l.pages = append(l.pages, Page{Width: PageWidth, Height: PageHeight, Lines: []Line{}})
	l.y = PageHeight - Margin
}

func (l *layout) breakIfNeeded() {
	if l.y < Margin+LineHeight {
		l.newPage()
	}
}

// draw places one already-sanitized line at the cursor without moving it.
func (l *layout) draw(text string, font Font, size float64, color Color) {
	l.breakIfNeeded()
	page := &l.pages[len(l.pages)-1]
	page.Lines = append(page.Lines, Line{Text: text, X: Margin, Y: l.y, Font: font, Size: size, Color: color})
}

// label draws a single-line field, wrapping it only if it does not fit.
// The cursor ends on the baseline of the last wrapped line.
func (l *layout) label(text string, font Font, size float64, color Color) {
	for i, line := range l.wrap(SanitizeLine(text), font, size) {
		if i > 0 {
			l.y -= LineHeight
		}
		l.draw(line, font, size, color)
	}
}

// paragraph lays out multi-line text in body color. Blank lines take one
// line height; every drawn line advances the cursor and may start a new page.
func (l *layout) paragraph(text string, font Font, size float64) {
	for _, raw := range splitLines(text) {
		line := SanitizeText(raw)
		if strings.TrimSpace(line) == "" {
			l.y -= LineHeight
			continue
		}
		for _, wrapped := range l.wrap(line, font, size) {
			l.draw(wrapped, font, size, colorBody)
			l.y -= LineHeight
			l.breakIfNeeded()
		}
	}
}

func (l *layout) section(title string) {
	l.y -= 10
	l.draw(title, FontBold, headerSize, colorHeading)
	l.y -= LineHeight + 5
}

// wrap greedily fills lines with whole words while the measured width stays
// within UsableWidth. Words wider than a line on their own are split by rune.
func (l *layout) wrap(line string, font Font, size float64) []string {
	var lines []string
	current := ""
	for _, word := range strings.Fields(line) {
		for _, piece := range l.splitWord(word, font, size) {
			candidate := piece
			if current != "" {
				candidate = current + " " + piece
			}
			if current != "" && l.measure.TextWidth(candidate, font, size) > UsableWidth {
				lines = append(lines, current)
				current = piece
				continue
			}
			current = candidate
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func (l *layout) splitWord(word string, font Font, size float64) []string {
	if l.measure.TextWidth(word, font, size) <= UsableWidth {
		return []string{word}
	}
	var pieces []string
	current := ""
	for _, r := range word {
		next := current + string(r)
		if current != "" && l.measure.TextWidth(next, font, size) > UsableWidth {
			pieces = append(pieces, current)
			next = string(r)
		}
		current = next
	}
	return append(pieces, current)
}

// layoutRecord lays out every section of cv. The footer is attached by the caller.
func layoutRecord(m Measurer, cv types.StructuredCV) []Page {
	l := newLayout(m)

	l.draw(titleText, FontBold, titleSize, colorHeading)
	l.y -= titleSize + 10
	l.draw(watermark, FontRegular, detailSize, colorMuted)
	l.y -= 25

	if strings.TrimSpace(cv.Summary) != "" {
		l.section("CANDIDATE SUMMARY")
		l.paragraph(cv.Summary, FontRegular, bodySize)
		l.y -= 10
	}

	if len(cv.WorkExperience) > 0 {
		l.section("WORK EXPERIENCE")
		for _, job := range cv.WorkExperience {
			l.label(joinNonEmpty(" - ", job.JobTitle, job.Company), FontBold, bodySize, colorBody)
			l.y -= LineHeight
			if detail := joinNonEmpty(" | ", job.Location, joinNonEmpty(" - ", job.StartDate, job.EndDate)); detail != "" {
				l.label(detail, FontRegular, detailSize, colorDetail)
				l.y -= LineHeight + 3
			}
			if strings.TrimSpace(job.Description) != "" {
				l.paragraph(job.Description, FontRegular, bodySize)
			}
			l.y -= 8
		}
		l.y -= 5
	}

	if len(cv.Education) > 0 {
		l.section("EDUCATION")
		for _, edu := range cv.Education {
			l.label(joinNonEmpty(" in ", edu.Degree, edu.FieldOfStudy), FontBold, bodySize, colorBody)
			l.y -= LineHeight
			if detail := joinNonEmpty(" | ", edu.Institution, edu.GraduationYear); detail != "" {
				l.label(detail, FontRegular, detailSize, colorDetail)
			}
			l.y -= LineHeight + 8
		}
		l.y -= 5
	}

	if !cv.Skills.IsEmpty() {
		l.section("SKILLS")
		groups := []struct {
			label string
			items []string
			after float64
		}{
			{"Technical Skills:", cv.Skills.Technical, 5},
			{"Soft Skills:", cv.Skills.Soft, 5},
			{"Languages:", cv.Skills.Languages, 0},
		}
		for _, g := range groups {
			if len(g.items) == 0 {
				continue
			}
			l.draw(g.label, FontBold, bodySize, colorBody)
			l.y -= LineHeight
			l.paragraph(strings.Join(g.items, ", "), FontRegular, bodySize)
			l.y -= g.after
		}
		l.y -= 10
	}

	if len(cv.Projects) > 0 {
		l.section("PROJECTS")
		for _, project := range cv.Projects {
			l.label(project.Name, FontBold, bodySize, colorBody)
			l.y -= LineHeight
			if strings.TrimSpace(project.Description) != "" {
				l.paragraph(project.Description, FontRegular, bodySize)
			}
			l.y -= 8
		}
	}

	return l.pages
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
