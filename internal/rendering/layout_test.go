package rendering

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jonathan/cv-anonymizer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedMeasurer gives every rune a width of half the font size.
type fixedMeasurer struct{}

func (fixedMeasurer) TextWidth(text string, _ Font, size float64) float64 {
	return float64(utf8.RuneCountInString(text)) * size * 0.5
}

func fixedClock() time.Time {
	return time.Date(2026, 3, 4, 15, 4, 5, 0, time.UTC)
}

func newTestRenderer() *Renderer {
	return NewRenderer(fixedMeasurer{}).WithClock(fixedClock)
}

func bodyLines(pages []Page) []Line {
	var lines []Line
	for _, p := range pages {
		lines = append(lines, p.Lines...)
	}
	return lines
}

func texts(lines []Line) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Text)
	}
	return out
}

func TestLayout_HeaderAndFooter(t *testing.T) {
	pages, err := newTestRenderer().Layout(types.NewStructuredCV())
	require.NoError(t, err)
	require.Len(t, pages, 1)

	lines := pages[0].Lines
	require.Len(t, lines, 2)
	assert.Equal(t, "Anonymized CV", lines[0].Text)
	assert.Equal(t, FontBold, lines[0].Font)
	assert.InDelta(t, PageHeight-Margin, lines[0].Y, 0.001)
	assert.Equal(t, "Generated by CV Anonymizer", lines[1].Text)
	assert.InDelta(t, PageHeight-Margin-28, lines[1].Y, 0.001)

	require.NotNil(t, pages[0].Footer)
	assert.Equal(t, "Generated on 2026-03-04 at 15:04:05", pages[0].Footer.Text)
	assert.Equal(t, 30.0, pages[0].Footer.Y)
}

func TestLayout_SkipsEmptySections(t *testing.T) {
	cv := types.NewStructuredCV()
	cv.Skills.Soft = []string{"Communication"}

	pages, err := newTestRenderer().Layout(cv)
	require.NoError(t, err)

	got := texts(bodyLines(pages))
	assert.Contains(t, got, "SKILLS")
	assert.Contains(t, got, "Soft Skills:")
	assert.Contains(t, got, "Communication")
	for _, absent := range []string{"CANDIDATE SUMMARY", "WORK EXPERIENCE", "EDUCATION", "PROJECTS", "Technical Skills:", "Languages:"} {
		assert.NotContains(t, got, absent)
	}
}

func TestLayout_SectionOrderAndContent(t *testing.T) {
	cv := types.StructuredCV{
		Summary: "Seasoned engineer.",
		WorkExperience: []types.WorkExperience{{
			JobTitle: "Engineer", Company: "[CANDIDATE NAME] Ltd", Location: "[ADDRESS]",
			StartDate: "2019", EndDate: "Present", Description: "Built things\n\nShipped things",
		}},
		Education: []types.Education{{Degree: "BSc", FieldOfStudy: "Physics", Institution: "Uni", GraduationYear: "2015"}},
		Skills:    types.Skills{Technical: []string{"Go", "SQL"}, Soft: []string{}, Languages: []string{"English"}},
		Projects:  []types.Project{{Name: "Parser", Description: "A parser"}},
	}

	pages, err := newTestRenderer().Layout(cv)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Anonymized CV",
		"Generated by CV Anonymizer",
		"CANDIDATE SUMMARY",
		"Seasoned engineer.",
		"WORK EXPERIENCE",
		"Engineer - [CANDIDATE NAME] Ltd",
		"[ADDRESS] | 2019 - Present",
		"Built things",
		"Shipped things",
		"EDUCATION",
		"BSc in Physics",
		"Uni | 2015",
		"SKILLS",
		"Technical Skills:",
		"Go, SQL",
		"Languages:",
		"English",
		"PROJECTS",
		"Parser",
		"A parser",
	}, texts(bodyLines(pages)))
}

func TestLayout_BlankLineAdvancesOneLineHeight(t *testing.T) {
	cv := types.NewStructuredCV()
	cv.Summary = "first\n\nsecond"

	pages, err := newTestRenderer().Layout(cv)
	require.NoError(t, err)

	lines := bodyLines(pages)
	require.Len(t, lines, 5)
	assert.InDelta(t, 2*LineHeight, lines[3].Y-lines[4].Y, 0.001)
}

func TestLayout_LongSummaryPaginates(t *testing.T) {
	// 2000 four-letter words: 18 words fit in a line at size 11, giving 112 lines.
	summary := strings.TrimSpace(strings.Repeat("abcd ", 2000))
	require.Greater(t, len(summary), 3000)
	cv := types.NewStructuredCV()
	cv.Summary = summary

	pages, err := newTestRenderer().Layout(cv)
	require.NoError(t, err)

	paragraph := 0
	m := fixedMeasurer{}
	for _, l := range bodyLines(pages) {
		assert.GreaterOrEqual(t, l.Y, Margin, l.Text)
		assert.LessOrEqual(t, m.TextWidth(l.Text, l.Font, l.Size), UsableWidth, l.Text)
		if strings.HasPrefix(l.Text, "abcd") {
			paragraph++
		}
	}
	assert.Equal(t, 112, paragraph)
	assert.Greater(t, float64(paragraph), (PageHeight-2*Margin)/LineHeight)

	// Page 1 holds the header block and 47 lines, page 2 holds 52, page 3 the rest.
	require.Len(t, pages, 3)
	assert.Len(t, pages[0].Lines, 3+47)
	assert.Len(t, pages[1].Lines, 52)
	assert.Len(t, pages[2].Lines, 13)
	assert.Nil(t, pages[0].Footer)
	assert.Nil(t, pages[1].Footer)
	assert.NotNil(t, pages[2].Footer)
	assert.InDelta(t, PageHeight-Margin, pages[1].Lines[0].Y, 0.001)
}

func TestLayout_OverlongWordIsSplit(t *testing.T) {
	cv := types.NewStructuredCV()
	cv.Summary = "see " + strings.Repeat("x", 200)

	pages, err := newTestRenderer().Layout(cv)
	require.NoError(t, err)

	m := fixedMeasurer{}
	var joined strings.Builder
	for _, l := range bodyLines(pages)[3:] {
		assert.LessOrEqual(t, m.TextWidth(l.Text, l.Font, l.Size), UsableWidth)
		joined.WriteString(l.Text)
	}
	assert.Equal(t, "see"+strings.Repeat("x", 200), joined.String())
}

func TestLayout_SanitizesFields(t *testing.T) {
	cv := types.NewStructuredCV()
	cv.Projects = []types.Project{{Name: "Multi\nline\x07 name ✓", Description: "Café 😀"}}

	pages, err := newTestRenderer().Layout(cv)
	require.NoError(t, err)

	got := texts(bodyLines(pages))
	assert.Contains(t, got, "Multi line name ?")
	assert.Contains(t, got, "Café ?")
}

func TestLayout_PDFMeasurerKeepsLinesInsideMargins(t *testing.T) {
	cv := types.NewStructuredCV()
	cv.Summary = strings.Repeat("The candidate designed distributed systems for payments. ", 120)

	measurer := NewPDFMeasurer()
	pages, err := NewRenderer(measurer).WithClock(fixedClock).Layout(cv)
	require.NoError(t, err)
	assert.Greater(t, len(pages), 1)

	for _, l := range bodyLines(pages) {
		assert.GreaterOrEqual(t, l.Y, Margin)
		assert.LessOrEqual(t, measurer.TextWidth(l.Text, l.Font, l.Size), UsableWidth)
	}
}
