// Package observability provides formatted output utilities for verbose CLI mode.
// Nothing printed here contains detected personal information: findings
// are shown as counts only.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/cv-anonymizer/internal/pipeline"
	"github.com/jonathan/cv-anonymizer/internal/redaction"
	"github.com/jonathan/cv-anonymizer/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, truncate(line, boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-3]) + "..."
}

// PrintSteps outputs the status of every pipeline stage and the overall progress.
func (p *Printer) PrintSteps(state pipeline.State) {
	var sb strings.Builder
	for _, st := range state.Steps {
		fmt.Fprintf(&sb, "%s %-16s %s\n", statusMark(string(st.Status)), st.ID, st.Status)
	}
	fmt.Fprintf(&sb, "\nProgress: %d%%", state.Progress)
	if state.Warning != "" {
		fmt.Fprintf(&sb, "\nWarning:  %s", state.Warning)
	}
	if state.Error != "" {
		fmt.Fprintf(&sb, "\nError:    %s", state.Error)
	}
	p.printBox("PIPELINE "+state.ID, sb.String())
}

func statusMark(status string) string {
	switch status {
	case "completed":
		return "✓"
	case "processing":
		return "…"
	case "error":
		return "✗"
	default:
		return "·"
	}
}

// PrintFindings outputs how many items of each category were detected.
func (p *Printer) PrintFindings(info types.PersonalInfo) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Total items detected: %d\n\n", info.Total())
	for _, c := range types.Categories() {
		fmt.Fprintf(&sb, "%-10s %d\n", c, len(info.Get(c).Found))
	}
	p.printBox("PERSONAL INFORMATION FOUND", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintPolicies outputs the redaction policy of every category.
func (p *Printer) PrintPolicies(policies redaction.PolicySet) {
	if len(policies) == 0 {
		return
	}
	var sb strings.Builder
	for _, policy := range policies {
		state := "off"
		if policy.Enabled {
			state = "on"
		}
		fmt.Fprintf(&sb, "%-10s %-3s %-8s → %s\n", policy.Category, state, policy.Method, redaction.Label(policy.Category))
	}
	p.printBox("ANONYMIZATION POLICIES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRecord outputs a summary of an anonymized record.
func (p *Printer) PrintRecord(cv types.StructuredCV) {
	var sb strings.Builder

	if summary := strings.TrimSpace(cv.Summary); summary != "" {
		fmt.Fprintf(&sb, "Summary: %s\n\n", summary)
	}

	if len(cv.WorkExperience) > 0 {
		sb.WriteString("Work Experience:\n")
		count := min(len(cv.WorkExperience), maxItemsToShow)
		for i := 0; i < count; i++ {
			job := cv.WorkExperience[i]
			fmt.Fprintf(&sb, "  • %s", job.JobTitle)
			if job.Company != "" {
				fmt.Fprintf(&sb, " - %s", job.Company)
			}
			sb.WriteString("\n")
		}
		if len(cv.WorkExperience) > maxItemsToShow {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(cv.WorkExperience)-maxItemsToShow)
		}
		sb.WriteString("\n")
	}

	if len(cv.Education) > 0 {
		fmt.Fprintf(&sb, "Education: %d entries\n", len(cv.Education))
	}
	if !cv.Skills.IsEmpty() {
		fmt.Fprintf(&sb, "Skills: %d technical, %d soft, %d languages\n",
			len(cv.Skills.Technical), len(cv.Skills.Soft), len(cv.Skills.Languages))
	}
	if len(cv.Projects) > 0 {
		fmt.Fprintf(&sb, "Projects: %d\n", len(cv.Projects))
	}

	content := strings.TrimSuffix(sb.String(), "\n")
	if content == "" {
		content = "(empty record)"
	}
	p.printBox("ANONYMIZED RECORD", content)
}
