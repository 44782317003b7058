package rendering

import (
	"strings"

	"github.com/jonathan/cv-anonymizer/internal/types"
)

// RenderText renders cv as a plain-text document with underlined section headings.
func RenderText(cv types.StructuredCV) string {
	var sb strings.Builder

	heading(&sb, "ANONYMIZED CV", '=')

	if summary := strings.TrimSpace(cv.Summary); summary != "" {
		heading(&sb, "CANDIDATE SUMMARY", '-')
		sb.WriteString(summary)
		sb.WriteString("\n\n")
	}

	if len(cv.WorkExperience) > 0 {
		heading(&sb, "WORK EXPERIENCE", '-')
		for _, job := range cv.WorkExperience {
			writeLine(&sb, joinNonEmpty(" - ", job.JobTitle, job.Company))
			writeLine(&sb, joinNonEmpty(" | ", job.Location, joinNonEmpty(" - ", job.StartDate, job.EndDate)))
			writeLine(&sb, strings.TrimSpace(job.Description))
			sb.WriteString("\n")
		}
	}

	if len(cv.Education) > 0 {
		heading(&sb, "EDUCATION", '-')
		for _, edu := range cv.Education {
			writeLine(&sb, joinNonEmpty(" in ", edu.Degree, edu.FieldOfStudy))
			writeLine(&sb, joinNonEmpty(" | ", edu.Institution, edu.GraduationYear))
			sb.WriteString("\n")
		}
	}

	if !cv.Skills.IsEmpty() {
		heading(&sb, "SKILLS", '-')
		if len(cv.Skills.Technical) > 0 {
			writeLine(&sb, "Technical Skills: "+strings.Join(cv.Skills.Technical, ", "))
		}
		if len(cv.Skills.Soft) > 0 {
			writeLine(&sb, "Soft Skills: "+strings.Join(cv.Skills.Soft, ", "))
		}
		if len(cv.Skills.Languages) > 0 {
			writeLine(&sb, "Languages: "+strings.Join(cv.Skills.Languages, ", "))
		}
		sb.WriteString("\n")
	}

	if len(cv.Projects) > 0 {
		heading(&sb, "PROJECTS", '-')
		for _, project := range cv.Projects {
			writeLine(&sb, project.Name)
			writeLine(&sb, strings.TrimSpace(project.Description))
			sb.WriteString("\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n") + "\n"
}

func heading(sb *strings.Builder, title string, underline rune) {
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat(string(underline), len(title)))
	sb.WriteString("\n\n")
}

func writeLine(sb *strings.Builder, text string) {
	if text == "" {
		return
	}
	sb.WriteString(text)
	sb.WriteString("\n")
}
