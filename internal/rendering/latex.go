package rendering

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/jonathan/cv-anonymizer/internal/types"
)

//go:embed templates/cv.tex.tmpl
var templateFiles embed.FS

const defaultTemplate = "templates/cv.tex.tmpl"

// RenderLaTeX renders cv as a LaTeX article. An empty templatePath uses the
// built-in template. Templates use << >> delimiters so LaTeX braces stay untouched.
func RenderLaTeX(cv types.StructuredCV, templatePath string) (string, error) {
	tmpl, err := parseTemplate(templatePath)
	if err != nil {
		return "", err
	}

	var result strings.Builder
	if err := tmpl.Execute(&result, cv); err != nil {
		return "", &TemplateError{
			Message: "failed to execute template",
			Cause:   err,
		}
	}

	return result.String(), nil
}

func parseTemplate(templatePath string) (*template.Template, error) {
	var content []byte
	var err error
	if templatePath == "" {
		content, err = templateFiles.ReadFile(defaultTemplate)
	} else {
		content, err = os.ReadFile(templatePath)
	}
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &TemplateError{
				Message: fmt.Sprintf("template file not found: %s", templatePath),
				Cause:   err,
			}
		}
		return nil, &TemplateError{
			Message: fmt.Sprintf("failed to read template file: %s", templatePath),
			Cause:   err,
		}
	}

	tmpl, err := template.New("cv").Delims("<<", ">>").Funcs(template.FuncMap{
		"escape": EscapeLaTeX,
		"join":   joinNonEmpty,
		"list":   func(items []string) string { return strings.Join(items, ", ") },
		"lines":  descriptionLines,
	}).Parse(string(content))
	if err != nil {
		return nil, &TemplateError{
			Message: "failed to parse template",
			Cause:   err,
		}
	}

	return tmpl, nil
}

// descriptionLines splits a description into non-blank lines for an itemize list.
func descriptionLines(text string) []string {
	var out []string
	for _, line := range splitLines(text) {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
