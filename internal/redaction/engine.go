package redaction

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/jonathan/cv-anonymizer/internal/types"
)

// RedactedMarker replaces matches under MethodRemove
const RedactedMarker = "[REDACTED]"

// hashLength is the number of base64 characters kept by MethodHash
const hashLength = 8

type matcher struct {
	re          *regexp.Regexp
	replacement string
}

// Engine applies a fixed set of policies to text. It is immutable after
// construction and safe for concurrent use.
type Engine struct {
	matchers []matcher
}

// NewEngine compiles one case-insensitive literal matcher per detected item of
// every enabled category, in redaction order.
func NewEngine(policies PolicySet, info types.PersonalInfo) *Engine {
	e := &Engine{}
	for _, c := range types.Categories() {
		p, ok := policies.Lookup(c)
		if !ok || !p.Enabled {
			continue
		}
		for _, item := range info.Get(c).Found {
			if item == "" {
				continue
			}
			re, err := regexp.Compile("(?i)" + EscapePattern(item))
			if err != nil {
				continue
			}
			e.matchers = append(e.matchers, matcher{re: re, replacement: replacement(p.Method, c, item)})
		}
	}
	return e
}

// Apply replaces every occurrence of every detected item. Matchers run on the
// evolving text, so when spans of two categories overlap the earlier category wins.
func (e *Engine) Apply(text string) string {
	if text == "" {
		return ""
	}
	for _, m := range e.matchers {
		text = m.re.ReplaceAllLiteralString(text, m.replacement)
	}
	return text
}

// ApplyValue applies the engine to a string; other values are only coerced.
func (e *Engine) ApplyValue(v any) string {
	s, ok := v.(string)
	if !ok {
		return types.CoerceString(v)
	}
	return e.Apply(s)
}

// AnonymizeRecord returns a new record with every string field redacted.
// The input is not modified.
func (e *Engine) AnonymizeRecord(cv types.StructuredCV) types.StructuredCV {
	out := cv.Clone()
	out.Summary = e.Apply(out.Summary)

	for i := range out.WorkExperience {
		w := &out.WorkExperience[i]
		w.JobTitle = e.Apply(w.JobTitle)
		w.Company = e.Apply(w.Company)
		w.Location = e.Apply(w.Location)
		w.StartDate = e.Apply(w.StartDate)
		w.EndDate = e.Apply(w.EndDate)
		w.Description = e.Apply(w.Description)
	}

	for i := range out.Education {
		ed := &out.Education[i]
		ed.Degree = e.Apply(ed.Degree)
		ed.FieldOfStudy = e.Apply(ed.FieldOfStudy)
		ed.Institution = e.Apply(ed.Institution)
		ed.GraduationYear = e.Apply(ed.GraduationYear)
	}

	e.applyAll(out.Skills.Technical)
	e.applyAll(out.Skills.Soft)
	e.applyAll(out.Skills.Languages)

	for i := range out.Projects {
		out.Projects[i].Name = e.Apply(out.Projects[i].Name)
		out.Projects[i].Description = e.Apply(out.Projects[i].Description)
	}

	return out
}

func (e *Engine) applyAll(items []string) {
	for i := range items {
		items[i] = e.Apply(items[i])
	}
}

// Apply redacts a single text with the given policies and findings.
func Apply(text string, policies PolicySet, info types.PersonalInfo) string {
	return NewEngine(policies, info).Apply(text)
}

// AnonymizeRecord redacts every string field of cv with the given policies and findings.
func AnonymizeRecord(cv types.StructuredCV, policies PolicySet, info types.PersonalInfo) types.StructuredCV {
	return NewEngine(policies, info).AnonymizeRecord(cv)
}

// HashPlaceholder builds the MethodHash replacement for an item. The value is
// a truncated base64 encoding: it obfuscates for display and is trivially reversible.
func HashPlaceholder(item string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(item))
	if len(encoded) > hashLength {
		encoded = encoded[:hashLength]
	}
	return "[HASH:" + encoded + "]"
}

func replacement(method Method, c types.Category, item string) string {
	switch method {
	case MethodReplace:
		return Label(c)
	case MethodHash:
		return HashPlaceholder(item)
	default:
		return RedactedMarker
	}
}

// ParseList splits comma-separated user input into trimmed, non-empty entries.
func ParseList(input string) []string {
	out := []string{}
	for _, part := range strings.Split(input, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
