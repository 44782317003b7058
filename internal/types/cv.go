// Package types provides type definitions for structured data used throughout the cv-anonymizer system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "encoding/json"

// FallbackSummary is the summary of the record substituted when the AI payload cannot be used.
const FallbackSummary = "Unable to parse CV structure automatically. Please review the original content."

// StructuredCV is the normalized CV record extracted by AI analysis.
// Every leaf is a string or a list of strings; absent data is "" or an empty list.
type StructuredCV struct {
	Summary        string           `json:"summary"`
	WorkExperience []WorkExperience `json:"work_experience"`
	Education      []Education      `json:"education"`
	Skills         Skills           `json:"skills"`
	Projects       []Project        `json:"projects"`
}

// WorkExperience is one position held by the candidate
type WorkExperience struct {
	JobTitle    string `json:"job_title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Description string `json:"description"`
}

// Education is one degree or qualification
type Education struct {
	Degree         string `json:"degree"`
	FieldOfStudy   string `json:"field_of_study"`
	Institution    string `json:"institution"`
	GraduationYear string `json:"graduation_year"`
}

// Skills groups the candidate's skills by kind
type Skills struct {
	Technical []string `json:"technical"`
	Soft      []string `json:"soft"`
	Languages []string `json:"languages"`
}

// Project is a personal or professional project
type Project struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewStructuredCV returns an empty, well-formed record with non-nil lists.
func NewStructuredCV() StructuredCV {
	return StructuredCV{
		WorkExperience: []WorkExperience{},
		Education:      []Education{},
		Skills:         Skills{Technical: []string{}, Soft: []string{}, Languages: []string{}},
		Projects:       []Project{},
	}
}

// FallbackCV returns the record used when the AI response is unusable.
func FallbackCV() StructuredCV {
	cv := NewStructuredCV()
	cv.Summary = FallbackSummary
	return cv
}

// IsEmpty reports whether the skills block has no entries at all
func (s Skills) IsEmpty() bool {
	return len(s.Technical) == 0 && len(s.Soft) == 0 && len(s.Languages) == 0
}

// Normalize replaces nil lists with empty ones so the record encodes
// without nulls.
func (cv *StructuredCV) Normalize() {
	if cv.WorkExperience == nil {
		cv.WorkExperience = []WorkExperience{}
	}
	if cv.Education == nil {
		cv.Education = []Education{}
	}
	if cv.Projects == nil {
		cv.Projects = []Project{}
	}
	if cv.Skills.Technical == nil {
		cv.Skills.Technical = []string{}
	}
	if cv.Skills.Soft == nil {
		cv.Skills.Soft = []string{}
	}
	if cv.Skills.Languages == nil {
		cv.Skills.Languages = []string{}
	}
}

// Clone returns a deep copy of the record.
func (cv StructuredCV) Clone() StructuredCV {
	out := StructuredCV{
		Summary:        cv.Summary,
		WorkExperience: append([]WorkExperience{}, cv.WorkExperience...),
		Education:      append([]Education{}, cv.Education...),
		Skills: Skills{
			Technical: append([]string{}, cv.Skills.Technical...),
			Soft:      append([]string{}, cv.Skills.Soft...),
			Languages: append([]string{}, cv.Skills.Languages...),
		},
		Projects: append([]Project{}, cv.Projects...),
	}
	return out
}

// UnmarshalJSON decodes a record leniently: unknown shapes are coerced
// to strings or lists instead of failing the whole document.
func (cv *StructuredCV) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*cv = structuredCVFromMap(raw)
	return nil
}

// UnmarshalJSON decodes a work experience entry leniently
func (w *WorkExperience) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*w = workExperienceFromMap(raw)
	return nil
}

// UnmarshalJSON decodes an education entry leniently
func (e *Education) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = educationFromMap(raw)
	return nil
}

// UnmarshalJSON decodes a skills block leniently
func (s *Skills) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = skillsFromMap(raw)
	return nil
}

// UnmarshalJSON decodes a project entry leniently
func (p *Project) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = projectFromMap(raw)
	return nil
}

func structuredCVFromMap(m map[string]any) StructuredCV {
	skills, _ := m["skills"].(map[string]any)
	return StructuredCV{
		Summary:        CoerceString(m["summary"]),
		WorkExperience: mapObjects(m["work_experience"], workExperienceFromMap),
		Education:      mapObjects(m["education"], educationFromMap),
		Skills:         skillsFromMap(skills),
		Projects:       mapObjects(m["projects"], projectFromMap),
	}
}

func workExperienceFromMap(m map[string]any) WorkExperience {
	return WorkExperience{
		JobTitle:    CoerceString(m["job_title"]),
		Company:     CoerceString(m["company"]),
		Location:    CoerceString(m["location"]),
		StartDate:   CoerceString(m["start_date"]),
		EndDate:     CoerceString(m["end_date"]),
		Description: CoerceString(m["description"]),
	}
}

func educationFromMap(m map[string]any) Education {
	return Education{
		Degree:         CoerceString(m["degree"]),
		FieldOfStudy:   CoerceString(m["field_of_study"]),
		Institution:    CoerceString(m["institution"]),
		GraduationYear: CoerceString(m["graduation_year"]),
	}
}

func skillsFromMap(m map[string]any) Skills {
	return Skills{
		Technical: CoerceStrings(m["technical"]),
		Soft:      CoerceStrings(m["soft"]),
		Languages: CoerceStrings(m["languages"]),
	}
}

func projectFromMap(m map[string]any) Project {
	return Project{
		Name:        CoerceString(m["name"]),
		Description: CoerceString(m["description"]),
	}
}

// mapObjects converts a decoded JSON array into typed entries. Entries that
// are not objects still produce an (empty) entry so list lengths survive.
func mapObjects[T any](v any, fn func(map[string]any) T) []T {
	items, _ := v.([]any)
	out := make([]T, 0, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]any)
		out = append(out, fn(obj))
	}
	return out
}
