package types

import (
	"encoding/json"
	"fmt"
)

// Category identifies a kind of personal information detected in a CV
type Category string

// Category constants, declared in redaction order
const (
	CategoryNames    Category = "names"
	CategoryEmail    Category = "email"
	CategoryPhone    Category = "phone"
	CategoryAddress  Category = "address"
	CategoryDates    Category = "dates"
	CategoryLinkedIn Category = "linkedin"
)

var categoryOrder = [...]Category{
	CategoryNames,
	CategoryEmail,
	CategoryPhone,
	CategoryAddress,
	CategoryDates,
	CategoryLinkedIn,
}

// Categories returns every category in the fixed redaction order.
func Categories() []Category {
	order := categoryOrder
	return order[:]
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	for _, known := range categoryOrder {
		if c == known {
			return true
		}
	}
	return false
}

// Description returns the default human-readable description for the category.
func (c Category) Description() string {
	switch c {
	case CategoryNames:
		return "Personal names found in the CV"
	case CategoryEmail:
		return "Email addresses found in the CV"
	case CategoryPhone:
		return "Phone numbers found in the CV"
	case CategoryAddress:
		return "Physical addresses found in the CV"
	case CategoryDates:
		return "Birth dates or personal dates found in the CV"
	case CategoryLinkedIn:
		return "Social media profiles and URLs found in the CV"
	default:
		return ""
	}
}

// Findings holds the literal items detected for one category, in detection order.
type Findings struct {
	Found       []string `json:"found"`
	Description string   `json:"description"`
}

// UnmarshalJSON decodes findings leniently
func (f *Findings) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = findingsFromValue(raw)
	return nil
}

// findingsFromValue accepts the {found, description} object as well as a
// bare list or string of items.
func findingsFromValue(v any) Findings {
	if obj, ok := v.(map[string]any); ok {
		return Findings{
			Found:       CoerceStrings(obj["found"]),
			Description: CoerceString(obj["description"]),
		}
	}
	return Findings{Found: CoerceStrings(v)}
}

// PersonalInfo holds the findings of every category. Each category has its
// own field so a new category cannot be added without touching every switch.
type PersonalInfo struct {
	Names    Findings `json:"names"`
	Email    Findings `json:"email"`
	Phone    Findings `json:"phone"`
	Address  Findings `json:"address"`
	Dates    Findings `json:"dates"`
	LinkedIn Findings `json:"linkedin"`
}

// UnmarshalJSON decodes every known category leniently and fills defaults
// for the ones that are missing. Unknown keys are ignored.
func (p *PersonalInfo) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var info PersonalInfo
	for _, c := range Categories() {
		info.Set(c, findingsFromValue(raw[string(c)]))
	}
	info.Normalize()
	*p = info
	return nil
}

// EmptyPersonalInfo returns findings with no items and the default descriptions.
func EmptyPersonalInfo() PersonalInfo {
	var info PersonalInfo
	for _, c := range Categories() {
		info.Set(c, Findings{Found: []string{}, Description: c.Description()})
	}
	return info
}

// Get returns the findings for a category. Unknown categories yield empty findings.
func (p PersonalInfo) Get(c Category) Findings {
	switch c {
	case CategoryNames:
		return p.Names
	case CategoryEmail:
		return p.Email
	case CategoryPhone:
		return p.Phone
	case CategoryAddress:
		return p.Address
	case CategoryDates:
		return p.Dates
	case CategoryLinkedIn:
		return p.LinkedIn
	default:
		return Findings{}
	}
}

// Set replaces the findings for a category.
func (p *PersonalInfo) Set(c Category, f Findings) {
	switch c {
	case CategoryNames:
		p.Names = f
	case CategoryEmail:
		p.Email = f
	case CategoryPhone:
		p.Phone = f
	case CategoryAddress:
		p.Address = f
	case CategoryDates:
		p.Dates = f
	case CategoryLinkedIn:
		p.LinkedIn = f
	default:
		panic(fmt.Sprintf("types: unknown category %q", c))
	}
}

// Normalize fills missing descriptions and replaces nil lists so the value
// encodes with every category present.
func (p *PersonalInfo) Normalize() {
	for _, c := range Categories() {
		f := p.Get(c)
		if f.Found == nil {
			f.Found = []string{}
		}
		if f.Description == "" {
			f.Description = c.Description()
		}
		p.Set(c, f)
	}
}

// Clone returns a copy that shares no slices with p.
func (p PersonalInfo) Clone() PersonalInfo {
	var out PersonalInfo
	for _, c := range Categories() {
		f := p.Get(c)
		if f.Found != nil {
			f.Found = append([]string{}, f.Found...)
		}
		out.Set(c, f)
	}
	return out
}

// Total returns the number of detected items across all categories
func (p PersonalInfo) Total() int {
	n := 0
	for _, c := range Categories() {
		n += len(p.Get(c).Found)
	}
	return n
}
