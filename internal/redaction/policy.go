package redaction

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/cv-anonymizer/internal/types"
)

// Method is the substitution strategy of a policy
type Method string

// Method constants
const (
	// MethodRemove replaces matches with [REDACTED]
	MethodRemove Method = "remove"
	// MethodReplace replaces matches with a category label
	MethodReplace Method = "replace"
	// MethodHash replaces matches with a short base64 placeholder
	MethodHash Method = "hash"
)

// Policy configures redaction for one category of personal information.
type Policy struct {
	Category types.Category `json:"id" validate:"required,oneof=names email phone address dates linkedin"`
	Enabled  bool           `json:"enabled"`
	Method   Method         `json:"method" validate:"required,oneof=remove replace hash"`
}

// PolicySet is the collection of policies in effect for a document.
type PolicySet []Policy

var validate = validator.New()

// Validate checks that every policy names a known category and method.
func (ps PolicySet) Validate() error {
	seen := make(map[types.Category]bool, len(ps))
	for i, p := range ps {
		if err := validate.Struct(p); err != nil {
			return fmt.Errorf("policy %d: %w", i, err)
		}
		if seen[p.Category] {
			return fmt.Errorf("policy %d: duplicate category %q", i, p.Category)
		}
		seen[p.Category] = true
	}
	return nil
}

// Lookup returns the first policy for a category.
func (ps PolicySet) Lookup(c types.Category) (Policy, bool) {
	for _, p := range ps {
		if p.Category == c {
			return p, true
		}
	}
	return Policy{}, false
}

// DefaultPolicies returns the policies offered before the user changes anything.
func DefaultPolicies() PolicySet {
	return PolicySet{
		{Category: types.CategoryNames, Enabled: true, Method: MethodReplace},
		{Category: types.CategoryEmail, Enabled: true, Method: MethodReplace},
		{Category: types.CategoryPhone, Enabled: true, Method: MethodReplace},
		{Category: types.CategoryAddress, Enabled: true, Method: MethodRemove},
		{Category: types.CategoryDates, Enabled: false, Method: MethodRemove},
		{Category: types.CategoryLinkedIn, Enabled: true, Method: MethodReplace},
	}
}

// Reconcile returns one policy per category in redaction order. Categories
// missing from ps take their default; categories with nothing found are disabled.
func Reconcile(ps PolicySet, info types.PersonalInfo) PolicySet {
	defaults := DefaultPolicies()
	out := make(PolicySet, 0, len(types.Categories()))
	for _, c := range types.Categories() {
		p, ok := ps.Lookup(c)
		if !ok {
			p, _ = defaults.Lookup(c)
		}
		if len(info.Get(c).Found) == 0 {
			p.Enabled = false
		}
		out = append(out, p)
	}
	return out
}

// Label returns the replacement label used by MethodReplace for a category.
func Label(c types.Category) string {
	switch c {
	case types.CategoryNames:
		return "[CANDIDATE NAME]"
	case types.CategoryEmail:
		return "[EMAIL ADDRESS]"
	case types.CategoryPhone:
		return "[PHONE NUMBER]"
	case types.CategoryAddress:
		return "[ADDRESS]"
	case types.CategoryDates:
		return "[DATE]"
	case types.CategoryLinkedIn:
		return "[SOCIAL PROFILE]"
	default:
		return RedactedMarker
	}
}
