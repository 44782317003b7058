// Package steps defines the stages of the anonymization pipeline, their
// order, their dependencies and the progress each one represents.
package steps

import (
	"fmt"
)

// ID identifies a pipeline stage
type ID string

// Stage identifiers, in execution order
const (
	Upload        ID = "upload"
	OCR           ID = "ocr"
	Analysis      ID = "gemini-analysis"
	Anonymization ID = "anonymization"
	Generation    ID = "generation"
)

// Status is the lifecycle state of a stage
type Status string

// Stage statuses
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Definition describes one stage
type Definition struct {
	ID           ID
	Description  string
	Dependencies []ID
	// Progress is the overall percentage reached once the stage completes.
	Progress int
}

var registry = []Definition{
	{ID: Upload, Description: "Upload your CV file", Progress: 20},
	{ID: OCR, Description: "Extract text using OCR", Dependencies: []ID{Upload}, Progress: 40},
	{ID: Analysis, Description: "Structure CV data and identify personal information", Dependencies: []ID{OCR}, Progress: 70},
	{ID: Anonymization, Description: "Configure anonymization settings", Dependencies: []ID{Analysis}, Progress: 90},
	{ID: Generation, Description: "Create anonymized CV", Dependencies: []ID{Anonymization}, Progress: 100},
}

// Definitions returns every stage definition in execution order.
func Definitions() []Definition {
	out := make([]Definition, len(registry))
	copy(out, registry)
	return out
}

// Order returns the stage ids in execution order.
func Order() []ID {
	ids := make([]ID, 0, len(registry))
	for _, def := range registry {
		ids = append(ids, def.ID)
	}
	return ids
}

// Lookup returns the definition of a stage
func Lookup(id ID) (Definition, bool) {
	for _, def := range registry {
		if def.ID == id {
			return def, true
		}
	}
	return Definition{}, false
}

// Valid reports whether the status is one of the four known states
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusError:
		return true
	}
	return false
}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Step                ID
	MissingDependencies []ID
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("step %s: missing dependencies: %v", e.Step, e.MissingDependencies)
}

// ValidateDependencies checks that every dependency of step is completed
// according to statuses.
func ValidateDependencies(statuses map[ID]Status, step ID) error {
	def, ok := Lookup(step)
	if !ok {
		return fmt.Errorf("unknown step: %s", step)
	}

	var missing []ID
	for _, dep := range def.Dependencies {
		if statuses[dep] != StatusCompleted {
			missing = append(missing, dep)
		}
	}

	if len(missing) > 0 {
		return &DependencyError{Step: step, MissingDependencies: missing}
	}
	return nil
}

// Available returns the stages, in order, that are neither completed nor
// processing and whose dependencies are met.
func Available(statuses map[ID]Status) []ID {
	var available []ID
	for _, def := range registry {
		switch statuses[def.ID] {
		case StatusCompleted, StatusProcessing:
			continue
		}
		if ValidateDependencies(statuses, def.ID) == nil {
			available = append(available, def.ID)
		}
	}
	return available
}

// Progress returns the overall percentage for the given statuses: the
// progress of the last completed stage in execution order.
func Progress(statuses map[ID]Status) int {
	progress := 0
	for _, def := range registry {
		if statuses[def.ID] == StatusCompleted {
			progress = def.Progress
		}
	}
	return progress
}
