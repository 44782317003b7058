// Package schemas validates AI payloads, CV records and policy files against embedded JSON Schemas.
package schemas

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Name identifies one of the embedded schemas
type Name string

const (
	// AnalysisPayload is the minimal shape of an AI analysis response
	AnalysisPayload Name = "analysis"
	// Record is the structured CV record
	Record Name = "record"
	// Policies is a list of redaction policies
	Policies Name = "policies"
)

//go:embed *.schema.json
var schemaFiles embed.FS

// ValidationError represents a schema validation error with field paths
type ValidationError struct {
	Schema Name
	Errors []FieldError
}

// FieldError represents a single validation error at a specific field
type FieldError struct {
	Field   string
	Message string
}

// SchemaLoadError represents errors loading or parsing the schema itself
type SchemaLoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *SchemaLoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to load schema %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("failed to load schema %s: %s", e.Path, e.Message)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	if ve.Schema != "" {
		fmt.Fprintf(&sb, "%s validation failed:\n", ve.Schema)
	} else {
		sb.WriteString("validation failed:\n")
	}
	for i, err := range ve.Errors {
		fmt.Fprintf(&sb, "  %d. %s: %s\n", i+1, err.Field, err.Message)
	}
	return sb.String()
}

// Load returns the raw content of an embedded schema.
func Load(name Name) (string, error) {
	path := string(name) + ".schema.json"
	data, err := schemaFiles.ReadFile(path)
	if err != nil {
		return "", &SchemaLoadError{Path: path, Message: "unknown schema", Cause: err}
	}
	return string(data), nil
}

// Validate checks a JSON document against the named embedded schema.
// A document that is not JSON at all is reported as a ValidationError on the root.
func Validate(name Name, document []byte) error {
	schema, err := Load(name)
	if err != nil {
		return err
	}
	if !json.Valid(document) {
		return &ValidationError{
			Schema: name,
			Errors: []FieldError{{Field: "(root)", Message: "document is not valid JSON"}},
		}
	}
	err = ValidateJSONString(schema, string(document))
	var verr *ValidationError
	if errors.As(err, &verr) {
		verr.Schema = name
	}
	return err
}

// ValidateAnalysisPayload checks that an AI response carries both the
// structured record and the personal-info findings as objects.
func ValidateAnalysisPayload(document []byte) error {
	return Validate(AnalysisPayload, document)
}

// ValidateRecord checks a serialized StructuredCV.
func ValidateRecord(document []byte) error {
	return Validate(Record, document)
}

// ValidateFile reads path and validates it against the named schema.
func ValidateFile(name Name, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("JSON file not found: %s", path)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Validate(name, data)
}

// ValidateJSONString validates JSON string content against schema string content
func ValidateJSONString(schemaContent, jsonContent string) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaContent)
	documentLoader := gojsonschema.NewStringLoader(jsonContent)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &SchemaLoadError{
			Path:    "(string schema)",
			Message: "schema validation failed during load",
			Cause:   err,
		}
	}

	if result.Valid() {
		return nil
	}

	validationErr := &ValidationError{
		Errors: make([]FieldError, 0, len(result.Errors())),
	}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		validationErr.Errors = append(validationErr.Errors, FieldError{
			Field:   field,
			Message: desc.Description(),
		})
	}

	return validationErr
}
