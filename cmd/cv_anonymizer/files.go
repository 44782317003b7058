package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonathan/cv-anonymizer/internal/pipeline"
	"github.com/jonathan/cv-anonymizer/internal/redaction"
	"github.com/jonathan/cv-anonymizer/internal/schemas"
	"github.com/jonathan/cv-anonymizer/internal/types"
)

// readDocument loads a CV from disk. The content type comes from the
// extension, falling back to sniffing.
func readDocument(path string) (pipeline.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Document{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	contentType := http.DetectContentType(data)
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		contentType = "application/pdf"
	}
	return pipeline.Document{Name: filepath.Base(path), ContentType: contentType, Data: data}, nil
}

// loadPolicies reads a policy file checked against the embedded schema
func loadPolicies(path string) (redaction.PolicySet, error) {
	data, err := readJSONFile(path, schemas.Policies)
	if err != nil {
		return nil, err
	}
	var policies redaction.PolicySet
	if err := json.Unmarshal(data, &policies); err != nil {
		return nil, fmt.Errorf("failed to unmarshal policies JSON: %w", err)
	}
	if err := policies.Validate(); err != nil {
		return nil, err
	}
	return policies, nil
}

// loadRecord reads a structured record checked against the embedded schema
func loadRecord(path string) (types.StructuredCV, error) {
	data, err := readJSONFile(path, schemas.Record)
	if err != nil {
		return types.StructuredCV{}, err
	}
	var record types.StructuredCV
	if err := json.Unmarshal(data, &record); err != nil {
		return types.StructuredCV{}, fmt.Errorf("failed to unmarshal record JSON: %w", err)
	}
	record.Normalize()
	return record, nil
}

// loadFindings reads personal-information findings. Both a bare findings
// object and a full analysis result are accepted.
func loadFindings(path string) (types.PersonalInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.PersonalInfo{}, fmt.Errorf("failed to read findings file: %w", err)
	}

	var wrapped struct {
		PersonalInfo *types.PersonalInfo `json:"personal_info"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.PersonalInfo != nil {
		return *wrapped.PersonalInfo, nil
	}

	var info types.PersonalInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return types.PersonalInfo{}, fmt.Errorf("failed to unmarshal findings JSON: %w", err)
	}
	return info, nil
}

func readJSONFile(path string, schema schemas.Name) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := schemas.Validate(schema, data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return data, nil
}

// writeOutput writes data to path, creating its directory, or to stdout when path is empty.
func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
