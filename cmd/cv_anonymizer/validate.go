package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-anonymizer/internal/schemas"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate record and policy files against the embedded schemas",
	RunE:  runValidate,
}

var (
	validateRecordFile   string
	validatePoliciesFile string
)

func init() {
	validateCmd.Flags().StringVarP(&validateRecordFile, "record", "r", "", "Path to structured record JSON file")
	validateCmd.Flags().StringVarP(&validatePoliciesFile, "policies", "p", "", "Path to policies JSON file")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	if validateRecordFile == "" && validatePoliciesFile == "" {
		return fmt.Errorf("nothing to validate: pass --record and/or --policies")
	}

	checks := []struct {
		path   string
		schema schemas.Name
	}{
		{validateRecordFile, schemas.Record},
		{validatePoliciesFile, schemas.Policies},
	}

	failed := 0
	for _, check := range checks {
		if check.path == "" {
			continue
		}
		err := schemas.ValidateFile(check.schema, check.path)
		if err == nil {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: valid %s\n", check.path, check.schema)
			continue
		}

		failed++
		var validationErr *schemas.ValidationError
		if !errors.As(err, &validationErr) {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✗ %s:\n", check.path)
		for _, fe := range validationErr.Errors {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  - %s: %s\n", fe.Field, fe.Message)
		}
	}

	if failed > 0 {
		return fmt.Errorf("validation failed for %d file(s)", failed)
	}
	return nil
}
