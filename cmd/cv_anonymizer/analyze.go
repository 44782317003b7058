package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-anonymizer/internal/observability"
	"github.com/jonathan/cv-anonymizer/internal/pipeline"
	"github.com/jonathan/cv-anonymizer/internal/schemas"
	"github.com/jonathan/cv-anonymizer/internal/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze FILE",
	Short: "Extract and analyze a CV without anonymizing it",
	Long:  "Runs text extraction and Gemini analysis on a PDF CV and writes the structured record and personal-information findings as JSON.",
	Args:  cobra.ExactArgs(1),
	RunE:  runAnalyze,
}

var analyzeOutput string

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "out", "o", "", "Path to output JSON file (default: stdout)")
	rootCmd.AddCommand(analyzeCmd)
}

// analyzeOutputDoc is what analyze writes
type analyzeOutputDoc struct {
	types.AnalysisResult
	Warning string `json:"warning,omitempty"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	doc, err := readDocument(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	var onProgress pipeline.ProgressCallback
	if verbose {
		onProgress = func(e pipeline.ProgressEvent) {
			fmt.Fprintf(cmd.ErrOrStderr(), "[%3d%%] %s: %s\n", e.Progress, e.Step, e.Status)
		}
	}
	controller, cleanup, err := controllerFactory(ctx, cfg, onProgress)
	if err != nil {
		return err
	}
	defer cleanup()

	session := pipeline.NewSession()
	if err := controller.Process(ctx, session, doc, nil); err != nil {
		return fmt.Errorf("%s", pipeline.UserMessage(err))
	}

	result, err := session.Analysis()
	if err != nil {
		return err
	}
	state := session.Snapshot()

	jsonBytes, err := json.MarshalIndent(analyzeOutputDoc{AnalysisResult: result, Warning: state.Warning}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal analysis to JSON: %w", err)
	}

	// Validate output against schema (non-fatal)
	if err := schemas.ValidateAnalysisPayload(jsonBytes); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Warning: Generated analysis does not validate against schema: %v\n", err)
	}

	if err := writeOutput(analyzeOutput, append(jsonBytes, '\n')); err != nil {
		return err
	}

	if verbose {
		printer := observability.NewPrinter(cmd.ErrOrStderr())
		printer.PrintFindings(result.PersonalInfo)
		printer.PrintPolicies(state.Policies)
	}
	if state.Warning != "" {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", state.Warning)
	}
	return nil
}
