package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-anonymizer/internal/observability"
	"github.com/jonathan/cv-anonymizer/internal/redaction"
	"github.com/jonathan/cv-anonymizer/internal/rendering"
	"github.com/jonathan/cv-anonymizer/internal/types"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render an anonymized document from a stored record",
	Long: `Applies policies to a structured record and renders it without calling any
collaborator. Without --findings the record is rendered as is.`,
	RunE: runRender,
}

var (
	renderRecordFile   string
	renderFindingsFile string
	renderPoliciesFile string
	renderFormat       string
	renderTemplateFile string
	renderOutputFile   string
)

func init() {
	renderCmd.Flags().StringVarP(&renderRecordFile, "record", "r", "", "Path to structured record JSON file (required)")
	renderCmd.Flags().StringVar(&renderFindingsFile, "findings", "", "Path to personal-information findings JSON file")
	renderCmd.Flags().StringVarP(&renderPoliciesFile, "policies", "p", "", "Path to policies JSON file (default policies otherwise)")
	renderCmd.Flags().StringVarP(&renderFormat, "format", "f", "pdf", "Output format: pdf, text or latex")
	renderCmd.Flags().StringVarP(&renderTemplateFile, "template", "t", "", "Path to a LaTeX template (latex format only)")
	renderCmd.Flags().StringVarP(&renderOutputFile, "out", "o", "", "Path to output file (required)")

	if err := renderCmd.MarkFlagRequired("record"); err != nil {
		panic(fmt.Sprintf("failed to mark record flag as required: %v", err))
	}
	if err := renderCmd.MarkFlagRequired("out"); err != nil {
		panic(fmt.Sprintf("failed to mark out flag as required: %v", err))
	}

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, _ []string) error {
	format, err := rendering.ParseFormat(renderFormat)
	if err != nil {
		return err
	}

	record, err := loadRecord(renderRecordFile)
	if err != nil {
		return err
	}

	info := types.EmptyPersonalInfo()
	if renderFindingsFile != "" {
		if info, err = loadFindings(renderFindingsFile); err != nil {
			return err
		}
	}

	policies := redaction.DefaultPolicies()
	if renderPoliciesFile != "" {
		if policies, err = loadPolicies(renderPoliciesFile); err != nil {
			return err
		}
	}
	policies = redaction.Reconcile(policies, info)
	anonymized := redaction.AnonymizeRecord(record, policies, info)

	renderer := rendering.NewRenderer(nil)
	if renderTemplateFile != "" {
		renderer = renderer.WithLaTeXTemplate(renderTemplateFile)
	}
	data, err := renderer.Render(format, anonymized)
	if err != nil {
		return fmt.Errorf("failed to render %s: %w", format, err)
	}
	if err := writeOutput(renderOutputFile, data); err != nil {
		return err
	}

	if verbose {
		printer := observability.NewPrinter(cmd.OutOrStdout())
		printer.PrintPolicies(policies)
		printer.PrintRecord(anonymized)
	}
	logger.Info().Str("output", renderOutputFile).Str("format", string(format)).Msg("document rendered")
	return nil
}
