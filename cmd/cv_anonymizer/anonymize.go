package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/cv-anonymizer/internal/observability"
	"github.com/jonathan/cv-anonymizer/internal/pipeline"
	"github.com/jonathan/cv-anonymizer/internal/redaction"
	"github.com/jonathan/cv-anonymizer/internal/rendering"
)

var anonymizeCmd = &cobra.Command{
	Use:   "anonymize FILE...",
	Short: "Anonymize one or more PDF CVs",
	Long: `Runs every CV through text extraction, Gemini analysis and anonymization,
then writes <name>.anonymized.<ext> next to the input or into --out-dir.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnonymize,
}

var (
	anonymizeFormat      string
	anonymizeOutDir      string
	anonymizeConcurrency int
	anonymizePolicies    string
)

func init() {
	anonymizeCmd.Flags().StringVarP(&anonymizeFormat, "format", "f", "pdf", "Output format: pdf, text or latex")
	anonymizeCmd.Flags().StringVarP(&anonymizeOutDir, "out-dir", "o", "", "Directory for anonymized documents (default: next to each input)")
	anonymizeCmd.Flags().IntVarP(&anonymizeConcurrency, "concurrency", "c", 2, "Number of CVs processed at once")
	anonymizeCmd.Flags().StringVarP(&anonymizePolicies, "policies", "p", "", "Path to a policies JSON file (default policies otherwise)")

	rootCmd.AddCommand(anonymizeCmd)
}

// anonymizeResult is the outcome for one input file
type anonymizeResult struct {
	Input   string
	Output  string
	Warning string
	Err     error

	state pipeline.State
}

func runAnonymize(cmd *cobra.Command, args []string) error {
	format, err := rendering.ParseFormat(anonymizeFormat)
	if err != nil {
		return err
	}
	if anonymizeConcurrency < 1 {
		return fmt.Errorf("--concurrency must be at least 1")
	}

	var policies redaction.PolicySet
	if anonymizePolicies != "" {
		if policies, err = loadPolicies(anonymizePolicies); err != nil {
			return err
		}
	}

	outputs, err := planOutputs(args, anonymizeOutDir, format)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	controller, cleanup, err := controllerFactory(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	results := make([]anonymizeResult, len(args))
	var printMu sync.Mutex
	printer := observability.NewPrinter(cmd.OutOrStdout())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(anonymizeConcurrency)
	for i, input := range args {
		i, input := i, input
		g.Go(func() error {
			// per-file failures are reported in results; only cancellation stops the batch
			results[i] = anonymizeFile(gctx, controller, input, outputs[i], format, policies)
			if verbose && results[i].Err == nil {
				printMu.Lock()
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", input)
				printer.PrintSteps(results[i].state)
				printMu.Unlock()
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %s\n", r.Input, pipeline.UserMessage(r.Err))
			logger.Debug().Err(r.Err).Str("file", r.Input).Msg("anonymization failed")
		case r.Warning != "":
			fmt.Fprintf(cmd.OutOrStdout(), "! %s -> %s (%s)\n", r.Input, r.Output, r.Warning)
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s -> %s\n", r.Input, r.Output)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(args))
	}
	return nil
}

func anonymizeFile(ctx context.Context, controller *pipeline.Controller, input, output string, format rendering.Format, policies redaction.PolicySet) anonymizeResult {
	result := anonymizeResult{Input: input}

	doc, err := readDocument(input)
	if err != nil {
		result.Err = err
		return result
	}

	session := pipeline.NewSession()
	log := logger.With().Str("session_id", session.ID()).Str("file", input).Logger()
	log.Info().Msg("anonymizing")

	if err := controller.Process(ctx, session, doc, nil); err != nil {
		result.Err = err
		return result
	}
	if policies != nil {
		if err := controller.SetPolicies(session, policies); err != nil {
			result.Err = err
			return result
		}
	}

	result.Output = output
	if err := os.MkdirAll(filepath.Dir(result.Output), 0o755); err != nil {
		result.Err = fmt.Errorf("failed to create output directory: %w", err)
		return result
	}
	f, err := os.Create(result.Output)
	if err != nil {
		result.Err = fmt.Errorf("failed to create %s: %w", result.Output, err)
		return result
	}
	genErr := controller.Generate(ctx, session, format, f, nil)
	if closeErr := f.Close(); genErr == nil && closeErr != nil {
		genErr = fmt.Errorf("failed to write %s: %w", result.Output, closeErr)
	}
	if genErr != nil {
		_ = os.Remove(result.Output)
		result.Err = genErr
		return result
	}

	result.state = session.Snapshot()
	result.Warning = result.state.Warning
	log.Info().Str("output", result.Output).Msg("anonymized")
	return result
}

// planOutputs maps every input to its output path and rejects batches where
// two inputs would write the same file.
func planOutputs(inputs []string, outDir string, format rendering.Format) ([]string, error) {
	outputs := make([]string, len(inputs))
	owners := make(map[string]string, len(inputs))
	for i, input := range inputs {
		out := filepath.Clean(outputPath(input, outDir, format))
		if prev, ok := owners[out]; ok {
			return nil, fmt.Errorf("%s and %s would both be written to %s; use separate runs or rename one input", prev, input, out)
		}
		owners[out] = input
		outputs[i] = out
	}
	return outputs, nil
}

// outputPath derives <name>.anonymized.<ext> in outDir, or next to input
func outputPath(input, outDir string, format rendering.Format) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	dir := outDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, base+".anonymized."+format.Extension())
}
