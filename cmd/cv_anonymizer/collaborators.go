package main

import (
	"context"
	"fmt"

	"github.com/jonathan/cv-anonymizer/internal/analysis"
	"github.com/jonathan/cv-anonymizer/internal/config"
	"github.com/jonathan/cv-anonymizer/internal/ocr"
	"github.com/jonathan/cv-anonymizer/internal/pipeline"
	"github.com/jonathan/cv-anonymizer/internal/rendering"
	"github.com/jonathan/cv-anonymizer/internal/upload"
)

// controllerFactory builds the pipeline controller; tests replace it to
// inject fake collaborators.
var controllerFactory = newController

// newController wires the OCR and Gemini collaborators named by c. The
// returned cleanup releases the Gemini client.
func newController(ctx context.Context, c *config.Config, onProgress pipeline.ProgressCallback) (*pipeline.Controller, func(), error) {
	extractor, err := ocr.New(ocr.Config{
		Provider: c.OCR.Provider,
		APIKey:   c.MistralAPIKey,
		BaseURL:  c.OCR.BaseURL,
		Model:    c.OCR.Model,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	analyzer, err := analysis.NewGemini(ctx, c.GeminiAPIKey, c.GeminiModel,
		analysis.Config{MaxInputChars: c.Analysis.MaxInputChars}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	controller := pipeline.NewController(pipeline.Options{
		Extractor:  extractor,
		Analyzer:   analyzer,
		Validator:  upload.NewValidator(c.Upload.MaxBytes),
		Renderer:   rendering.NewRenderer(nil),
		Timeout:    c.Pipeline.CollaboratorTimeout,
		Logger:     logger,
		OnProgress: onProgress,
	})
	cleanup := func() {
		if err := analyzer.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close Gemini client")
		}
	}
	return controller, cleanup, nil
}
