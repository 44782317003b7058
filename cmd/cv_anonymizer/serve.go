package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-anonymizer/internal/pipeline"
	"github.com/jonathan/cv-anonymizer/internal/server"
	"github.com/jonathan/cv-anonymizer/internal/upload"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long:  `Start an HTTP server that accepts CV uploads, streams pipeline progress and serves anonymized documents.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller, cleanup, err := controllerFactory(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	if cfg.GeminiAPIKey == "" {
		logger.Warn().Msg("GEMINI_API_KEY is not set; analysis will report the service as unavailable")
	}

	srv := server.New(server.Options{
		Port:           cfg.Server.Port,
		Controller:     controller,
		Store:          pipeline.NewStore(cfg.Pipeline.SessionTTL),
		Validator:      upload.NewValidator(cfg.Upload.MaxBytes),
		Logger:         logger,
		MaxInFlight:    cfg.Server.MaxInFlight,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	return srv.ListenAndServe(ctx)
}
