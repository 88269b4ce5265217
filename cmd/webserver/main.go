package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"time"

	"quizbuilder"

	"github.com/gorilla/securecookie"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to config file")
		verbose    = flag.Bool("verbose", false, "Enable verbose debugging output")
	)
	flag.Parse()

	cfg, err := quizbuilder.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	quizbuilder.SetupLogging(os.Stderr, cfg.Logging.Level, *verbose)

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Int("errors", len(errs)).Msg("Invalid configuration")
	}

	pipeline, err := quizbuilder.NewPipeline(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialise model clients")
	}

	var archive *quizbuilder.Archive
	if cfg.Archive.Path != "" {
		archive, err = quizbuilder.OpenArchive(cfg.Archive.Path)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open archive")
		}
		defer archive.Close()
	}

	secret := []byte(cfg.Server.SessionSecret)
	if len(secret) == 0 {
		log.Warn().Msg("SESSION_SECRET not set, sessions will not survive a restart")
		secret = securecookie.GenerateRandomKey(32)
	}

	server, err := NewServer(Options{
		Build:         pipelineBuilder(pipeline),
		Archive:       archive,
		SessionSecret: secret,
		Timeout:       cfg.Generation.Timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

// pipelineBuilder ingests the uploaded PDFs and runs the full pipeline
func pipelineBuilder(p *quizbuilder.Pipeline) BuildFunc {
	return func(ctx context.Context, uploads []quizbuilder.Upload, req quizbuilder.GenerationRequest) (*quizbuilder.Quiz, *quizbuilder.VectorStore, error) {
		dp := quizbuilder.NewDocumentProcessor()
		if err := dp.IngestUploads(uploads); err != nil {
			return nil, nil, err
		}
		return p.Build(ctx, dp.Pages(), req, nil)
	}
}
