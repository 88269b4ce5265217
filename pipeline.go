package quizbuilder

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Pipeline indexes a set of pages and generates a quiz over them
type Pipeline struct {
	config   *Config
	embedder *EmbeddingClient
	maker    QuestionMaker
}

// NewPipeline connects the embedding and generation backends named in cfg
func NewPipeline(ctx context.Context, cfg *Config) (*Pipeline, error) {
	embedder, err := NewEmbedder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	maker, err := NewQuestionMaker(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewPipelineWith(cfg, NewEmbeddingClient(embedder, cfg.Embedding.RequestsPerSecond), maker), nil
}

// NewPipelineWith builds a pipeline from already constructed parts
func NewPipelineWith(cfg *Config, embedder *EmbeddingClient, maker QuestionMaker) *Pipeline {
	return &Pipeline{config: cfg, embedder: embedder, maker: maker}
}

// Build creates a vector store over pages and generates a quiz from it. The
// store is returned so the caller can keep it for the quiz session.
func (p *Pipeline) Build(ctx context.Context, pages []Page, req GenerationRequest, progress func(done, total int)) (*Quiz, *VectorStore, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	chunker, err := NewChunkerFromConfig(p.config.Chunking)
	if err != nil {
		return nil, nil, err
	}

	store := NewVectorStore(chunker, p.embedder)
	if _, err := store.CreateCollection(ctx, pages, progress); err != nil {
		return nil, nil, err
	}

	generator := NewQuizGenerator(store, p.maker, GeneratorConfig{
		ContextChunks: p.config.Generation.ContextChunks,
		MaxAttempts:   p.config.Generation.MaxAttempts,
	})

	if req.QuizID == "" {
		req.QuizID = uuid.NewString()
	}
	if dir := p.config.Logging.TranscriptDir; dir != "" {
		logger, err := NewLLMLogger(dir, req.QuizID, req)
		if err != nil {
			log.Warn().Err(err).Str("quiz_id", req.QuizID).Msg("Continuing without transcript")
		} else {
			generator.SetLogger(logger)
			defer logger.Close()
		}
	}

	quiz, err := generator.GenerateQuiz(ctx, req)
	if err != nil {
		store.Reset()
		return nil, nil, fmt.Errorf("failed to generate quiz: %w", err)
	}
	return quiz, store, nil
}
