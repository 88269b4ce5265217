package quizbuilder

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Embedder turns a piece of text into a vector
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// NewEmbedder picks the backend named by cfg.Embedding.Provider
func NewEmbedder(ctx context.Context, cfg *Config) (Embedder, error) {
	switch cfg.Embedding.Provider {
	case ProviderVertex:
		return NewVertexEmbedder(ctx, cfg.ProjectID, cfg.Location, cfg.Embedding.Model)
	case ProviderOpenAI, ProviderOllama:
		return NewLangchainEmbedder(cfg.Embedding, cfg.OpenAIKey)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

// VertexEmbedder calls the Vertex AI embedding endpoint through genai
type VertexEmbedder struct {
	client *genai.Client
	model  string
}

func NewVertexEmbedder(ctx context.Context, project, location, model string) (*VertexEmbedder, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  project,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	log.Debug().Str("project", project).Str("location", location).Str("model", model).Msg("Vertex embedder ready")
	return &VertexEmbedder{client: client, model: model}, nil
}

func (e *VertexEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Models.EmbedContent(ctx, e.model, genai.Text(text), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("empty embedding response")
	}
	return resp.Embeddings[0].Values, nil
}

// NewLangchainEmbedder builds an OpenAI or Ollama embedder through langchaingo
func NewLangchainEmbedder(cfg EmbeddingConfig, openAIKey string) (*embeddings.EmbedderImpl, error) {
	var client embeddings.EmbedderClient
	switch cfg.Provider {
	case ProviderOpenAI:
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(openAIKey, "Bearer ")),
			openai.WithEmbeddingModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai client: %w", err)
		}
		client = llm
	case ProviderOllama:
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("provider %q is not served by langchaingo", cfg.Provider)
	}

	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

// EmbeddingClient rate limits calls to an Embedder and rejects empty input
// and empty output.
type EmbeddingClient struct {
	embedder Embedder
	limiter  *rate.Limiter
}

// NewEmbeddingClient wraps embedder; rps <= 0 disables the limiter
func NewEmbeddingClient(embedder Embedder, rps float64) *EmbeddingClient {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &EmbeddingClient{embedder: embedder, limiter: limiter}
}

func (c *EmbeddingClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding rate limiter: %w", err)
	}
	vector, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("empty embedding")
	}
	return vector, nil
}
