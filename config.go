package quizbuilder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderVertex = "vertex"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

type EmbeddingConfig struct {
	Provider          string  `yaml:"provider"`
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

type GenerationConfig struct {
	Model           string        `yaml:"model"`
	Temperature     float64       `yaml:"temperature"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	ContextChunks   int           `yaml:"context_chunks"`
	MaxAttempts     int           `yaml:"max_attempts"`
	Timeout         time.Duration `yaml:"timeout"`
}

type ChunkingConfig struct {
	Separator    string `yaml:"separator"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
}

type Config struct {
	// Provider selects the generative model backend: vertex or openai
	Provider  string `yaml:"provider"`
	ProjectID string `yaml:"project_id"`
	Location  string `yaml:"location"`
	OpenAIKey string `yaml:"-"`

	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Chunking   ChunkingConfig   `yaml:"chunking"`

	Server struct {
		Port          string `yaml:"port"`
		SessionSecret string `yaml:"-"`
	} `yaml:"server"`

	Archive struct {
		Path string `yaml:"path"`
	} `yaml:"archive"`

	Logging struct {
		Level         string `yaml:"level"`
		TranscriptDir string `yaml:"transcript_dir"`
	} `yaml:"logging"`
}

var defaultConfigLocations = []string{"config.yaml", "config.yml", "configs/config.yaml"}

// LoadConfig reads .env, then the YAML file at path (or the first default
// location that exists), then applies defaults and environment overrides.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env: %w", err)
	}

	if path == "" {
		for _, loc := range defaultConfigLocations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	config := newConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

// newConfig returns a config holding the defaults for fields where zero is a
// valid setting. They are set before the YAML is decoded so an explicit zero
// in the file is kept.
func newConfig() Config {
	var config Config
	config.Generation.Temperature = 0.8
	config.Chunking.ChunkOverlap = DefaultChunkOverlap
	return config
}

func applyDefaults(config *Config) {
	if config.Provider == "" {
		config.Provider = ProviderVertex
	}
	if config.Location == "" {
		config.Location = "us-central1"
	}

	if config.Embedding.Provider == "" {
		config.Embedding.Provider = config.Provider
	}
	if config.Embedding.Model == "" {
		switch config.Embedding.Provider {
		case ProviderOpenAI:
			config.Embedding.Model = "text-embedding-3-small"
		case ProviderOllama:
			config.Embedding.Model = "nomic-embed-text:latest"
		default:
			config.Embedding.Model = "text-embedding-004"
		}
	}
	if config.Embedding.Provider == ProviderOllama && config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = "http://localhost:11434"
	}

	if config.Generation.Model == "" {
		if config.Provider == ProviderOpenAI {
			config.Generation.Model = "gpt-4o"
		} else {
			config.Generation.Model = "gemini-1.5-pro"
		}
	}
	if config.Generation.MaxOutputTokens == 0 {
		config.Generation.MaxOutputTokens = 500
	}
	if config.Generation.ContextChunks == 0 {
		config.Generation.ContextChunks = 4
	}
	if config.Generation.MaxAttempts == 0 {
		config.Generation.MaxAttempts = 10
	}
	if config.Generation.Timeout == 0 {
		config.Generation.Timeout = 10 * time.Minute
	}

	if config.Chunking.Separator == "" {
		config.Chunking.Separator = DefaultSeparator
	}
	if config.Chunking.ChunkSize == 0 {
		config.Chunking.ChunkSize = DefaultChunkSize
	}

	if config.Server.Port == "" {
		config.Server.Port = "8180"
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
}

func mergeWithEnv(config *Config) {
	if v := os.Getenv("PROJECT_ID"); v != "" {
		config.ProjectID = v
	}
	if v := os.Getenv("PROJECT_LOCATION"); v != "" {
		config.Location = v
	}
	if v := os.Getenv("QUIZ_PROVIDER"); v != "" {
		config.Provider = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		config.OpenAIKey = v
	}
	embeddingProvider := config.Embedding.Provider
	if embeddingProvider == "" {
		embeddingProvider = config.Provider
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" && embeddingProvider == ProviderOllama {
		config.Embedding.BaseURL = v
	}
	if v := os.Getenv("EMBEDDING_RPS"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			config.Embedding.RequestsPerSecond = rps
		}
	}
	if v := os.Getenv("QUIZ_ARCHIVE_PATH"); v != "" {
		config.Archive.Path = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		config.Server.SessionSecret = v
	}
	if v := os.Getenv("PORT"); v != "" {
		config.Server.Port = v
	}
}

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	switch c.Provider {
	case ProviderVertex:
		if c.ProjectID == "" {
			errors = append(errors, ValidationError{
				Field:   "project_id",
				Message: "PROJECT_ID is required for the vertex provider",
			})
		}
	case ProviderOpenAI:
		if c.OpenAIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "openai_api_key",
				Message: "OPENAI_API_KEY is required for the openai provider",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "provider",
			Message: fmt.Sprintf("unknown provider %q", c.Provider),
		})
	}

	switch c.Embedding.Provider {
	case ProviderVertex:
		if c.ProjectID == "" && c.Provider != ProviderVertex {
			errors = append(errors, ValidationError{
				Field:   "embedding.provider",
				Message: "PROJECT_ID is required for vertex embeddings",
			})
		}
	case ProviderOpenAI:
		if c.OpenAIKey == "" && c.Provider != ProviderOpenAI {
			errors = append(errors, ValidationError{
				Field:   "embedding.provider",
				Message: "OPENAI_API_KEY is required for openai embeddings",
			})
		}
	case ProviderOllama:
	default:
		errors = append(errors, ValidationError{
			Field:   "embedding.provider",
			Message: fmt.Sprintf("unknown embedding provider %q", c.Embedding.Provider),
		})
	}

	if c.Embedding.RequestsPerSecond < 0 {
		errors = append(errors, ValidationError{
			Field:   "embedding.requests_per_second",
			Message: "requests_per_second must not be negative",
		})
	}

	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "generation.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if c.Generation.ContextChunks < 1 {
		errors = append(errors, ValidationError{
			Field:   "generation.context_chunks",
			Message: "context_chunks must be positive",
		})
	}

	if c.Chunking.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunking.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Chunking.ChunkOverlap < 0 || c.Chunking.ChunkOverlap >= c.Chunking.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "chunking.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	return errors
}
