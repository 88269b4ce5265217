package quizbuilder

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

var questionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"question": {Type: genai.TypeString},
		"choices": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"key":   {Type: genai.TypeString},
					"value": {Type: genai.TypeString},
				},
				Required: []string{"key", "value"},
			},
		},
		"answer":      {Type: genai.TypeString},
		"explanation": {Type: genai.TypeString},
	},
	Required: []string{"question", "choices", "answer", "explanation"},
}

// GeminiMaker generates questions with a Gemini model on Vertex AI
type GeminiMaker struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
}

func NewGeminiMaker(ctx context.Context, project, location string, cfg GenerationConfig) (*GeminiMaker, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  project,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-pro"
	}
	return &GeminiMaker{
		client: client,
		model:  model,
		config: &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr(float32(cfg.Temperature)),
			MaxOutputTokens:   int32(cfg.MaxOutputTokens),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    questionSchema,
		},
	}, nil
}

func (m *GeminiMaker) MakeQuestion(ctx context.Context, req GenerationRequest, logger *LLMLogger) (*Question, error) {
	prompt := buildPrompt(req)
	if logger != nil {
		logger.LogLLMRequest("GeminiMaker", prompt)
	}

	resp, err := m.client.Models.GenerateContent(ctx, m.model, genai.Text(prompt), m.config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate question: %w", err)
	}
	if resp == nil || len(resp.Candidates) < 1 {
		return nil, fmt.Errorf("no candidates found")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) < 1 {
		return nil, fmt.Errorf("no content found (finish reason %s)", candidate.FinishReason)
	}

	text := candidate.Content.Parts[0].Text
	if logger != nil {
		logger.LogLLMResponse("GeminiMaker", text)
	}

	log.Debug().Str("model", m.model).Str("finish_reason", string(candidate.FinishReason)).Msg("Generated question")
	return ParseQuestionJSON(text)
}
